package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"

	"viral-finder/internal/models"
	"viral-finder/shared/config"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	config *config.EmailConfig
	send   sendFunc
}

func NewSender(cfg *config.EmailConfig) *Sender {
	return &Sender{
		config: cfg,
		send:   smtp.SendMail,
	}
}

// SendDigest mails the watch digest. A digest without videos is not sent.
func (s *Sender) SendDigest(report *models.DigestReport) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	if report.Selected == 0 {
		return nil
	}

	subject := fmt.Sprintf("Viral Video Digest - %d Videos Above Threshold (%s)",
		report.Selected, report.Date.Format("Jan 2, 2006"))

	body, err := generateDigestBody(report)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	return s.SendHTML(subject, body)
}

// SendHTML sends an email with custom HTML content
func (s *Sender) SendHTML(subject, htmlBody string) error {
	if s.config == nil || s.config.SMTPServer == "" || s.config.ToEmail == "" {
		return errors.New("email is not configured: smtp_server and to_email are required")
	}

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPServer)

	to := []string{s.config.ToEmail}
	msg := []byte(fmt.Sprintf(`To: %s
From: %s
Subject: %s
MIME-Version: 1.0
Content-Type: text/html; charset=UTF-8

%s`, s.config.ToEmail, s.config.FromEmail, subject, htmlBody))

	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)
	return s.send(addr, auth, s.config.FromEmail, to, msg)
}

var digestTemplate = template.Must(template.New("digest").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Viral Video Digest</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; }
        .header { background-color: #c4302b; color: white; padding: 20px; border-radius: 8px; margin-bottom: 20px; text-align: center; }
        .keyword { background-color: #f8f9fa; padding: 15px; border-radius: 8px; margin-bottom: 20px; }
        .video { display: flex; gap: 12px; margin: 12px 0; }
        .video img { width: 160px; border-radius: 4px; }
        .score { color: #c4302b; font-weight: bold; }
        .stats { font-size: 13px; color: #666; }
        .footer { text-align: center; color: #666; font-size: 12px; margin-top: 30px; border-top: 1px solid #ddd; padding-top: 15px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Viral Video Digest</h1>
        <p>{{.Date.Format "Monday, January 2, 2006"}}</p>
        <p>{{.Selected}} new videos out of {{.Total}} found</p>
    </div>

    {{range .Sections}}
    <div class="keyword">
        <h2>{{.Keyword}}</h2>
        {{range .Videos}}
        <div class="video">
            {{if .Thumbnail}}<a href="{{.URL}}"><img src="{{.Thumbnail}}" alt=""></a>{{end}}
            <div>
                <a href="{{.URL}}"><strong>{{.Title}}</strong></a>
                <div>{{.ChannelTitle}}</div>
                <div class="stats"><span class="score">{{printf "%.2fx" .ViralScore}}</span> · {{.ViewCount}} views · {{.SubscriberCount}} subscribers</div>
            </div>
        </div>
        {{end}}
    </div>
    {{end}}

    <div class="footer">
        <p>Viral score is views divided by channel subscribers.</p>
    </div>
</body>
</html>
`))

func generateDigestBody(report *models.DigestReport) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}
