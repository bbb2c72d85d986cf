package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"viral-finder/internal/models"
	"viral-finder/shared/apierr"
	"viral-finder/shared/config"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const recommendedKeywordCount = 5

// ErrEmptyKeyword is returned by Outline when no keyword was picked.
var ErrEmptyKeyword = errors.New("outline keyword is required")

// Generator produces structured insights with Gemini. A client is built per call
// because the key can change between calls.
type Generator struct {
	model      string
	language   string
	baseURL    string
	defaultKey string
}

func NewGenerator(cfg *config.AIConfig) *Generator {
	g := &Generator{
		model:    "gemini-2.5-flash",
		language: "Korean",
	}
	if cfg != nil {
		if cfg.Model != "" {
			g.model = cfg.Model
		}
		if cfg.Language != "" {
			g.language = cfg.Language
		}
		g.baseURL = cfg.BaseURL
		g.defaultKey = cfg.GeminiAPIKey
	}
	return g
}

// newClient resolves the key: the session key wins over the ambient default.
func (g *Generator) newClient(ctx context.Context, creds models.CredentialPair) (*genai.Client, error) {
	key := strings.TrimSpace(creds.GeminiAPIKey)
	if key == "" {
		key = strings.TrimSpace(g.defaultKey)
	}
	if key == "" {
		return nil, &apierr.MissingCredentialError{Service: apierr.ServiceGemini}
	}

	cc := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// Analyze asks for a summary, pain points, keywords and content ideas for one video.
func (g *Generator) Analyze(ctx context.Context, video models.VideoRecord, comments []models.CommentRecord, creds models.CredentialPair) (*models.AnalysisResult, error) {
	client, err := g.newClient(ctx, creds)
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("Analyzing video %s (%d comments): %s", video.ID, len(comments), video.Title)

	text, err := g.generate(ctx, client, g.buildAnalysisPrompt(video, comments), analysisSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to analyze video %s: %w", video.ID, err)
	}

	var result models.AnalysisResult
	if err := decodeStructured(text, &result); err != nil {
		return nil, err
	}
	if err := validateAnalysis(&result); err != nil {
		return nil, &apierr.UpstreamError{Service: apierr.ServiceGemini, Err: err}
	}

	return &result, nil
}

// Outline asks for a script outline built around keyword.
func (g *Generator) Outline(ctx context.Context, keyword, referenceTitle string, creds models.CredentialPair) (*models.ScriptOutline, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}

	client, err := g.newClient(ctx, creds)
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("Generating script outline for %q", keyword)

	text, err := g.generate(ctx, client, g.buildOutlinePrompt(keyword, referenceTitle), outlineSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to generate outline for %q: %w", keyword, err)
	}

	var outline models.ScriptOutline
	if err := decodeStructured(text, &outline); err != nil {
		return nil, err
	}
	if strings.TrimSpace(outline.Keyword) == "" {
		outline.Keyword = keyword
	}
	if err := validateOutline(&outline); err != nil {
		return nil, &apierr.UpstreamError{Service: apierr.ServiceGemini, Err: err}
	}

	return &outline, nil
}

func (g *Generator) generate(ctx context.Context, client *genai.Client, prompt string, schema *genai.Schema) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", &apierr.TransportError{Service: apierr.ServiceGemini, Err: err}
		}
		return "", &apierr.UpstreamError{Service: apierr.ServiceGemini, Message: err.Error(), Err: err}
	}

	responseText := result.Text()
	if strings.TrimSpace(responseText) == "" {
		return "", &apierr.UpstreamError{
			Service: apierr.ServiceGemini,
			Err:     errors.New("empty response, possibly blocked by content filtering"),
		}
	}
	return responseText, nil
}

func (g *Generator) buildAnalysisPrompt(video models.VideoRecord, comments []models.CommentRecord) string {
	var commentLines []string
	for _, c := range comments {
		commentLines = append(commentLines, "- "+c.Text)
	}

	return fmt.Sprintf(`You are an expert in YouTube video analysis and content planning. Analyze the data below.
Write every answer in %s.

Video title: %s
Description: %s
Viral Score: %.2f

Comments:
%s

Tasks:
1. Summarize why this video became popular (summary)
2. List the viewers' concrete reactions and needs (painPoints)
3. List search-trend keywords (trendingKeywords)
4. Recommend exactly %d core keywords for the next piece of content (recommendedKeywords)
5. Propose 3 concrete content ideas (contentIdeas)`,
		g.language,
		video.Title,
		truncateString(video.Description, 1000),
		video.ViralScore,
		strings.Join(commentLines, "\n"),
		recommendedKeywordCount,
	)
}

func (g *Generator) buildOutlinePrompt(keyword, referenceTitle string) string {
	return fmt.Sprintf(`Write a script outline for a YouTube video on the keyword "%s".
Original reference video title: "%s"

Requirements:
1. Structure it as an intro (Hook), a body of 3-4 steps, a conclusion (CTA) and a key tips section.
2. For every section, describe in 1-2 sentences exactly what should be said.
3. Write everything in %s.`,
		keyword,
		referenceTitle,
		g.language,
	)
}

func analysisSchema() *genai.Schema {
	stringList := func(description string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: description,
			Items:       &genai.Schema{Type: genai.TypeString},
		}
	}

	keywords := stringList(fmt.Sprintf("Exactly %d keywords", recommendedKeywordCount))
	keywords.MinItems = genai.Ptr[int64](recommendedKeywordCount)
	keywords.MaxItems = genai.Ptr[int64](recommendedKeywordCount)

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":             {Type: genai.TypeString},
			"painPoints":          stringList(""),
			"trendingKeywords":    stringList(""),
			"recommendedKeywords": keywords,
			"contentIdeas": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":          {Type: genai.TypeString},
						"strategy":       {Type: genai.TypeString},
						"targetAudience": {Type: genai.TypeString},
					},
					Required: []string{"title", "strategy", "targetAudience"},
				},
			},
		},
		Required:         []string{"summary", "painPoints", "trendingKeywords", "recommendedKeywords", "contentIdeas"},
		PropertyOrdering: []string{"summary", "painPoints", "trendingKeywords", "recommendedKeywords", "contentIdeas"},
	}
}

func outlineSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"keyword": {Type: genai.TypeString},
			"sections": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":   {Type: genai.TypeString},
						"content": {Type: genai.TypeString},
					},
					Required: []string{"title", "content"},
				},
			},
		},
		Required: []string{"keyword", "sections"},
	}
}

// decodeStructured parses the JSON object in response. Anything around the outermost
// braces (code fences, stray prose) is ignored.
func decodeStructured(response string, v any) error {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx < startIdx {
		return &apierr.UpstreamError{
			Service: apierr.ServiceGemini,
			Err:     fmt.Errorf("no JSON found in response: %s", truncateString(response, 200)),
		}
	}

	if err := json.Unmarshal([]byte(response[startIdx:endIdx+1]), v); err != nil {
		return &apierr.UpstreamError{Service: apierr.ServiceGemini, Err: fmt.Errorf("failed to unmarshal JSON: %w", err)}
	}
	return nil
}

func validateAnalysis(a *models.AnalysisResult) error {
	if strings.TrimSpace(a.Summary) == "" {
		return fmt.Errorf("analysis summary is required but was empty")
	}
	if a.PainPoints == nil {
		return fmt.Errorf("analysis is missing painPoints")
	}
	if a.TrendingKeywords == nil {
		return fmt.Errorf("analysis is missing trendingKeywords")
	}
	if len(a.RecommendedKeywords) != recommendedKeywordCount {
		return fmt.Errorf("expected exactly %d recommended keywords, got %d", recommendedKeywordCount, len(a.RecommendedKeywords))
	}
	for i, k := range a.RecommendedKeywords {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("recommended keyword %d is empty", i+1)
		}
	}
	if a.ContentIdeas == nil {
		return fmt.Errorf("analysis is missing contentIdeas")
	}
	for i, idea := range a.ContentIdeas {
		if idea.Title == "" || idea.Strategy == "" || idea.TargetAudience == "" {
			return fmt.Errorf("content idea %d is missing title, strategy or targetAudience", i+1)
		}
	}
	return nil
}

func validateOutline(o *models.ScriptOutline) error {
	if len(o.Sections) == 0 {
		return fmt.Errorf("outline has no sections")
	}
	for i, s := range o.Sections {
		if strings.TrimSpace(s.Title) == "" || strings.TrimSpace(s.Content) == "" {
			return fmt.Errorf("outline section %d is missing title or content", i+1)
		}
	}
	return nil
}

func truncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength]) + "..."
}
