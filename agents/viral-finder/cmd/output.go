package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"viral-finder/internal/models"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printVideos(w io.Writer, videos []models.VideoRecord) error {
	if len(videos) == 0 {
		_, err := fmt.Fprintln(w, "No videos passed the filter.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tVIEWS\tSUBSCRIBERS\tCHANNEL\tTITLE\tURL")
	for i, v := range videos {
		fmt.Fprintf(tw, "%d\t%.2f\t%d\t%d\t%s\t%s\t%s\n",
			i+1, v.ViralScore, v.ViewCount, v.SubscriberCount, v.ChannelTitle, truncate(v.Title, 60), v.URL())
	}
	return tw.Flush()
}

func printAnalysis(w io.Writer, video models.VideoRecord, commentCount int, a *models.AnalysisResult) error {
	if a == nil {
		return fmt.Errorf("no analysis available")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%.2fx)\n%s\n", video.Title, video.ViralScore, video.URL())
	fmt.Fprintf(&b, "Based on %d comments\n\n", commentCount)
	fmt.Fprintf(&b, "Summary:\n  %s\n\n", a.Summary)
	writeList(&b, "Viewer reactions and needs", a.PainPoints)
	writeList(&b, "Trending keywords", a.TrendingKeywords)
	writeList(&b, "Recommended keywords", a.RecommendedKeywords)

	b.WriteString("Content ideas:\n")
	for _, idea := range a.ContentIdeas {
		fmt.Fprintf(&b, "  - %s\n    %s\n    For: %s\n", idea.Title, idea.Strategy, idea.TargetAudience)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func printOutline(w io.Writer, o *models.ScriptOutline) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Script outline: %s\n", o.Keyword)
	for i, s := range o.Sections {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, s.Title, s.Content)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
	b.WriteString("\n")
}

// maskKey keeps the first and last four characters of a saved key.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
