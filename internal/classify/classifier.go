// Package classify segments free-text documents into subject-tagged records
// using the generative model, repairing its output against the caller's
// subject vocabulary.
package classify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/notewell/notewell/internal/ollama"
	"github.com/notewell/notewell/internal/subject"
)

const (
	segmentTimeout = 60 * time.Second
	singleTimeout  = 30 * time.Second

	maxTitleLen = 60
)

// Chatter is the interface for chat completion. Satisfied by *ollama.Client.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// Record is one classified section of a document. Subject is always a member
// of the supplied vocabulary or the "General" sentinel.
type Record struct {
	Subject string `json:"subject"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Classifier splits documents into per-subject records.
type Classifier struct {
	client Chatter
	model  string
	now    func() time.Time
}

// New creates a Classifier using the given chat client and model name.
func New(client Chatter, model string) *Classifier {
	return &Classifier{client: client, model: model, now: time.Now}
}

// Classify asks the model to segment text into (subject, title, content)
// records and repairs the result: every subject is resolved against
// vocabulary, titles are cleaned or synthesized, and any failure collapses
// to a single-record fallback covering the whole input. Returns nil only for
// blank input or an empty vocabulary.
func (c *Classifier) Classify(ctx context.Context, text string, vocabulary []string) []Record {
	if strings.TrimSpace(text) == "" || len(vocabulary) == 0 {
		return nil
	}

	segCtx, cancel := context.WithTimeout(ctx, segmentTimeout)
	defer cancel()

	raw, err := c.client.Chat(segCtx, c.model, segmentPrompt(text, vocabulary), nil)
	if err != nil {
		slog.Warn("classify: segmentation chat failed", "error", err)
		return []Record{c.fallbackRecord(ctx, text, vocabulary)}
	}

	parsed, ok := parseRecords(raw)
	if !ok {
		slog.Warn("classify: unparseable segmentation output", "response", truncateForLog(raw))
		return []Record{c.fallbackRecord(ctx, text, vocabulary)}
	}

	var records []Record
	for _, item := range parsed {
		content := strings.TrimSpace(item.Content)
		if content == "" {
			continue
		}

		subj := c.repairSubject(ctx, item.Subject, content, vocabulary)
		title := c.repairTitle(item.Title, subj, content)

		records = append(records, Record{Subject: subj, Title: title, Content: content})
	}

	if len(records) == 0 {
		return []Record{c.fallbackRecord(ctx, text, vocabulary)}
	}
	return records
}

// ClassifySingle returns the single best vocabulary subject for text, or ""
// when nothing fits. Tries the model's direct prediction, then the resolver,
// then model-extracted keywords run through the resolver.
func (c *Classifier) ClassifySingle(ctx context.Context, text string, vocabulary []string) string {
	if len(vocabulary) == 0 {
		return ""
	}

	singleCtx, cancel := context.WithTimeout(ctx, singleTimeout)
	defer cancel()

	predicted, err := c.client.Chat(singleCtx, c.model, singlePrompt(text, vocabulary), nil)
	if err != nil {
		slog.Warn("classify: single-label chat failed", "error", err)
		return ""
	}
	predicted = strings.TrimSpace(predicted)

	for _, v := range vocabulary {
		if v == predicted {
			return v
		}
	}
	if strings.EqualFold(predicted, "NONE") {
		return ""
	}

	if match := subject.Resolve(predicted, vocabulary); match != "" {
		slog.Debug("classify: mapped predicted subject", "predicted", predicted, "subject", match)
		return match
	}

	for _, kw := range c.extractKeywords(ctx, text) {
		if match := subject.Resolve(kw, vocabulary); match != "" {
			slog.Debug("classify: keyword-based match", "keyword", kw, "subject", match)
			return match
		}
	}
	return ""
}

// repairSubject maps a predicted subject onto the vocabulary, escalating
// through the resolver and a content-based classification before settling on
// General.
func (c *Classifier) repairSubject(ctx context.Context, predicted, content string, vocabulary []string) string {
	if predicted == subject.General {
		return subject.General
	}
	for _, v := range vocabulary {
		if v == predicted {
			return v
		}
	}

	if match := subject.Resolve(predicted, vocabulary); match != "" {
		slog.Debug("classify: mapped subject", "predicted", predicted, "subject", match)
		return match
	}
	if match := c.ClassifySingle(ctx, content, vocabulary); match != "" {
		slog.Debug("classify: content-based subject", "predicted", predicted, "subject", match)
		return match
	}
	return subject.General
}

// repairTitle strips subject-name prefixes and replaces empty or
// placeholder titles with one synthesized from the content.
func (c *Classifier) repairTitle(title, subj, content string) string {
	title = strings.TrimSpace(title)

	if strings.HasPrefix(title, subj+" - ") {
		title = title[len(subj+" - "):]
	} else if strings.HasPrefix(title, subj) {
		title = strings.TrimLeft(title[len(subj):], " -")
	}

	lower := strings.ToLower(title)
	if title == "" || lower == "notes" || lower == strings.ToLower(subj) {
		return c.synthesizeTitle(content)
	}
	return truncateTitle(title)
}

// synthesizeTitle builds a title from the first six words of content, or a
// dated placeholder when the content is too short.
func (c *Classifier) synthesizeTitle(content string) string {
	words := strings.Fields(content)
	if len(words) < 5 {
		return c.now().Format("Monday, January 2, 2006") + " Notes"
	}
	n := 6
	if len(words) < n {
		n = len(words)
	}
	return truncateTitle(strings.Join(words[:n], " "))
}

func truncateTitle(title string) string {
	if len(title) > maxTitleLen {
		return title[:maxTitleLen-3] + "..."
	}
	return title
}

// fallbackRecord treats the whole input as one record with the best
// single-label subject.
func (c *Classifier) fallbackRecord(ctx context.Context, text string, vocabulary []string) Record {
	subj := c.ClassifySingle(ctx, text, vocabulary)
	if subj == "" {
		subj = subject.General
	}
	content := strings.TrimSpace(text)
	return Record{
		Subject: subj,
		Title:   c.synthesizeTitle(content),
		Content: content,
	}
}

// extractKeywords asks the model for up to ten comma-separated keywords.
func (c *Classifier) extractKeywords(ctx context.Context, text string) []string {
	kwCtx, cancel := context.WithTimeout(ctx, singleTimeout)
	defer cancel()

	raw, err := c.client.Chat(kwCtx, c.model, keywordPrompt(text), nil)
	if err != nil {
		slog.Warn("classify: keyword extraction failed", "error", err)
		return nil
	}

	var keywords []string
	for _, kw := range strings.Split(raw, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if len(kw) > 2 {
			keywords = append(keywords, kw)
		}
		if len(keywords) == 10 {
			break
		}
	}
	return keywords
}

// parseRecords extracts the JSON array between the first '[' and last ']'
// and unmarshals it. Models often wrap the array in prose; everything
// outside the brackets is discarded.
func parseRecords(raw string) ([]Record, bool) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil, false
	}

	var records []Record
	if err := json.Unmarshal([]byte(raw[start:end+1]), &records); err != nil {
		return nil, false
	}
	return records, true
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
