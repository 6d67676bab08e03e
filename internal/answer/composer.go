// Package answer composes grounded answers to questions over a user's
// indexed notes: retrieve, group by subject, generate, attribute sources.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/notewell/notewell/internal/ollama"
	"github.com/notewell/notewell/internal/retrieval"
	"github.com/notewell/notewell/internal/subject"
)

const (
	// DefaultMaxNotes caps how many sources back an answer.
	DefaultMaxNotes = 3

	generateTimeout = 90 * time.Second
	titleTimeout    = 30 * time.Second

	// minSourceRelevance filters weak hits out of the attributed sources.
	// Weaker hits still shape the context and the confidence signal.
	minSourceRelevance = 0.3

	sourceExcerptLen = 150
	maxChatTitleLen  = 50
)

const (
	noNotesResponse = "I couldn't find any relevant notes to answer your question. " +
		"Try asking about topics you have notes on."
	generationApology = "I'm having trouble generating an answer right now. Please try again later."
)

// Chatter is the interface for chat completion. Satisfied by *ollama.Client.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// Searcher retrieves ranked note hits. Satisfied by *retrieval.Retriever.
type Searcher interface {
	Search(ctx context.Context, query, ownerID string, limit int, subjectFilter string) []retrieval.SearchHit
}

// Source is one note that grounded an answer.
type Source struct {
	SourceID  string  `json:"source_id"`
	Title     string  `json:"title"`
	Subject   string  `json:"subject"`
	Relevance float32 `json:"relevance"`
	Excerpt   string  `json:"excerpt"`
}

// Response is a composed answer with its supporting sources. Confidence is
// the minimum relevance among all retrieved hits, so one weak match pulls
// it down even when the rest are strong.
type Response struct {
	Text       string   `json:"text"`
	Sources    []Source `json:"sources"`
	Confidence float32  `json:"confidence"`
}

// Composer turns questions into grounded answers over a user's notes.
type Composer struct {
	client    Chatter
	model     string
	retriever Searcher
	titleCase cases.Caser
}

// New creates a Composer using the given chat client, model name, and
// retriever.
func New(client Chatter, model string, retriever Searcher) *Composer {
	return &Composer{
		client:    client,
		model:     model,
		retriever: retriever,
		titleCase: cases.Title(language.English),
	}
}

// Answer retrieves up to maxNotes*2 hits for question (subject-filtered when
// the question names or implies one of the vocabulary subjects), builds a
// subject-grouped context, and asks the model for a grounded answer. A
// generation failure yields a canned apology; no hits yield a fixed
// no-notes response. Never returns an error: every failure degrades to a
// valid Response.
func (c *Composer) Answer(ctx context.Context, question, ownerID string, vocabulary []string, maxNotes int) Response {
	if maxNotes <= 0 {
		maxNotes = DefaultMaxNotes
	}

	subjectFilter := subject.DetectInQuestion(question, vocabulary)
	if subjectFilter != "" {
		slog.Debug("answer: detected subject in question", "subject", subjectFilter)
	}

	hits := c.retriever.Search(ctx, question, ownerID, maxNotes*2, subjectFilter)
	if len(hits) == 0 {
		return Response{Text: noNotesResponse}
	}

	text := c.generate(ctx, question, hits)

	var sources []Source
	for _, h := range hits {
		if h.Relevance <= minSourceRelevance {
			continue
		}
		sources = append(sources, Source{
			SourceID:  h.SourceID,
			Title:     h.Title,
			Subject:   h.Subject,
			Relevance: h.Relevance,
			Excerpt:   sourceExcerpt(h.Excerpt),
		})
		if len(sources) == maxNotes {
			break
		}
	}

	return Response{
		Text:       text,
		Sources:    sources,
		Confidence: minRelevance(hits),
	}
}

// generate builds the grouped context and asks the model. Failures collapse
// to the apology string.
func (c *Composer) generate(ctx context.Context, question string, hits []retrieval.SearchHit) string {
	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	raw, err := c.client.Chat(genCtx, c.model, answerPrompt(question, subjectInventory(hits), contextBlock(hits)), nil)
	if err != nil {
		slog.Warn("answer: generation failed", "error", err)
		return generationApology
	}
	return strings.TrimSpace(raw)
}

// GenerateTitle produces a short descriptive title for a chat from its first
// question. Generation failures fall back to the question's leading words.
func (c *Composer) GenerateTitle(ctx context.Context, question string) string {
	titleCtx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	raw, err := c.client.Chat(titleCtx, c.model, titlePrompt(question), nil)
	if err != nil {
		slog.Warn("answer: title generation failed", "error", err)
		return c.fallbackTitle(question)
	}

	title := strings.TrimSpace(raw)
	if title == "" {
		return "Chat Session"
	}
	if len(title) > maxChatTitleLen {
		title = title[:maxChatTitleLen-3] + "..."
	}
	return title
}

func (c *Composer) fallbackTitle(question string) string {
	words := strings.Fields(question)
	if len(words) > 4 {
		words = words[:4]
	}
	return c.titleCase.String(strings.Join(words, " ")) + "..."
}

// SuggestedQuestions returns starter prompts for a user, mixing canned
// suggestions with ones derived from their first few subjects. At most five.
func SuggestedQuestions(vocabulary []string) []string {
	suggestions := []string{
		"What are the main topics in my notes?",
		"Can you summarize my recent notes?",
		"What have I been studying recently?",
		"What questions should I review for my exams?",
	}

	if len(vocabulary) > 3 {
		vocabulary = vocabulary[:3]
	}
	for i, name := range vocabulary {
		if i == 2 {
			break
		}
		suggestions = append(suggestions, fmt.Sprintf("What have I learned about %s?", name))
	}
	if len(vocabulary) > 1 {
		suggestions = append(suggestions, fmt.Sprintf("Compare my notes on %s and %s", vocabulary[0], vocabulary[1]))
	}

	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions
}

// contextBlock renders hits in rank order, each annotated with subject and
// title so the model can attribute what it says.
func contextBlock(hits []retrieval.SearchHit) string {
	var sb strings.Builder
	for i, h := range hits {
		subj := h.Subject
		if subj == "" {
			subj = "No Subject"
		}
		fmt.Fprintf(&sb, "Note %d - Subject: %s (Title: %s):\n%s\n\n", i+1, subj, h.Title, h.Excerpt)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// subjectInventory summarizes how many notes each subject contributed, in
// first-seen order.
func subjectInventory(hits []retrieval.SearchHit) string {
	counts := make(map[string]int)
	var order []string
	for _, h := range hits {
		subj := h.Subject
		if subj == "" {
			subj = "No Subject"
		}
		if counts[subj] == 0 {
			order = append(order, subj)
		}
		counts[subj]++
	}

	var sb strings.Builder
	for i, subj := range order {
		if i > 0 {
			sb.WriteByte('\n')
		}
		plural := ""
		if counts[subj] > 1 {
			plural = "s"
		}
		fmt.Fprintf(&sb, "- %s: %d note%s", subj, counts[subj], plural)
	}
	return sb.String()
}

func minRelevance(hits []retrieval.SearchHit) float32 {
	min := hits[0].Relevance
	for _, h := range hits[1:] {
		if h.Relevance < min {
			min = h.Relevance
		}
	}
	return min
}

func sourceExcerpt(text string) string {
	if len(text) <= sourceExcerptLen {
		return text
	}
	return text[:sourceExcerptLen] + "..."
}
