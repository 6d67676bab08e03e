package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notewell/notewell/internal/answer"
	"github.com/notewell/notewell/internal/config"
	"github.com/notewell/notewell/internal/extract"
	"github.com/notewell/notewell/internal/retrieval"
)

func splitVocabulary(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	vocab := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			vocab = append(vocab, p)
		}
	}
	if len(vocab) == 0 {
		return nil
	}
	return vocab
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a note into the semantic store",
	Long: `Index a note into the semantic store.

Examples:
  notewell index --owner me --subject Physics --title "Laws" --text "Newton's laws of motion..."
  notewell index --owner me --file lecture.pdf --vocab "Physics,History,Biology"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		owner, _ := cmd.Flags().GetString("owner")
		subject, _ := cmd.Flags().GetString("subject")
		title, _ := cmd.Flags().GetString("title")
		vocab, _ := cmd.Flags().GetString("vocab")

		if owner == "" {
			return fmt.Errorf("--owner is required")
		}
		if text == "" && file == "" {
			return fmt.Errorf("one of --text or --file is required")
		}

		content := text
		if file != "" {
			extracted, err := extract.File(file)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", file, err)
			}
			content = extracted
			if title == "" {
				title = file
			}
		}

		req := map[string]any{
			"owner_id": owner,
			"content":  content,
		}
		if subject != "" {
			req["subject"] = subject
		}
		if title != "" {
			req["title"] = title
		}
		if v := splitVocabulary(vocab); v != nil {
			req["vocabulary"] = v
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/notes", req)
		if err != nil {
			return err
		}

		var result struct {
			Notes []struct {
				ID      string `json:"id"`
				Subject string `json:"subject"`
				Title   string `json:"title"`
			} `json:"notes"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for _, n := range result.Notes {
			printSuccess("Indexed %s [%s] %s", n.ID, n.Subject, n.Title)
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().String("text", "", "note text to index")
	indexCmd.Flags().String("file", "", "file to extract and index (txt, md, html, pdf)")
	indexCmd.Flags().String("owner", "", "owner id")
	indexCmd.Flags().String("subject", "", "subject label; omit to auto-classify")
	indexCmd.Flags().String("title", "", "note title")
	indexCmd.Flags().String("vocab", "", "comma-separated subject names for auto-classification")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over indexed notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")
		subject, _ := cmd.Flags().GetString("subject")

		if owner == "" {
			return fmt.Errorf("--owner is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		params := url.Values{}
		params.Set("q", query)
		params.Set("owner_id", owner)
		params.Set("limit", fmt.Sprintf("%d", limit))
		if subject != "" {
			params.Set("subject", subject)
		}

		resp, err := client.get(cmd.Context(), "/v1/search?"+params.Encode())
		if err != nil {
			return err
		}

		var result struct {
			Hits []retrieval.SearchHit `json:"hits"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printHits(result.Hits)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("owner", "", "owner id")
	searchCmd.Flags().Int("limit", 10, "maximum number of results")
	searchCmd.Flags().String("subject", "", "restrict results to one subject")
}

func printHits(hits []retrieval.SearchHit) {
	if len(hits) == 0 {
		fmt.Println("No results found.")
		return
	}
	for i, h := range hits {
		header := fmt.Sprintf("Result %d", i+1)
		fmt.Printf("\n%s [%.3f] %s", colorize(colorBold, header), h.Relevance, h.Title)
		if h.Subject != "" {
			fmt.Printf(" (%s)", h.Subject)
		}
		fmt.Printf("\n  id: %s\n  %s\n", h.SourceID, h.Excerpt)
	}
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question over your notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		owner, _ := cmd.Flags().GetString("owner")
		vocab, _ := cmd.Flags().GetString("vocab")
		maxNotes, _ := cmd.Flags().GetInt("max-notes")

		if owner == "" {
			return fmt.Errorf("--owner is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"question":  question,
			"owner_id":  owner,
			"max_notes": maxNotes,
		}
		if v := splitVocabulary(vocab); v != nil {
			req["vocabulary"] = v
		}

		resp, err := client.post(cmd.Context(), "/v1/ask", req)
		if err != nil {
			return err
		}

		var result answer.Response
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Text)
		if len(result.Sources) > 0 {
			fmt.Printf("\n%s\n", colorize(colorBold, "Sources:"))
			for _, s := range result.Sources {
				fmt.Printf("  [%.3f] %s (%s) %s\n", s.Relevance, s.Title, s.Subject, s.SourceID)
			}
			fmt.Printf("Confidence: %.3f\n", result.Confidence)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("owner", "", "owner id")
	askCmd.Flags().String("vocab", "", "comma-separated subject names for subject detection")
	askCmd.Flags().Int("max-notes", 0, "maximum notes to ground the answer on")
}

// --- similar ---

var similarCmd = &cobra.Command{
	Use:   "similar <note-id>",
	Short: "Find notes similar to an indexed note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")

		if owner == "" {
			return fmt.Errorf("--owner is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		params := url.Values{}
		params.Set("owner_id", owner)
		params.Set("limit", fmt.Sprintf("%d", limit))

		path := fmt.Sprintf("/v1/notes/%s/similar?%s", url.PathEscape(args[0]), params.Encode())
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Hits []retrieval.SearchHit `json:"hits"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printHits(result.Hits)
		return nil
	},
}

func init() {
	similarCmd.Flags().String("owner", "", "owner id")
	similarCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- remove ---

var removeCmd = &cobra.Command{
	Use:   "remove <note-id>",
	Short: "Remove a note from the semantic store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/v1/notes/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed %s", args[0])
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, info := range config.ShowAll(cfg) {
			fmt.Printf("%-26s %-34s %s\n", info.Key, info.Value, info.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			printError("%v", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "valid keys: %s\n", strings.Join(config.ValidKeys(), ", "))
			return err
		}
		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
