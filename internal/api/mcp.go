package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/notewell/notewell/internal/index"
	"github.com/notewell/notewell/internal/subject"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Index      Indexer
	Retriever  SearchProvider
	Composer   Answerer
	Classifier DocClassifier
}

// NewMCPServer creates an MCP server exposing the note index to agent hosts.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"notewell",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("notewell: semantic index over personal study notes. Store, search, and ask."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("index_note",
			mcp.WithDescription("Store a note in the semantic index. If no subject is given, the note is classified against the provided subject list."),
			mcp.WithString("owner_id", mcp.Description("Owner of the note"), mcp.Required()),
			mcp.WithString("content", mcp.Description("The note text"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Optional note title")),
			mcp.WithString("subject", mcp.Description("Subject label; omit to auto-classify")),
			mcp.WithArray("vocabulary", mcp.Description("Subject names to classify against when subject is omitted")),
		),
		mcpIndexNote(deps),
	)

	s.AddTool(
		mcp.NewTool("search_notes",
			mcp.WithDescription("Semantically search an owner's notes and return ranked hits."),
			mcp.WithString("owner_id", mcp.Description("Owner whose notes to search"), mcp.Required()),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("subject", mcp.Description("Optional subject filter")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpSearchNotes(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_notes",
			mcp.WithDescription("Ask a question over an owner's notes and get a grounded answer with sources."),
			mcp.WithString("owner_id", mcp.Description("Owner whose notes to consult"), mcp.Required()),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithArray("vocabulary", mcp.Description("Owner's subject names, used for subject detection")),
			mcp.WithNumber("max_notes", mcp.Description("Maximum notes to ground the answer on (default 3)")),
		),
		mcpAskNotes(deps),
	)

	return s
}

func mcpIndexNote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ownerID, err := req.RequireString("owner_id")
		if err != nil {
			return mcpError("owner_id is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		title := req.GetString("title", "")
		subj := req.GetString("subject", "")
		vocabulary := req.GetStringSlice("vocabulary", nil)

		now := time.Now().UTC()
		var notes []index.Note

		switch {
		case subj != "":
			notes = append(notes, index.Note{
				OwnerID: ownerID, Subject: subj, Title: title, Content: content, CreatedAt: now,
			})
		case len(vocabulary) > 0:
			for _, rec := range deps.Classifier.Classify(ctx, content, vocabulary) {
				notes = append(notes, index.Note{
					OwnerID: ownerID, Subject: rec.Subject, Title: rec.Title, Content: rec.Content, CreatedAt: now,
				})
			}
			if len(notes) == 0 {
				return mcpError("classification produced no records"), nil
			}
		default:
			notes = append(notes, index.Note{
				OwnerID: ownerID, Subject: subject.General, Title: title, Content: content, CreatedAt: now,
			})
		}

		indexed := make([]IndexedNote, 0, len(notes))
		for _, note := range notes {
			note.SourceID = uuid.New().String()
			if !deps.Index.Upsert(ctx, note) {
				return mcpError(fmt.Sprintf("indexing failed for note %s", note.SourceID)), nil
			}
			indexed = append(indexed, IndexedNote{ID: note.SourceID, Subject: note.Subject, Title: note.Title})
		}

		b, err := json.Marshal(indexed)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ownerID, err := req.RequireString("owner_id")
		if err != nil {
			return mcpError("owner_id is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		hits := deps.Retriever.Search(ctx, query, ownerID, limit, req.GetString("subject", ""))
		if len(hits) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(hits)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ownerID, err := req.RequireString("owner_id")
		if err != nil {
			return mcpError("owner_id is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		vocabulary := req.GetStringSlice("vocabulary", nil)
		maxNotes := req.GetInt("max_notes", 0)

		resp := deps.Composer.Answer(ctx, question, ownerID, vocabulary, maxNotes)

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
