package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/faqbot/internal/backfill"
	"github.com/kalambet/faqbot/internal/chat"
	"github.com/kalambet/faqbot/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *storage.Store
	Chat  *chat.Service

	// EmbeddingEnabled controls whether new patterns are queued for
	// embedding. False when no provider token is configured.
	EmbeddingEnabled bool
}

// NewMCPServer creates an MCP server with all faqbot tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"faqbot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("faqbot — FAQ chatbot with semantic and keyword intent matching."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("classify",
			mcp.WithDescription("Classify a user message against the FAQ corpus and return the matched intent and response."),
			mcp.WithString("message", mcp.Description("The user message to classify"), mcp.Required()),
		),
		mcpClassify(deps),
	)

	s.AddTool(
		mcp.NewTool("list_intents",
			mcp.WithDescription("List all intents known to the chatbot with their descriptions."),
		),
		mcpListIntents(deps),
	)

	s.AddTool(
		mcp.NewTool("add_pattern",
			mcp.WithDescription("Add an example utterance to an existing intent. The pattern is embedded in the background."),
			mcp.WithString("intent", mcp.Description("Intent tag the pattern belongs to"), mcp.Required()),
			mcp.WithString("text", mcp.Description("The example utterance"), mcp.Required()),
		),
		mcpAddPattern(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"faq://intents",
			"FAQ Intents",
			mcp.WithResourceDescription("All intents with their pattern counts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceIntents(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"faq://logs/recent",
			"Recent Chat Logs",
			mcp.WithResourceDescription("Last 10 classified messages and their outcomes"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentLogs(deps),
	)

	return s
}

func mcpClassify(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		reply, err := deps.Chat.Classify(ctx, message)
		if err != nil {
			return mcpError(fmt.Sprintf("classification failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"response":   reply.Message,
			"intent":     reply.IntentTag,
			"confidence": reply.Confidence,
			"method":     string(reply.Method),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListIntents(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		intents, err := deps.Store.ListIntents()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list intents: %v", err)), nil
		}

		if len(intents) == 0 {
			return mcpText("[]"), nil
		}

		type intentResult struct {
			Tag         string `json:"tag"`
			Description string `json:"description,omitempty"`
		}
		results := make([]intentResult, len(intents))
		for i, in := range intents {
			results[i] = intentResult{Tag: in.Tag, Description: in.Description}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal intents: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddPattern(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tag, err := req.RequireString("intent")
		if err != nil {
			return mcpError("intent is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		if _, err := deps.Store.GetIntent(tag); err != nil {
			return mcpError(fmt.Sprintf("unknown intent %q", tag)), nil
		}

		id := uuid.New().String()
		if err := deps.Store.CreatePattern(storage.Pattern{
			ID:        id,
			IntentTag: tag,
			Text:      text,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return mcpError(fmt.Sprintf("failed to save pattern: %v", err)), nil
		}

		if deps.EmbeddingEnabled {
			if err := backfill.EnqueuePattern(deps.Store, id); err != nil {
				return mcpError(fmt.Sprintf("saved pattern but failed to queue embedding: %v", err)), nil
			}
		}

		return mcpText(fmt.Sprintf("Added pattern %s to intent %s", id, tag)), nil
	}
}

func mcpResourceIntents(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		intents, err := deps.Store.ListIntents()
		if err != nil {
			return nil, fmt.Errorf("failed to list intents: %w", err)
		}

		type intentSummary struct {
			Tag          string `json:"tag"`
			Description  string `json:"description,omitempty"`
			PatternCount int    `json:"pattern_count"`
		}

		summaries := make([]intentSummary, len(intents))
		for i, in := range intents {
			patterns, err := deps.Store.ListPatternsByIntent(in.Tag)
			if err != nil {
				return nil, fmt.Errorf("failed to list patterns for %s: %w", in.Tag, err)
			}
			summaries[i] = intentSummary{
				Tag:          in.Tag,
				Description:  in.Description,
				PatternCount: len(patterns),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal intents: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRecentLogs(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		logs, err := deps.Store.RecentChatLogs(10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent chat logs: %w", err)
		}

		type logSummary struct {
			ID         string  `json:"id"`
			CreatedAt  string  `json:"created_at"`
			Query      string  `json:"query"`
			Intent     string  `json:"intent"`
			Matched    bool    `json:"matched"`
			Method     string  `json:"method"`
			Confidence float64 `json:"confidence"`
		}

		summaries := make([]logSummary, len(logs))
		for i, l := range logs {
			query := l.Query
			if utf8.RuneCountInString(query) > 200 {
				runes := []rune(query)
				query = string(runes[:200]) + "..."
			}
			summaries[i] = logSummary{
				ID:         l.ID,
				CreatedAt:  l.CreatedAt.Format(time.RFC3339),
				Query:      query,
				Intent:     l.IntentTag,
				Matched:    l.Matched,
				Method:     l.Method,
				Confidence: l.Confidence,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal chat logs: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
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
