package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/faqbot/internal/chat"
	"github.com/kalambet/faqbot/internal/intent"
	"github.com/kalambet/faqbot/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := chat.NewService(store, intent.NewResolver(nil), 0, 0)

	return MCPDeps{
		Store:            store,
		Chat:             svc,
		EmbeddingEnabled: true,
	}, store
}

func seedIntent(t *testing.T, store *storage.Store, tag, pattern, response string) {
	t.Helper()
	if err := store.CreateIntent(storage.Intent{Tag: tag, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if pattern != "" {
		if err := store.CreatePattern(storage.Pattern{ID: "p-" + tag, IntentTag: tag, Text: pattern}); err != nil {
			t.Fatalf("CreatePattern: %v", err)
		}
	}
	if response != "" {
		if err := store.CreateResponse(storage.Response{ID: "r-" + tag, IntentTag: tag, Text: response}); err != nil {
			t.Fatalf("CreateResponse: %v", err)
		}
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tools ---

func TestMCPClassify(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedIntent(t, store, "hours", "what are your opening hours", "We are open 9 to 5.")

	handler := mcpClassify(deps)
	result, err := handler(context.Background(), makeCallToolRequest("classify", map[string]interface{}{
		"message": "what are your opening hours",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var out struct {
		Response   string  `json:"response"`
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
		Method     string  `json:"method"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if out.Intent != "hours" || out.Response != "We are open 9 to 5." {
		t.Errorf("result = %+v", out)
	}
	if out.Method != "bow" {
		t.Errorf("method = %q, want bow", out.Method)
	}
}

func TestMCPClassifyMissingMessage(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	handler := mcpClassify(deps)
	result, err := handler(context.Background(), makeCallToolRequest("classify", nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing message")
	}
}

func TestMCPListIntents(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	handler := mcpListIntents(deps)
	result, err := handler(context.Background(), makeCallToolRequest("list_intents", nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if toolText(t, result) != "[]" {
		t.Errorf("empty corpus should yield [], got %q", toolText(t, result))
	}

	seedIntent(t, store, "hours", "", "")
	seedIntent(t, store, "returns", "", "")

	result, err = handler(context.Background(), makeCallToolRequest("list_intents", nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var intents []struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &intents); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(intents) != 2 {
		t.Errorf("got %d intents, want 2", len(intents))
	}
}

func TestMCPAddPattern(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedIntent(t, store, "hours", "", "")

	handler := mcpAddPattern(deps)
	result, err := handler(context.Background(), makeCallToolRequest("add_pattern", map[string]interface{}{
		"intent": "hours",
		"text":   "when do you open",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	patterns, err := store.ListPatternsByIntent("hours")
	if err != nil {
		t.Fatalf("ListPatternsByIntent: %v", err)
	}
	if len(patterns) != 1 || patterns[0].Text != "when do you open" {
		t.Errorf("patterns = %+v", patterns)
	}

	// EmbeddingEnabled queues an embed job for the new pattern.
	job, err := store.ClaimNextJob([]string{"embed_pattern"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil {
		t.Fatal("expected an embed_pattern job to be queued")
	}
	if !strings.Contains(job.PayloadJSON, patterns[0].ID) {
		t.Errorf("job payload %q does not reference pattern %s", job.PayloadJSON, patterns[0].ID)
	}
}

func TestMCPAddPatternUnknownIntent(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	handler := mcpAddPattern(deps)
	result, err := handler(context.Background(), makeCallToolRequest("add_pattern", map[string]interface{}{
		"intent": "missing",
		"text":   "anything",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for unknown intent")
	}
}

// --- resources ---

func TestMCPResourceIntents(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedIntent(t, store, "hours", "opening hours", "")

	handler := mcpResourceIntents(deps)
	contents, err := handler(context.Background(), makeReadResourceRequest("faq://intents"))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	text := contents[0].(mcp.TextResourceContents).Text

	var summaries []struct {
		Tag          string `json:"tag"`
		PatternCount int    `json:"pattern_count"`
	}
	if err := json.Unmarshal([]byte(text), &summaries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Tag != "hours" || summaries[0].PatternCount != 1 {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestMCPResourceRecentLogs(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedIntent(t, store, "hours", "opening hours", "We are open 9 to 5.")

	if _, err := deps.Chat.Classify(context.Background(), "opening hours"); err != nil {
		t.Fatalf("Classify: %v", err)
	}

	handler := mcpResourceRecentLogs(deps)
	contents, err := handler(context.Background(), makeReadResourceRequest("faq://logs/recent"))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents).Text

	var logs []struct {
		Query   string `json:"query"`
		Intent  string `json:"intent"`
		Matched bool   `json:"matched"`
	}
	if err := json.Unmarshal([]byte(text), &logs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].Intent != "hours" || !logs[0].Matched {
		t.Errorf("log = %+v", logs[0])
	}
}
