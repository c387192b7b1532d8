package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/richinex/scout/config"
	"github.com/richinex/scout/llm"
)

// scriptedProvider answers calls in order and finishes once the script
// runs out.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "script-1" }

func (p *scriptedProvider) Complete(_ context.Context, _ llm.Request) (llm.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.replies) == 0 {
		return llm.LLMResponse{Content: `{"action":"finish","reason":"script ended"}`}, nil
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return llm.LLMResponse{Content: reply}, nil
}

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	for _, key := range []string{"LLM_PROVIDER", "SKILLS_DIR", "KNOWLEDGE_DIR", "INDEX_PATH", "TAVILY_API_KEY", "MAX_STEPS", "STRICT_MODE"} {
		t.Setenv(key, "")
	}
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "runs.db"))
	settings, err := config.New("")
	if err != nil {
		t.Fatalf("config.New() error = %v", err)
	}
	return settings
}

func TestResolveAnswer(t *testing.T) {
	options := []string{"2023", "2024"}
	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{"1\n", "2023", true},
		{" 2 ", "2024", true},
		{"3", "3", true},
		{"fiscal 2022\n", "fiscal 2022", true},
		{"\n", "", false},
		{"Q", "", false},
	}
	for _, tt := range tests {
		got, ok := resolveAnswer(tt.line, options)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("resolveAnswer(%q) = %q, %v; want %q, %v", tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestStdinAnswers(t *testing.T) {
	var out bytes.Buffer
	answers := NewStdinAnswers(strings.NewReader("2\n"), &out)

	got, ok, err := answers.Answer(context.Background(), "Which year?", []string{"2023", "2024"})
	if err != nil || !ok || got != "2024" {
		t.Errorf("Answer() = %q, %v, %v", got, ok, err)
	}
	if !strings.Contains(out.String(), "? Which year?\n  1. 2023\n  2. 2024\n") {
		t.Errorf("unexpected prompt %q", out.String())
	}

	got, ok, err = answers.Answer(context.Background(), "Again?", nil)
	if err != nil || ok || got != "" {
		t.Errorf("end of input should decline, got %q, %v, %v", got, ok, err)
	}
}

func TestAskClarifiesAndExports(t *testing.T) {
	settings := testSettings(t)
	provider := &scriptedProvider{replies: []string{
		`{"action":"rewrite","reason":"start"}`,
		`{"step5_rewritten_query":"ACME revenue"}`,
		`{"action":"chase","reason":"check"}`,
		`{"is_sufficient":false,"suggested_question":"Which year?","suggested_options":["2023","2024"]}`,
		`{"action":"finish","reason":"ask the user"}`,
		`{"action":"finish","reason":"giving up"}`,
	}}
	var out bytes.Buffer

	err := ask(context.Background(), "acme revenue", AskOptions{Export: true, Trace: true},
		settings, provider, zaptest.NewLogger(t), strings.NewReader("1\n"), &out)
	if err == nil || !strings.Contains(err.Error(), "incomplete") {
		t.Fatalf("expected an incomplete run error, got %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"Researching with scripted/script-1",
		"? Which year?",
		"  1. 2023",
		"[1] rewrite -> completed",
		"[2] chase -> needs_input",
		"    why: check",
		"No report (incomplete).",
		"Reason: giving up",
		"Token Usage:",
		"Saved 2 run(s)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	var list bytes.Buffer
	if err := Runs(context.Background(), "", Options{}, &list); err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if got := strings.Count(list.String(), "\n"); got != 3 {
		t.Errorf("expected a header and 2 runs, got:\n%s", list.String())
	}
	if !strings.Contains(list.String(), "need_input") || !strings.Contains(list.String(), "incomplete") {
		t.Errorf("expected both run statuses, got:\n%s", list.String())
	}
}

func TestRunsEmptyAndMissing(t *testing.T) {
	testSettings(t)
	var out bytes.Buffer

	if err := Runs(context.Background(), "", Options{}, &out); err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if !strings.Contains(out.String(), "No runs saved yet") {
		t.Errorf("unexpected output %q", out.String())
	}
	if err := Runs(context.Background(), "nope", Options{}, &out); err == nil {
		t.Error("expected an error for an unknown run")
	}
}

func TestIndexRequiresPaths(t *testing.T) {
	testSettings(t)
	var out bytes.Buffer
	if err := Index(context.Background(), Options{}, &out); err == nil {
		t.Error("expected an error without KNOWLEDGE_DIR")
	}

	t.Setenv("KNOWLEDGE_DIR", t.TempDir())
	if err := Index(context.Background(), Options{}, &out); err == nil || !strings.Contains(err.Error(), "INDEX_PATH") {
		t.Errorf("expected an INDEX_PATH error, got %v", err)
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("营业收入增长", 4); got != "营业收入..." {
		t.Errorf("truncateString() = %q", got)
	}
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("truncateString() = %q", got)
	}
}
