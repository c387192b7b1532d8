package orchestration

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/richinex/scout/model"
)

// askingRunner asks a question until the query contains an answer.
type askingRunner struct {
	queries  []string
	answered func(query string) bool
}

func (r *askingRunner) Run(_ context.Context, query string) model.RunResult {
	r.queries = append(r.queries, query)
	if r.answered(query) {
		return model.RunResult{Query: query, Status: model.StatusSuccess, Report: "done"}
	}
	return model.RunResult{Query: query, Status: model.StatusNeedInput, Question: "which year?", Options: []string{"2023"}}
}

type recorderFunc func(model.RunResult) error

func (f recorderFunc) SaveRun(_ context.Context, r model.RunResult) error { return f(r) }

func TestConversationResumesWithAugmentedQuery(t *testing.T) {
	runner := &askingRunner{answered: func(q string) bool { return q == "revenue of acme 2023" }}
	answers := AnswerFunc(func(_ context.Context, question string, options []string) (string, bool, error) {
		if question != "which year?" {
			t.Errorf("unexpected question %q", question)
		}
		return options[0], true, nil
	})

	var saved int
	conv := NewConversation(runner, answers, zaptest.NewLogger(t)).
		WithRecorder(recorderFunc(func(model.RunResult) error { saved++; return nil }))

	result, err := conv.Ask(context.Background(), "revenue of acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Runs) != 2 || result.Final().Status != model.StatusSuccess {
		t.Fatalf("expected a second successful run, got %+v", result.Runs)
	}
	if result.Query != "revenue of acme 2023" {
		t.Errorf("unexpected final query %q", result.Query)
	}
	if saved != 2 {
		t.Errorf("expected both runs saved, got %d", saved)
	}
}

func TestConversationStopsAfterMaxRounds(t *testing.T) {
	runner := &askingRunner{answered: func(string) bool { return false }}
	answers := AnswerFunc(func(context.Context, string, []string) (string, bool, error) {
		return "more", true, nil
	})

	result, err := NewConversation(runner, answers, nil).WithMaxRounds(2).Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.queries) != 3 {
		t.Errorf("expected initial run plus 2 rounds, got %d runs", len(runner.queries))
	}
	if result.Final().Status != model.StatusNeedInput {
		t.Errorf("expected need_input, got %s", result.Final().Status)
	}
}

func TestConversationStopsWhenUserDeclines(t *testing.T) {
	runner := &askingRunner{answered: func(string) bool { return false }}
	answers := AnswerFunc(func(context.Context, string, []string) (string, bool, error) {
		return "", false, nil
	})

	result, err := NewConversation(runner, answers, nil).Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Runs) != 1 {
		t.Errorf("expected a single run, got %d", len(result.Runs))
	}
}

func TestConversationPropagatesErrors(t *testing.T) {
	runner := &askingRunner{answered: func(string) bool { return false }}
	answers := AnswerFunc(func(context.Context, string, []string) (string, bool, error) {
		return "", false, errors.New("stdin closed")
	})
	if _, err := NewConversation(runner, answers, nil).Ask(context.Background(), "q"); err == nil {
		t.Error("expected answer error")
	}

	failing := recorderFunc(func(model.RunResult) error { return errors.New("disk full") })
	if _, err := NewConversation(runner, nil, nil).WithRecorder(failing).Ask(context.Background(), "q"); err == nil {
		t.Error("expected recorder error")
	}
}

func TestAugmentQuery(t *testing.T) {
	tests := []struct {
		query, answer, want string
	}{
		{"revenue", "2023", "revenue 2023"},
		{" revenue ", " 2023 ", "revenue 2023"},
		{"revenue", "", "revenue"},
		{"", "2023", "2023"},
	}
	for _, tt := range tests {
		if got := AugmentQuery(tt.query, tt.answer); got != tt.want {
			t.Errorf("AugmentQuery(%q, %q) = %q, want %q", tt.query, tt.answer, got, tt.want)
		}
	}
}
