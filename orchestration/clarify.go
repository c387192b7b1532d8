package orchestration

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/scout/model"
)

// Runner runs one query to completion. *Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, query string) model.RunResult
}

// AnswerSource obtains the user's answer to a clarification question.
// ok is false when the user declines to answer.
type AnswerSource interface {
	Answer(ctx context.Context, question string, options []string) (answer string, ok bool, err error)
}

// AnswerFunc adapts a function to the AnswerSource interface.
type AnswerFunc func(ctx context.Context, question string, options []string) (string, bool, error)

// Answer calls f.
func (f AnswerFunc) Answer(ctx context.Context, question string, options []string) (string, bool, error) {
	return f(ctx, question, options)
}

// RunRecorder persists finished runs. storage.RunStore implementations
// satisfy it.
type RunRecorder interface {
	SaveRun(ctx context.Context, result model.RunResult) error
}

// DefaultMaxClarifyRounds bounds how often the user is asked for more input.
const DefaultMaxClarifyRounds = 3

// ConversationResult is the outcome of a clarification loop.
type ConversationResult struct {
	// Runs holds every run in order; the last one is final.
	Runs []model.RunResult
	// Query is the query of the final run, including any answers.
	Query string
}

// Final returns the last run.
func (r ConversationResult) Final() model.RunResult {
	if len(r.Runs) == 0 {
		return model.RunResult{}
	}
	return r.Runs[len(r.Runs)-1]
}

// Conversation resumes runs that stopped to ask a question. Each answer
// starts a fresh run on the augmented query; no run state crosses the wait
// for the user.
type Conversation struct {
	runner    Runner
	answers   AnswerSource
	maxRounds int
	recorder  RunRecorder
	logger    *zap.Logger
}

// NewConversation creates a clarification loop over runner.
func NewConversation(runner Runner, answers AnswerSource, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conversation{
		runner:    runner,
		answers:   answers,
		maxRounds: DefaultMaxClarifyRounds,
		logger:    logger,
	}
}

// WithMaxRounds sets how many questions may be asked. Zero disables
// clarification.
func (c *Conversation) WithMaxRounds(n int) *Conversation {
	if n >= 0 {
		c.maxRounds = n
	}
	return c
}

// WithRecorder persists every run of the conversation.
func (c *Conversation) WithRecorder(r RunRecorder) *Conversation {
	c.recorder = r
	return c
}

// Ask runs query and keeps asking for clarification while the run needs
// input, the user answers and rounds remain.
func (c *Conversation) Ask(ctx context.Context, query string) (ConversationResult, error) {
	var out ConversationResult
	for round := 0; ; round++ {
		result := c.runner.Run(ctx, query)
		out.Runs = append(out.Runs, result)
		out.Query = query

		if c.recorder != nil {
			if err := c.recorder.SaveRun(ctx, result); err != nil {
				return out, fmt.Errorf("failed to save run %s: %w", result.RunID, err)
			}
		}

		if result.Status != model.StatusNeedInput || c.answers == nil {
			return out, nil
		}
		if round >= c.maxRounds {
			c.logger.Info("clarification rounds exhausted", zap.Int("rounds", round))
			return out, nil
		}

		answer, ok, err := c.answers.Answer(ctx, result.Question, result.Options)
		if err != nil {
			return out, fmt.Errorf("failed to read answer: %w", err)
		}
		if !ok || strings.TrimSpace(answer) == "" {
			return out, nil
		}
		query = AugmentQuery(query, answer)
		c.logger.Info("resuming with answer", zap.Int("round", round+1), zap.String("query", query))
	}
}

// AugmentQuery appends the user's answer to the query.
func AugmentQuery(query, answer string) string {
	query = strings.TrimSpace(query)
	answer = strings.TrimSpace(answer)
	if query == "" {
		return answer
	}
	if answer == "" {
		return query
	}
	return query + " " + answer
}
