// Command execution for CLI commands.
//
// Information Hiding:
// - Stack wiring hidden
// - Terminal interaction hidden
// - Output formatting hidden

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/scout/config"
	"github.com/richinex/scout/internal/logging"
	"github.com/richinex/scout/llm"
	"github.com/richinex/scout/model"
	"github.com/richinex/scout/orchestration"
	"github.com/richinex/scout/storage"
)

// Options holds options shared by all commands.
type Options struct {
	Provider string
	Verbose  bool
}

// AskOptions holds options of the ask command.
type AskOptions struct {
	Options
	Strict   bool
	MaxSteps int
	Export   bool
	Trace    bool
	ForceWeb bool
}

// defaultListLimit is how many runs `runs` lists.
const defaultListLimit = 20

// Ask researches query, asking on in/out whenever the query needs
// clarification.
func Ask(ctx context.Context, query string, opts AskOptions, in io.Reader, out io.Writer) error {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}
	if opts.Strict {
		settings.Agent.StrictMode = true
	}
	if opts.MaxSteps > 0 {
		settings.Agent.MaxSteps = opts.MaxSteps
	}

	logger, err := logging.ForCLI(opts.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	provider, err := createProvider(settings)
	if err != nil {
		return err
	}
	return ask(ctx, query, opts, settings, provider, logger, in, out)
}

func ask(ctx context.Context, query string, opts AskOptions, settings config.Settings, provider llm.Provider, logger *zap.Logger, in io.Reader, out io.Writer) error {
	st := newStack(settings, provider, opts.ForceWeb, logger)
	conv := orchestration.NewConversation(st.orchestrator, NewStdinAnswers(in, out), logger).
		WithMaxRounds(settings.Agent.MaxClarifyRounds)

	if opts.Export {
		store, err := storage.OpenSqlite(settings.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
		conv = conv.WithRecorder(store)
	}

	mode := "loose"
	if settings.Agent.StrictMode {
		mode = "strict"
	}
	fmt.Fprintf(out, "Researching with %s/%s (%s mode, max %d steps)...\n",
		provider.Name(), provider.Model(), mode, settings.Agent.MaxSteps)

	result, err := conv.Ask(ctx, query)
	if err != nil {
		return err
	}

	if opts.Trace {
		for _, run := range result.Runs {
			printTrace(out, run)
		}
	}
	final := result.Final()
	printResult(out, final)
	printTokenStats(out, st.client.Stats())
	if opts.Export {
		fmt.Fprintf(out, "\nSaved %d run(s) to %s\n", len(result.Runs), settings.Storage.DBPath)
	}

	switch final.Status {
	case model.StatusSuccess, model.StatusNeedInput:
		return nil
	default:
		return fmt.Errorf("no report: run ended %s", final.Status)
	}
}

// Index builds the persistent knowledge index.
func Index(ctx context.Context, opts Options, out io.Writer) error {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}
	r := settings.Retrieval
	if r.KnowledgeDir == "" {
		return errors.New("KNOWLEDGE_DIR is not set")
	}
	if r.IndexPath == "" {
		return errors.New("INDEX_PATH is not set; an in-memory index would be discarded")
	}

	logger, err := logging.ForCLI(opts.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	fmt.Fprintf(out, "Indexing %s...\n", r.KnowledgeDir)
	n, err := newEngine(settings, logger).Index(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	fmt.Fprintf(out, "Indexed %d chunks into %s (collection %q)\n", n, r.IndexPath, r.Collection)
	return nil
}

// Runs lists exported runs, or prints one in detail when runID is set.
func Runs(ctx context.Context, runID string, opts Options, out io.Writer) error {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}
	store, err := storage.OpenSqlite(settings.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	if runID != "" {
		run, err := store.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		printRun(out, run)
		return nil
	}

	runs, err := store.ListRuns(ctx, defaultListLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs saved yet. Use `scout ask --export`.")
		return nil
	}
	printRunList(out, runs)
	return nil
}

const (
	maxQueryLen  = 50
	maxReasonLen = 120
)

func printResult(out io.Writer, run model.RunResult) {
	fmt.Fprintln(out)
	switch run.Status {
	case model.StatusSuccess:
		fmt.Fprintf(out, "%s\n", run.Report)
	case model.StatusNeedInput:
		fmt.Fprintf(out, "More information is needed: %s\n", run.Question)
		for i, opt := range run.Options {
			fmt.Fprintf(out, "  %d. %s\n", i+1, opt)
		}
	default:
		fmt.Fprintf(out, "No report (%s).\n", run.Status)
		if run.FinishReason != "" {
			fmt.Fprintf(out, "Reason: %s\n", run.FinishReason)
		}
		if run.Question != "" {
			fmt.Fprintf(out, "Pending question: %s\n", run.Question)
		}
	}
	fmt.Fprintf(out, "\n(%s, %d steps, cost %.2f, %s)\n", run.Status, run.Steps, run.TotalCost, run.Duration.Round(time.Millisecond))
}

func printTrace(out io.Writer, run model.RunResult) {
	fmt.Fprintf(out, "\n--- Trace %s: %s ---\n", run.RunID, truncateString(run.Query, maxQueryLen))
	for _, rec := range run.Trajectory {
		step := rec.State.StepCount + 1
		status := rec.Outcome.Status.String()
		if rec.Outcome.Error != "" {
			status += ": " + rec.Outcome.Error
		}
		fmt.Fprintf(out, "[%d] %s -> %s (cost %.2f)\n", step, rec.Action.Type, status, rec.Outcome.Cost)
		if rec.Action.Reason != "" {
			fmt.Fprintf(out, "    why: %s\n", truncateString(rec.Action.Reason, maxReasonLen))
		}
		if keys := rec.Outcome.Facts.Keys(); len(keys) > 0 && rec.Outcome.Success() {
			names := make([]string, len(keys))
			for i, k := range keys {
				names[i] = string(k)
			}
			fmt.Fprintf(out, "    facts: %s\n", strings.Join(names, ", "))
		}
	}
	if run.FinishReason != "" {
		fmt.Fprintf(out, "[finish] %s\n", truncateString(run.FinishReason, maxReasonLen))
	}
}

func printRunList(out io.Writer, runs []storage.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tSTATUS\tSTEPS\tCOST\tQUERY")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%s\n",
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.Steps, r.TotalCost,
			truncateString(r.Query, maxQueryLen))
	}
	_ = w.Flush()
}

func printRun(out io.Writer, run model.RunResult) {
	fmt.Fprintf(out, "Run:     %s\n", run.RunID)
	fmt.Fprintf(out, "Query:   %s\n", run.Query)
	fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out, "\n--- Steps ---")
	for _, h := range run.History {
		status := "ok"
		if !h.Success {
			status = "failed: " + h.Error
		}
		fmt.Fprintf(out, "[%d] %s (%s)\n", h.Step, h.Action, status)
	}
	if len(run.Decisions) > 0 {
		fmt.Fprintln(out, "\n--- Decisions ---")
		for _, d := range run.Decisions {
			fmt.Fprintf(out, "[%d] %s: %s\n", d.Step, d.Action, truncateString(d.Reason, maxReasonLen))
		}
	}
	printResult(out, run)
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// printTokenStats prints token usage statistics.
func printTokenStats(out io.Writer, stats llm.TokenStats) {
	if stats.LLMCalls == 0 {
		return
	}
	fmt.Fprintf(out, "\nToken Usage:\n")
	fmt.Fprintf(out, "  LLM calls: %d", stats.LLMCalls)
	if stats.Failures > 0 {
		fmt.Fprintf(out, " (%d failed)", stats.Failures)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Prompt tokens: %d\n", stats.PromptTokens)
	fmt.Fprintf(out, "  Completion tokens: %d\n", stats.CompletionTokens)
	fmt.Fprintf(out, "  Total tokens: %d\n", stats.TotalTokens)
}
