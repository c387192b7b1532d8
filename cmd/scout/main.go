// Package main provides the scout CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/scout/cli"
)

var (
	// Global flags
	provider string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "scout",
		Short: "Research questions against a local knowledge base and the web",
		Long: `A CLI tool that answers natural-language research questions.

Each query moves through rewrite, integrity check, planning, evidence
collection and summarization. An LLM picks the next step; only steps
whose inputs are already known are allowed. When the query is too vague
scout asks a question and resumes with your answer.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(runsCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func globalOptions() cli.Options {
	return cli.Options{Provider: provider, Verbose: verbose}
}

func askCmd() *cobra.Command {
	var opts cli.AskOptions

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Research a query and print a report",
		Long: `Research a query using the local knowledge base and web search.

Local passages are tried first for each piece of required information;
the web fills the gaps. In strict mode the report only uses collected
evidence.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Options = globalOptions()
			return cli.Ask(cmd.Context(), args[0], opts, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Only report facts backed by collected evidence")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "Maximum steps per run (default from MAX_STEPS)")
	cmd.Flags().BoolVar(&opts.Export, "export", false, "Save runs to the database at DB_PATH")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "Print every step of every run")
	cmd.Flags().BoolVar(&opts.ForceWeb, "force-web", false, "Search the web for every required item")

	return cmd
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build the persistent knowledge index",
		Long: `Chunk and embed every .txt and .md file under KNOWLEDGE_DIR into the
index at INDEX_PATH. Later queries load the index without re-embedding.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Index(cmd.Context(), globalOptions(), os.Stdout)
		},
	}
}

func runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List exported runs or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var runID string
			if len(args) == 1 {
				runID = args[0]
			}
			return cli.Runs(cmd.Context(), runID, globalOptions(), os.Stdout)
		},
	}
}
