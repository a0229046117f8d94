// Package cli implements the riskscan command line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docguard/internal/ai"
	"docguard/internal/config"
	"docguard/internal/pkg/textextract"
	"docguard/internal/risk"
)

type options struct {
	configFile  string
	corpus      string
	concurrency int
	minLength   int
	dryRun      bool
	verbose     bool

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand builds the riskscan command tree. gen overrides the LLM
// client built from config when non-nil.
func NewRootCommand(gen risk.Generator) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "riskscan",
		Short: "Scan loan agreements for risky clauses",
		Long: `riskscan checks a document against the risk knowledge base. Each risk is
first matched by keyword and only candidates are verified by the LLM.

Example usage:
  riskscan scan agreement.pdf
  cat agreement.txt | riskscan scan -
  riskscan scan --dry-run agreement.md
  riskscan risks`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.configFile != "" {
				opts.cfg, err = config.LoadFile(opts.configFile)
			} else {
				opts.cfg, err = config.Load()
			}
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if opts.corpus == "" {
				opts.corpus = opts.cfg.Risk.CorpusPath
			}
			opts.log = zap.NewNop()
			if opts.verbose {
				if opts.log, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default $CONFIG_FILE or configs/config.toml)")
	root.PersistentFlags().StringVar(&opts.corpus, "corpus", "", "risk corpus file (default built-in corpus)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(newScanCommand(opts, gen), newRisksCommand(opts))
	return root
}

func newScanCommand(opts *options, gen risk.Generator) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [file|-]",
		Short: "Scan a .pdf, .txt or .md file, or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("input has no text")
			}

			defs, err := loadDefinitions(opts)
			if err != nil {
				return err
			}

			if opts.dryRun {
				names := []string{}
				for _, def := range risk.KeywordCandidates(text, defs) {
					names = append(names, def.Name)
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"candidates": names})
			}

			if gen == nil {
				gen = ai.NewClient(opts.cfg.LLM)
			}
			minLength := opts.cfg.Risk.MinTextLength
			if opts.minLength > 0 {
				minLength = opts.minLength
			}
			concurrency := opts.cfg.Risk.ScanConcurrency
			if opts.concurrency > 0 {
				concurrency = opts.concurrency
			}
			scanner := risk.NewScanner(gen, minLength, concurrency, opts.log)
			report := scanner.Scan(cmd.Context(), text, defs)
			return writeJSON(cmd.OutOrStdout(), map[string]any{"report": report})
		},
	}
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "parallel LLM calls (default from config)")
	cmd.Flags().IntVar(&opts.minLength, "min-length", 0, "skip texts shorter than this many characters (default from config)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "only report keyword candidates, no LLM calls")
	return cmd
}

func newRisksCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "risks",
		Short: "List the risks in the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := loadDefinitions(opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), defs)
		},
	}
}

func loadDefinitions(opts *options) ([]risk.Definition, error) {
	kb := risk.NewKnowledgeBase(opts.corpus, opts.log)
	defs := kb.Definitions()
	if len(defs) == 0 {
		if err := kb.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("risk knowledge base is empty")
	}
	return defs, nil
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin failed: %w", err)
		}
		return string(b), nil
	}
	if _, err := os.Stat(args[0]); err != nil {
		return "", fmt.Errorf("open input failed: %w", err)
	}
	return textextract.ExtractFile(args[0])
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
