// Package main provides the vibe-burden command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-burden/internal/burden"
	"github.com/inodb/vibe-burden/internal/duckdb"
	"github.com/inodb/vibe-burden/internal/normalize"
	"github.com/inodb/vibe-burden/internal/pipeline"
)

// Exit codes
const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitUsage     = 2
	ExitInterrupt = 130
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const configName = ".vibe-burden"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "Quitting.")
		return ExitInterrupt
	}
	if err == nil {
		return ExitSuccess
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", uerr.err)
		if uerr.cmd != nil {
			fmt.Fprint(os.Stderr, uerr.cmd.UsageString())
		}
		return ExitUsage
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUsage
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if h := hint(err); h != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", h)
	}
	return ExitError
}

// hint suggests a fix for well-known failures.
func hint(err error) string {
	var nm *burden.NoMatchError
	switch {
	case errors.Is(err, burden.ErrIncomplete):
		return "An interrupted run left this table unfinished; rerun with --overwrite to rebuild it"
	case errors.Is(err, burden.ErrNotFound):
		return "Check that the path is correct"
	case errors.Is(err, burden.ErrAlreadyExists):
		return "Use --overwrite to replace it, or move it away"
	case errors.Is(err, burden.ErrNoInput):
		return "Check the input paths, --phenotype and --number"
	case errors.As(err, &nm):
		return "Use one of the listed phenotypes in --phenotype"
	}
	return ""
}

// usageError marks command-line misuse.
type usageError struct {
	cmd *cobra.Command
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// usageArgs wraps a positional argument validator so that failures exit with ExitUsage.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{cmd: cmd, err: err}
		}
		return nil
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vibe-burden",
		Short: "Gene-level allele-frequency burden tables from annotated VCFs",
		Long: `vibe-burden normalizes VEP-annotated VCFs into per-sample tables and
aggregates alt allele counts per gene by impact class and gnomAD MAX_AF bucket.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{cmd: cmd, err: err}
	})

	pf := root.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.String("run-id", "", "Identifier for this run (default: generated from the current time)")
	pf.IntP("workers", "w", 0, "Samples processed in parallel (default: number of CPUs)")
	pf.Bool("progress", false, "Show a progress bar when loading tables")
	pf.String("duckdb", "", "DuckDB database file (default: in-memory)")
	for key, name := range map[string]string{
		"verbose":     "verbose",
		"run_id":      "run-id",
		"workers":     "workers",
		"progress":    "progress",
		"duckdb.path": "duckdb",
	} {
		if err := viper.BindPFlag(key, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newFindtypeCmd())
	root.AddCommand(newReadvcfsCmd())
	root.AddCommand(newLoaddbCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// initConfig reads ~/.vibe-burden.yaml and VIBE_BURDEN_* environment variables.
func initConfig() error {
	viper.SetDefault("workers", runtime.NumCPU())
	viper.SetDefault("csq.impact", normalize.DefaultFieldNames.Impact)
	viper.SetDefault("csq.gene", normalize.DefaultFieldNames.Gene)
	viper.SetDefault("csq.id", normalize.DefaultFieldNames.ID)
	viper.SetDefault("csq.max_af", normalize.DefaultFieldNames.MaxAF)
	viper.SetDefault("ledger.enabled", true)

	viper.SetEnvPrefix("VIBE_BURDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func configFilePath() (string, error) {
	if f := viper.ConfigFileUsed(); f != "" {
		return f, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configName+".yaml"), nil
}

// newLogger builds a console logger on stderr.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	if viper.GetBool("verbose") {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// pipelineConfig collects the shared settings from flags, environment and config file.
func pipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.RunID = viper.GetString("run_id")
	cfg.Workers = viper.GetInt("workers")
	cfg.Progress = viper.GetBool("progress")
	cfg.Prefixes = viper.GetStringSlice("sample.prefixes")
	cfg.FieldNames = normalize.FieldNames{
		Impact: viper.GetString("csq.impact"),
		Gene:   viper.GetString("csq.gene"),
		ID:     viper.GetString("csq.id"),
		MaxAF:  viper.GetString("csq.max_af"),
	}
	cfg.Ledger = viper.GetBool("ledger.enabled")
	cfg.LedgerDebug = viper.GetBool("ledger.debug")
	return cfg
}

func openStore() (*duckdb.Store, error) {
	return duckdb.OpenWithOptions(viper.GetString("duckdb.path"), duckdb.Options{
		Threads:     viper.GetInt("duckdb.threads"),
		MemoryLimit: viper.GetString("duckdb.memory_limit"),
	})
}

// withPipeline sets up logging, the table engine and a pipeline, then calls fn.
func withPipeline(cfg pipeline.Config, fn func(*pipeline.Pipeline) error) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	store.SetLogger(logger)

	p := pipeline.New(cfg, store)
	p.SetLogger(logger)
	p.RunID()
	return fn(p)
}

func printResult(res *pipeline.Result) {
	fmt.Printf("Run %s: %d samples (%d computed, %d reused), %d entries, %d genes\n",
		res.RunID, res.Samples, res.Computed, res.Reused, res.Entries, len(res.Rows))
	fmt.Printf("  Aggregate: %s\n", res.AggregatePath)
	fmt.Printf("  TSV:       %s\n", res.TSVPath)
}
