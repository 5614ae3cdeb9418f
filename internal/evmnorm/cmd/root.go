package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"evmnorm/internal/cache"
	"evmnorm/internal/config"
	evmlog "evmnorm/internal/evmnorm/log"
	"evmnorm/internal/logging"
	"evmnorm/internal/pipeline"
	"evmnorm/internal/ui/colorize"
)

// Version is set at build time with -ldflags.
var Version = "dev"

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().Bool("keep-metadata", false, "Keep the compiler metadata trailer")
	rootCmd.PersistentFlags().Bool("keep-nops", false, "Keep JUMPDESTs that no constant jump targets")
	rootCmd.PersistentFlags().Bool("raw-constants", false, "Keep PUSH operands instead of placeholder tokens")
	rootCmd.PersistentFlags().Int("max-input", 0, "Largest accepted decoded bytecode in bytes (default from config)")
}

var rootCmd = &cobra.Command{
	Use:   "evmnorm",
	Short: "Normalize EVM bytecode and score structural similarity",
	Long: `Evmnorm decodes EVM bytecode, strips compiler metadata, removes unreferenced
JUMPDESTs and replaces PUSH constants with placeholder tokens. The normalized
program is summarized as a fixed-length feature vector so contracts that differ
only by literals, addresses or metadata compare as near-identical.`,
	Example: `
# Normalize a contract read from a file
evmnorm normalize @Token.bin

# Compare two deployments
evmnorm compare 0x6080... @other.bin

# Score a corpus against a reference
evmnorm batch corpus.txt --reference @Token.bin
  `,
	SilenceUsage: true,
}

// app is the per-invocation state built from flags, config and environment.
type app struct {
	cfg    config.Config
	logger *logging.LoggerCloser
	pipe   *pipeline.Pipeline
	cache  *cache.Cache[*pipeline.Analysis] // nil when caching is off
}

// newApp loads the configuration and builds the pipeline for cmd.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if keep, _ := cmd.Flags().GetBool("keep-metadata"); keep {
		cfg.Normalize.RemoveMetadata = false
	}
	if keep, _ := cmd.Flags().GetBool("keep-nops"); keep {
		cfg.Normalize.RemoveNops = false
	}
	if raw, _ := cmd.Flags().GetBool("raw-constants"); raw {
		cfg.Normalize.NormalizeConstants = false
	}
	if cmd.Flags().Changed("max-input") {
		cfg.MaxInputBytes, _ = cmd.Flags().GetInt("max-input")
	}
	debug, _ := cmd.Flags().GetBool("debug")
	debug = debug || logging.IsDebug()
	if debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewLoggerWithWriter(cmd.ErrOrStderr())
	if logging.ToFile() {
		logger = logging.NewLogger()
	}
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
	evmlog.Setup(logger.Logger, debug)

	opts := []pipeline.Option{
		pipeline.WithConfig(cfg.Normalize),
		pipeline.WithMaxInput(cfg.MaxInputBytes),
		pipeline.WithLogger(logger.Logger),
	}
	var c *cache.Cache[*pipeline.Analysis]
	if cfg.CacheSize > 0 {
		if c, err = cache.New[*pipeline.Analysis](cfg.CacheSize); err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithCache(c))
	}
	logger.Debug("Configuration loaded", "file", path, "normalize", cfg.Normalize.Fingerprint(), "max_input", cfg.MaxInputBytes)

	return &app{
		cfg:    cfg,
		logger: logger,
		pipe:   pipeline.New(opts...),
		cache:  c,
	}, nil
}

func (a *app) Close() error {
	return a.logger.Close()
}

// interactive reports whether stdout is a terminal.
func interactive() bool {
	return term.IsTerminal(os.Stdout.Fd())
}

func Execute() {
	// Bypass fang when output is being piped so it stays machine readable
	if !interactive() {
		os.Setenv(colorize.NoColorEnv, "1")
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	// Use fang for enhanced CLI experience with markdown rendering
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// printf writes to the command's output stream.
func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
