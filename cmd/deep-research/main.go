package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/24601/agent-deep-research/internal/config"
)

var (
	// Global flags
	verbose    bool
	apiKeyFlag string
	configPath string
	statePath  string

	// Built once in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deep-research",
	Short: "Start, monitor, and save Gemini Deep Research runs",
	Long: `deep-research drives long-running research on the Gemini Interactions API.

A run executes asynchronously on the server. Start one and poll it to
completion in a single invocation, or start it detached and come back later
with 'status' and 'report'. Human-readable progress goes to stderr; stdout
carries one JSON object per invocation for scripting.

A bare query starts a run:
  deep-research "impact of quantum computing on cryptography"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if apiKeyFlag != "" {
			cfg.APIKey = apiKeyFlag
		}
		if statePath != "" {
			cfg.StatePath = statePath
		}

		zapConfig := zap.NewProductionConfig()
		level, perr := zapcore.ParseLevel(cfg.Logging.Level)
		if perr != nil {
			level = zapcore.InfoLevel
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zapConfig.Level = zap.NewAtomicLevelAt(level)

		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logger.With(zap.String("run_id", uuid.NewString()[:8]))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "Gemini API key (or set GEMINI_DEEP_RESEARCH_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "State file path (default from config)")
}

func main() {
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// normalizeArgs treats a leading argument that is not a known subcommand as
// a research query, so `deep-research "some question"` behaves like
// `deep-research start "some question"`.
func normalizeArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	if strings.HasPrefix(args[0], "-") || knownCommand(args[0]) {
		return args
	}
	return append([]string{"start"}, args...)
}

func knownCommand(name string) bool {
	// cobra registers help and completion itself during Execute, after
	// normalizeArgs has already run.
	switch name {
	case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	for _, c := range rootCmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	return false
}

// printJSON writes the machine-readable result line to stdout.
func printJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
