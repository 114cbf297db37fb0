package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/groovydhruv/power-ups/pkg/cli"
)

var (
	verbose     bool
	configPath  string
	contextName string

	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "walkie",
	Short: "Push-to-talk voice sessions from the terminal",
	Long: `walkie - talk to a streaming voice backend.

A session receives spoken replies as streamed WAV chunks, plays them as
soon as they become decodable and stores a durable copy of every message.
Recordings are sent back to the backend the same way.

Configuration lives in ~/.walkie/config.yaml and holds named contexts.

Examples:
  walkie config add dev --base-url https://voice.example.com --user u1 --topic daily
  walkie talk
  walkie history
  walkie play https://cdn.example.com/audio/u1/daily/m1.wav --out reply.pcm`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.walkie/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context to use (default: current)")
}

// GetConfig loads the configuration on first use.
func GetConfig() (*cli.Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}
	cfg, err := cli.LoadConfigWithPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("config not available: %w", err)
	}
	globalConfig = cfg
	return cfg, nil
}

// CurrentContext resolves the --context flag.
func CurrentContext() (*cli.Context, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return cfg.ResolveContext(contextName)
}
