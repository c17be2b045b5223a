package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/medivoice/voicerelay/pkg/cli"
)

var (
	// Global flags
	cfgFile     string
	contextName string
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voicerelay",
	Short: "Realtime voice gateway for streaming ASR and TTS",
	Long: `voicerelay - a WebSocket gateway bridging thin clients to realtime
cloud speech services.

The gateway terminates local client WebSocket connections and relays them
to the upstream streaming recognition (ASR) and synthesis (TTS) protocols,
one upstream connection per conversation.

Examples:
  # Set up a new context
  voicerelay config add-context prod --api-key YOUR_API_KEY

  # Run the gateway
  voicerelay -c prod serve --addr :8007
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.voicerelay/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	// Configure slog based on verbose flag
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	globalConfig, err = cli.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config: %v\n", err)
	}
}

// resolveContext returns the selected context, or nil if none is
// configured. Commands fall back to flags when no context exists.
func resolveContext() *cli.Context {
	if globalConfig == nil {
		return nil
	}
	ctx, err := globalConfig.ResolveContext(contextName)
	if err != nil {
		return nil
	}
	return ctx
}
