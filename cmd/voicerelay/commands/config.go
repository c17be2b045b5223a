package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medivoice/voicerelay/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration contexts",
}

var (
	addCtxAPIKey string
	addCtxASRURL string
	addCtxTTSURL string
	addCtxVoice  string
	addCtxListen string
)

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or update a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := globalConfig.AddContext(name, &cli.Context{
			APIKey:         addCtxAPIKey,
			RecognitionURL: addCtxASRURL,
			SynthesisURL:   addCtxTTSURL,
			Voice:          addCtxVoice,
			Listen:         addCtxListen,
		})
		if err != nil {
			return err
		}
		cli.PrintSuccess("context %q saved to %s", name, globalConfig.Path())
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := globalConfig.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("switched to context %q", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Remove a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := globalConfig.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("deleted context %q", args[0])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range globalConfig.ListContexts() {
			marker := "  "
			if name == globalConfig.CurrentContext {
				marker = "* "
			}
			fmt.Println(marker + name)
		}
		return nil
	},
}

func init() {
	configAddContextCmd.Flags().StringVar(&addCtxAPIKey, "api-key", "", "upstream API key")
	configAddContextCmd.Flags().StringVar(&addCtxASRURL, "asr-url", "", "ASR upstream endpoint override")
	configAddContextCmd.Flags().StringVar(&addCtxTTSURL, "tts-url", "", "TTS upstream endpoint override")
	configAddContextCmd.Flags().StringVar(&addCtxVoice, "voice", "", "default synthesis voice")
	configAddContextCmd.Flags().StringVar(&addCtxListen, "listen", "", "default gateway listen address")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configListCmd)
}
