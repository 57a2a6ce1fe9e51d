package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/FlowDeck/FlowDeck/internal/cli.version=1.2.3"
	version = "1.4.0"
	logo    = "\n" +
		"  _____ _                ____            _\n" +
		" |  ___| | _____      __|  _ \\  ___  ___| | __\n" +
		" | |_  | |/ _ \\ \\ /\\ / /| | | |/ _ \\/ __| |/ /\n" +
		" |  _| | | (_) \\ V  V / | |_| |  __/ (__|   <\n" +
		" |_|   |_|\\___/ \\_/\\_/  |____/ \\___|\\___|_|\\_\\\n"
)

var rootCmd = &cobra.Command{
	Use:   "flowdeck",
	Short: "FlowDeck - Workflow Chat Client",
	Long:  color.CyanString(logo) + "\nA terminal chat client for n8n-style workflow engines.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(skillsCmd)
}
