package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FlowDeck/FlowDeck/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ FlowDeck Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 FlowDeck Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults in effect)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config load error: %v\n", err)
			return
		}
		if cfg.Gateway.WebhookURL != "" {
			fmt.Println("Webhook: ✓ Configured")
		} else {
			fmt.Println("Webhook: ✗ Not set (run 'flowdeck configure gateway')")
		}
		if cfg.Gateway.BaseURL != "" {
			fmt.Println("Exec API: ✓ Configured")
		} else {
			fmt.Println("Exec API: ✗ Not set (execution progress disabled)")
		}
		if cfg.Graph.BaseURL != "" {
			fmt.Println("Graph:   ✓ Configured (" + cfg.Graph.BaseURL + ")")
		} else {
			fmt.Println("Graph:   ✗ Not set (graph and skills commands disabled)")
		}
		if cfg.Notify.Enabled {
			fmt.Println("Notify:  ✓ Slack webhook enabled")
		} else {
			fmt.Println("Notify:  ✗ Disabled")
		}
		if cfg.Mirror.Enabled {
			fmt.Printf("Mirror:  ✓ Kafka topic %q\n", cfg.Mirror.Topic)
		} else {
			fmt.Println("Mirror:  ✗ Disabled")
		}
		fmt.Printf("Stream:  %s\n", cfg.Stream.Speed)
		fmt.Println("Status:  Ready")
	},
}
