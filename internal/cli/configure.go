package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FlowDeck/FlowDeck/internal/config"
	"github.com/FlowDeck/FlowDeck/internal/controller"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Edit gateway, graph and streaming settings",
}

var (
	cfgWebhookURL   string
	cfgGatewayAPIKey string
	cfgExecutionURL string

	cfgGraphURL      string
	cfgGraphUser     string
	cfgGraphPassword string
	cfgGraphDatabase string

	cfgStreamSpeed string
)

var configureGatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Set the workflow engine connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("webhook-url") {
			cfg.Gateway.WebhookURL = cfgWebhookURL
		}
		if cmd.Flags().Changed("api-key") {
			cfg.Gateway.APIKey = cfgGatewayAPIKey
		}
		if cmd.Flags().Changed("execution-url") {
			cfg.Gateway.BaseURL = cfgExecutionURL
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Gateway configuration saved.")
		return nil
	},
}

var configureGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Set the graph database connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("url") {
			cfg.Graph.BaseURL = cfgGraphURL
		}
		if cmd.Flags().Changed("user") {
			cfg.Graph.Username = cfgGraphUser
		}
		if cmd.Flags().Changed("password") {
			cfg.Graph.Password = cfgGraphPassword
		}
		if cmd.Flags().Changed("database") {
			cfg.Graph.Database = cfgGraphDatabase
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Graph configuration saved.")
		return nil
	},
}

var configureStreamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Set the reply streaming speed",
	RunE: func(cmd *cobra.Command, args []string) error {
		speed := strings.ToLower(strings.TrimSpace(cfgStreamSpeed))
		if _, err := controller.SpeedDelay(speed); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cfg.Stream.Speed = speed
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Streaming speed set to %s.\n", speed)
		return nil
	},
}

func init() {
	configureGatewayCmd.Flags().StringVar(&cfgWebhookURL, "webhook-url", "", "Workflow webhook URL")
	configureGatewayCmd.Flags().StringVar(&cfgGatewayAPIKey, "api-key", "", "Optional API key sent with every request")
	configureGatewayCmd.Flags().StringVar(&cfgExecutionURL, "execution-url", "", "Base URL of the execution status API")

	configureGraphCmd.Flags().StringVar(&cfgGraphURL, "url", "", "Graph HTTP endpoint, e.g. http://localhost:7474")
	configureGraphCmd.Flags().StringVar(&cfgGraphUser, "user", "", "Graph username")
	configureGraphCmd.Flags().StringVar(&cfgGraphPassword, "password", "", "Graph password")
	configureGraphCmd.Flags().StringVar(&cfgGraphDatabase, "database", "", "Graph database name")

	configureStreamCmd.Flags().StringVar(&cfgStreamSpeed, "speed", "normal", "instant, fast, normal or slow")

	configureCmd.AddCommand(configureGatewayCmd)
	configureCmd.AddCommand(configureGraphCmd)
	configureCmd.AddCommand(configureStreamCmd)
}
