package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FlowDeck/FlowDeck/internal/auth"
	"github.com/FlowDeck/FlowDeck/internal/config"
	"github.com/FlowDeck/FlowDeck/internal/secrets"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		printHeader("🔐 FlowDeck Login")
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		key, err := secrets.NewSessionKey()
		if err != nil {
			return err
		}
		gate := auth.FromConfig(key, cfg.Auth)
		if err := promptLogin(gate, cfg.Auth.Username); err != nil {
			return err
		}
		sess, _ := gate.Current()
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (session valid until %s).\n",
			sess.Username, sess.ExpiresAt.Format("15:04"))
		fmt.Fprintln(cmd.OutOrStdout(), "Run 'flowdeck chat' to start a conversation.")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Explain session scope",
	Run: func(cmd *cobra.Command, args []string) {
		// Sessions are volatile and per process; exiting chat already ends
		// one. The command exists so the flow reads naturally.
		fmt.Fprintln(cmd.OutOrStdout(), "Sessions end when the chat process exits; nothing to clear.")
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Set or replace the account password",
	RunE: func(cmd *cobra.Command, args []string) error {
		printHeader("🔑 FlowDeck Password")
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		in := bufio.NewReader(os.Stdin)
		username := promptLine(in, fmt.Sprintf("Username [%s]: ", cfg.Auth.Username))
		if username == "" {
			username = cfg.Auth.Username
		}
		password, err := promptPassword("New password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Repeat password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		key, err := secrets.NewSessionKey()
		if err != nil {
			return err
		}
		gate := auth.FromConfig(key, cfg.Auth)
		if err := gate.SetPassword(username, password); err != nil {
			return err
		}
		if cfg.Auth.Username != username {
			cfg.Auth.Username = username
			if err := config.Save(cfg); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
		fmt.Fprintln(cmd.OutOrStdout(), "Note: chats encrypted under the old password can no longer be opened.")
		return nil
	},
}
