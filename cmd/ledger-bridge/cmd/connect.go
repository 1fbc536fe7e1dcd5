package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var redirectURI string

var connectCmd = &cobra.Command{
	Use:   "connect <authorization-code>",
	Short: "Connect a company using an OAuth authorization code",
	Long: `Exchange an OAuth authorization code for tokens and store them for
the configured subject and scope.

Examples:
  ledger-bridge connect abc123 --redirect-uri https://example.com/callback`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Remove the stored credentials for the configured subject",
	Args:  cobra.NoArgs,
	RunE:  runDisconnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)

	connectCmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "Redirect URI used in the authorization request (required)")
	connectCmd.MarkFlagRequired("redirect-uri")
}

func runConnect(cmd *cobra.Command, args []string) error {
	application, err := buildApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	if err := application.tokens.Connect(ctx, subject, scope, args[0], redirectURI); err != nil {
		return err
	}
	fmt.Printf("Connected %s (scope %q)\n", subject, scope)
	return nil
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	application, err := buildApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	if err := application.tokens.Disconnect(ctx, subject, scope); err != nil {
		return err
	}
	fmt.Printf("Disconnected %s (scope %q)\n", subject, scope)
	return nil
}
