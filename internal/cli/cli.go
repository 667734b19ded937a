package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// Execute: runs the root command and exits non-zero on error
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "collabboard",
		Short: "Real-time collaborative whiteboard backend",
		Long: `collabboard keeps whiteboard rooms in sync over WebSocket.

Clients authenticate with a JWT, join a room, receive its current
elements and then exchange drawing, cursor and chat events with
everyone else in the room.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		tokenCmd(),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "collabboard %s (%s)\n", version, commit)
		},
	}
}
