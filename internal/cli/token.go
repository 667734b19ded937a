package cli

import (
	"fmt"
	"time"

	"collabboard/internal/auth"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		id    string
		name  string
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local development",
		Long: `Mint an access token signed with JWT_SECRET.

The token carries userId, name and email, and expires after --ttl
(TOKEN_TTL when not given).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if id == "" {
				return fmt.Errorf("--id is required")
			}

			tok, err := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL).Issue(auth.Identity{
				ID:    id,
				Name:  name,
				Email: email,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "User id (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime")

	return cmd
}
