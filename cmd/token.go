package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

var (
	tokenOwner   string
	tokenSession string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with JWT_SECRET_KEY",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := uuid.New()
		if tokenOwner != "" {
			parsed, err := uuid.Parse(tokenOwner)
			if err != nil {
				return fmt.Errorf("invalid --owner: %w", err)
			}
			owner = parsed
		}
		auth := services.NewAuthService(logger.Nop(), envutil.String("JWT_SECRET_KEY", ""), envutil.String("JWT_ISSUER", ""))
		tok, err := auth.IssueToken(owner, tokenSession, tokenTTL)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(map[string]any{"owner_id": owner, "session_id": tokenSession, "token": tok})
		}
		fmt.Println(dim("owner: " + owner.String()))
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOwner, "owner", "", "owner id (default: a new random id)")
	tokenCmd.Flags().StringVar(&tokenSession, "session", "", "session id embedded as the sid claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime; 0 never expires")
}
