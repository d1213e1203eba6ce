package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	authservice "github.com/smallbiznis/podbudget/internal/auth/service"
	"github.com/smallbiznis/podbudget/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	tokenUserID string
	tokenOrgID  string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Session token utilities",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign a session token for a user in an organization",
	Long: `Sign an HS256 session token with AUTH_JWT_SECRET. Membership is not
checked here; the API resolves the member role on every request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := snowflake.ParseString(tokenUserID)
		if err != nil || userID == 0 {
			return errors.New("--user must be a user id")
		}
		orgID, err := snowflake.ParseString(tokenOrgID)
		if err != nil || orgID == 0 {
			return errors.New("--org must be an organization id")
		}

		verifier, err := authservice.NewVerifier(config.Load(), zap.NewNop())
		if err != nil {
			return err
		}
		token, err := verifier.Sign(userID, orgID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenUserID, "user", "", "User id")
	tokenIssueCmd.Flags().StringVar(&tokenOrgID, "org", "", "Organization id")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "Token lifetime")
	tokenCmd.AddCommand(tokenIssueCmd)
}
