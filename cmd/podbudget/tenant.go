package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	orgdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	tenantName        string
	tenantMasterEmail string
	tenantMasterName  string
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage organizations and their schemas",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an organization and provision its schema",
	Long: `Create an organization, derive its tenant schema from the name and migrate it.

With --master-email the user is created when missing and added as the
organization master.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(tenantName) == "" {
			return errors.New("--name is required")
		}
		ctx := cmd.Context()
		return runOnce(ctx, func(orgs orgdomain.Service, log *zap.Logger) error {
			return createTenant(ctx, orgs, log)
		},
			infraModules(),
			domainModules(),
		)
	},
}

func init() {
	tenantCreateCmd.Flags().StringVar(&tenantName, "name", "", "Organization name")
	tenantCreateCmd.Flags().StringVar(&tenantMasterEmail, "master-email", "", "Email of the organization master")
	tenantCreateCmd.Flags().StringVar(&tenantMasterName, "master-name", "", "Display name of the organization master")
	tenantCmd.AddCommand(tenantCreateCmd)
}

type tenantOutput struct {
	Organization *orgdomain.OrganizationResponse `json:"organization"`
	Master       *orgdomain.UserResponse         `json:"master,omitempty"`
}

func createTenant(ctx context.Context, orgs orgdomain.Service, log *zap.Logger) error {
	org, err := orgs.Create(ctx, orgdomain.CreateOrganizationRequest{Name: tenantName})
	if err != nil {
		return err
	}
	out := tenantOutput{Organization: org}

	if email := strings.TrimSpace(tenantMasterEmail); email != "" {
		name := strings.TrimSpace(tenantMasterName)
		if name == "" {
			name = email
		}
		user, err := orgs.EnsureUser(ctx, orgdomain.EnsureUserRequest{Name: name, Email: email})
		if err != nil {
			return err
		}
		if err := orgs.AddMember(ctx, org.ID, orgdomain.AddMemberRequest{
			UserID: user.ID,
			Role:   orgdomain.RoleMaster,
		}); err != nil {
			return err
		}
		log.Info("organization master added", zap.String("org_id", org.ID), zap.String("user_id", user.ID))
		out.Master = user
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
