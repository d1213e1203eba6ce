package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"github.com/smallbiznis/podbudget/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestAuthorizer(t *testing.T) Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`CREATE TABLE organization_members (
		id INTEGER PRIMARY KEY, org_id INTEGER, user_id INTEGER, role TEXT, created_at DATETIME)`).Error)
	require.NoError(t, conn.Exec(`INSERT INTO organization_members (id, org_id, user_id, role) VALUES
		(1, 10, 100, 'master'), (2, 10, 200, 'sales'), (3, 10, 300, 'admin')`).Error)

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)
	return NewService(Params{DB: conn, Log: zaptest.NewLogger(t), Enforcer: enforcer})
}

func TestAuthorizeByRole(t *testing.T) {
	svc := newTestAuthorizer(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		actor  string
		object string
		action string
		err    error
	}{
		{"master deletes budgets", "user:100", ObjectBudget, ActionBudgetDelete, nil},
		{"admin reads audit logs", "user:300", ObjectAuditLog, ActionAuditLogView, nil},
		{"sales edits budgets", "user:200", ObjectBudget, ActionBudgetBatchUpdate, nil},
		{"sales views comparison", "user:200", ObjectBudgetReport, ActionBudgetReportView, nil},
		{"sales cannot delete budgets", "user:200", ObjectBudget, ActionBudgetDelete, ErrForbidden},
		{"sales cannot create agencies", "user:200", ObjectAgency, ActionAgencyCreate, ErrForbidden},
		{"sales cannot read audit logs", "user:200", ObjectAuditLog, ActionAuditLogView, ErrForbidden},
		{"non member", "user:999", ObjectBudget, ActionBudgetView, ErrForbidden},
		{"system job", "system", ObjectBudgetReport, ActionBudgetReportView, nil},
		{"malformed actor", "api_key:1", ObjectBudget, ActionBudgetView, ErrInvalidActor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tc.actor, "10", tc.object, tc.action)
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestAuthorizeUsesMemberFromContext(t *testing.T) {
	svc := newTestAuthorizer(t)
	ctx := orgcontext.WithOrgID(context.Background(), 10)
	ctx = orgcontext.WithMember(ctx, orgcontext.Member{UserID: 200, Role: orgcontext.RoleAdmin})

	assert.NoError(t, svc.Authorize(ctx, "user:200", "10", ObjectBudget, ActionBudgetDelete))
}

func TestAuthorizeRejectsEmptyInput(t *testing.T) {
	svc := newTestAuthorizer(t)
	ctx := context.Background()
	assert.ErrorIs(t, svc.Authorize(ctx, "", "10", ObjectBudget, ActionBudgetView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:100", "", ObjectBudget, ActionBudgetView), ErrInvalidOrganization)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:100", "10", "", ActionBudgetView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:100", "10", ObjectBudget, ""), ErrInvalidAction)
}
