package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/podbudget/internal/audit/domain"
	"github.com/smallbiznis/podbudget/internal/audit/repository"
	obscontext "github.com/smallbiznis/podbudget/internal/observability/context"
	"github.com/smallbiznis/podbudget/internal/orgcontext"
	"github.com/smallbiznis/podbudget/pkg/db"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newAuditService(t *testing.T) auditdomain.Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{DB: conn, Log: zaptest.NewLogger(t), GenID: node, Repo: repository.Provide()})
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc := newAuditService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 10)
	ctx = obscontext.WithActor(ctx, "user", "77")
	ctx = obscontext.WithRequestID(ctx, "req-1")
	ctx = WithRequestMeta(ctx, "10.0.0.1", "curl/8")

	target := "123"
	require.NoError(t, svc.AuditLog(ctx, nil, "", nil, "budget.create", "hierarchical_budget", &target, map[string]any{"year": 2024}))
	assert.ErrorIs(t, svc.AuditLog(ctx, nil, "", nil, " ", "x", nil, nil), auditdomain.ErrInvalidAction)

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	entry := resp.AuditLogs[0]
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "77", *entry.ActorID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc := newAuditService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 10)
	other := orgcontext.WithOrgID(context.Background(), 11)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, nil, "system", nil, "budget.update", "hierarchical_budget", nil, nil))
	}
	require.NoError(t, svc.AuditLog(other, nil, "system", nil, "budget.update", "hierarchical_budget", nil, nil))

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.Greater(t, first.AuditLogs[0].ID, first.AuditLogs[1].ID)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "@@"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
	_, err = svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)
}
