package main

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	"github.com/smallbiznis/podbudget/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrityQuery(t *testing.T) {
	cfg := config.DefaultBudgetConfig()
	orgID := snowflake.ID(42)

	query, err := integrityQuery(cfg, orgID, 2024, 0)
	require.NoError(t, err)
	assert.Equal(t, orgID, query.OrgID)
	assert.Equal(t, 2024, query.Year)
	assert.Nil(t, query.Month)

	query, err = integrityQuery(cfg, orgID, 2024, 12)
	require.NoError(t, err)
	require.NotNil(t, query.Month)
	assert.Equal(t, 12, *query.Month)

	_, err = integrityQuery(cfg, orgID, 2024, 13)
	assert.ErrorIs(t, err, budgetdomain.ErrInvalidMonth)

	_, err = integrityQuery(cfg, orgID, 2024, -1)
	assert.ErrorIs(t, err, budgetdomain.ErrInvalidMonth)

	_, err = integrityQuery(cfg, orgID, 1999, 1)
	assert.ErrorIs(t, err, budgetdomain.ErrInvalidYear)
}
