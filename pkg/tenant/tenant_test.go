package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestSchemaName(t *testing.T) {
	schema, err := SchemaName("Acme Podcasts, Inc.")
	require.NoError(t, err)
	assert.Equal(t, "tenant_acme_podcasts_inc", schema)

	_, err = SchemaName("!!!")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestQuoteSchemaRejectsInjection(t *testing.T) {
	quoted, err := QuoteSchema("tenant_acme")
	require.NoError(t, err)
	assert.Equal(t, `"tenant_acme"`, quoted)

	_, err = QuoteSchema(`tenant"; DROP SCHEMA public; --`)
	assert.ErrorIs(t, err, ErrInvalidSchema)
	_, err = QuoteSchema("Tenant_Upper")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestScopeRequiresSchema(t *testing.T) {
	db := openTestDB(t)
	err := Scope(context.Background(), db, func(*gorm.DB) error { return nil })
	assert.ErrorIs(t, err, ErrMissingSchema)
}

func TestScopeCommitsAndRollsBack(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`).Error)
	ctx := WithSchema(context.Background(), "tenant_acme")

	err := Scope(ctx, db, func(tx *gorm.DB) error {
		schema, ok := SchemaFromContext(tx.Statement.Context)
		assert.True(t, ok)
		assert.Equal(t, "tenant_acme", schema)
		return tx.Exec(`INSERT INTO notes (id, body) VALUES (1, 'kept')`).Error
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = Scope(ctx, db, func(tx *gorm.DB) error {
		if err := tx.Exec(`INSERT INTO notes (id, body) VALUES (2, 'dropped')`).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM notes`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}
