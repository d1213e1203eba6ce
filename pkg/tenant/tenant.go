// Package tenant isolates organization data in per-tenant database schemas.
package tenant

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const schemaPrefix = "tenant_"

var (
	ErrMissingSchema = errors.New("missing_tenant_schema")
	ErrInvalidSchema = errors.New("invalid_tenant_schema")

	schemaPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)
)

// SchemaName derives the schema for an organization slug or name.
func SchemaName(name string) (string, error) {
	base := strings.ReplaceAll(slug.Make(name), "-", "_")
	if base == "" {
		return "", ErrInvalidSchema
	}
	schema := schemaPrefix + base
	if len(schema) > 63 {
		schema = strings.TrimRight(schema[:63], "_")
	}
	if !ValidSchema(schema) {
		return "", ErrInvalidSchema
	}
	return schema, nil
}

func ValidSchema(schema string) bool {
	return schemaPattern.MatchString(schema)
}

// QuoteSchema returns the schema as a quoted SQL identifier.
func QuoteSchema(schema string) (string, error) {
	if !ValidSchema(schema) {
		return "", ErrInvalidSchema
	}
	return pq.QuoteIdentifier(schema), nil
}

// Scope runs fn inside one transaction bound to the context's tenant schema.
// The transaction is committed when fn returns nil and rolled back otherwise.
func Scope(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	schema, ok := SchemaFromContext(ctx)
	if !ok {
		return ErrMissingSchema
	}
	return ScopeSchema(ctx, db, schema, fn)
}

func ScopeSchema(ctx context.Context, db *gorm.DB, schema string, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return errors.New("tenant scope requires a database handle")
	}
	ctx = WithSchema(ctx, schema)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := UseSchema(tx, schema); err != nil {
			return err
		}
		return fn(tx)
	})
}

// UseSchema points the current transaction at the tenant schema.
// Dialects without schemas (sqlite) keep every tenant table in one namespace.
func UseSchema(tx *gorm.DB, schema string) error {
	quoted, err := QuoteSchema(schema)
	if err != nil {
		return err
	}
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SET LOCAL search_path TO " + quoted + ", public").Error
}

// CreateSchema provisions the schema for a new tenant.
func CreateSchema(ctx context.Context, db *gorm.DB, schema string) error {
	quoted, err := QuoteSchema(schema)
	if err != nil {
		return err
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return db.WithContext(ctx).Exec("CREATE SCHEMA IF NOT EXISTS " + quoted).Error
}
