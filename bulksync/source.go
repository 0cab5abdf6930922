/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package bulksync

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
)

// Source pages rows out of an external system, one partition at a time.
// Page returns up to size rows of partition with ids greater than afterID,
// ordered by id.
type Source interface {
	Partitions(ctx context.Context) ([]string, error)
	Page(ctx context.Context, partition, afterID string, size int) ([]storagemodels.Entity, error)
}

// Querier is the part of *pgxpool.Pool the Postgres source uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DefaultTable is the relational table read by PostgresSource.
const DefaultTable = "entities"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSource reads entities from a relational table partitioned by
// tenant:
//
//	CREATE TABLE entities (
//	    id             text PRIMARY KEY,
//	    tenant_id      text NOT NULL,
//	    entity_type_id text NOT NULL,
//	    parent_id      text,
//	    attributes     jsonb NOT NULL DEFAULT '{}',
//	    hidden         boolean NOT NULL DEFAULT false,
//	    created_by     text,
//	    created_at     timestamptz,
//	    updated_by     text,
//	    updated_at     timestamptz
//	);
type PostgresSource struct {
	db    Querier
	table string
}

// NewPostgresSource creates a source reading table through db.
func NewPostgresSource(db Querier, table string) (*PostgresSource, error) {
	if db == nil {
		return nil, errors.NewValidationError("db", "a database handle is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !identifier.MatchString(table) {
		return nil, errors.NewValidationError("table", fmt.Sprintf("invalid table name %q", table))
	}
	return &PostgresSource{db: db, table: table}, nil
}

// OpenPool connects to Postgres and verifies the connection.
func OpenPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.NewValidationError("database_url", err.Error())
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.NewUpstreamUnavailableError(backendName, err)
	}
	return pool, nil
}

const backendName = "postgres"

// Partitions lists the tenants present in the table.
func (s *PostgresSource) Partitions(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT DISTINCT tenant_id FROM %s ORDER BY tenant_id`, s.table))
	if err != nil {
		return nil, wrapError("partitions", err)
	}
	tenants, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapError("partitions", err)
	}
	return tenants, nil
}

type record struct {
	ID           string
	TenantID     string
	EntityTypeID string
	ParentID     *string
	Attributes   map[string]any
	Hidden       bool
	CreatedBy    *string
	CreatedAt    *time.Time
	UpdatedBy    *string
	UpdatedAt    *time.Time
}

// Page reads the next keyset page of partition.
func (s *PostgresSource) Page(ctx context.Context, partition, afterID string, size int) ([]storagemodels.Entity, error) {
	query := fmt.Sprintf(`
        SELECT id, tenant_id, entity_type_id, parent_id, attributes, hidden,
            created_by, created_at, updated_by, updated_at
        FROM %s
        WHERE tenant_id = $1 AND id > $2
        ORDER BY id
        LIMIT $3
    `, s.table)

	rows, err := s.db.Query(ctx, query, partition, afterID, size)
	if err != nil {
		return nil, wrapError("page", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (record, error) {
		var r record
		err := row.Scan(&r.ID, &r.TenantID, &r.EntityTypeID, &r.ParentID, &r.Attributes, &r.Hidden,
			&r.CreatedBy, &r.CreatedAt, &r.UpdatedBy, &r.UpdatedAt)
		return r, err
	})
	if err != nil {
		return nil, wrapError("page", err)
	}

	out := make([]storagemodels.Entity, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.entity())
	}
	return out, nil
}

// entity converts a row. Attribute values that are not scalars are dropped.
func (r record) entity() storagemodels.Entity {
	ent := storagemodels.Entity{
		ID:           r.ID,
		TenantID:     r.TenantID,
		EntityTypeID: r.EntityTypeID,
		ParentID:     deref(r.ParentID),
		Hidden:       r.Hidden,
		Attributes:   make(map[string]storagemodels.Value, len(r.Attributes)),
		Metadata: storagemodels.Metadata{
			CreatedBy: deref(r.CreatedBy),
			UpdatedBy: deref(r.UpdatedBy),
		},
	}
	if r.CreatedAt != nil {
		ent.Metadata.CreatedAt = strfmt.DateTime(r.CreatedAt.UTC())
	}
	if r.UpdatedAt != nil {
		ent.Metadata.UpdatedAt = strfmt.DateTime(r.UpdatedAt.UTC())
	}
	for k, raw := range r.Attributes {
		v, err := storagemodels.FromAny(raw)
		if err != nil || v.IsNull() {
			continue
		}
		ent.Attributes[k] = v
	}
	return ent
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func wrapError(op string, err error) error {
	var netErr net.Error
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) || stderrors.As(err, &netErr) {
		return errors.NewUpstreamUnavailableError(backendName, err)
	}
	return fmt.Errorf("postgres %s failed: %w", op, err)
}
