package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type dispatchRow struct {
	bun.BaseModel `bun:"table:dispatch_audit"`

	ID         string         `bun:"id,pk"`
	Tool       string         `bun:"tool,notnull"`
	Provider   string         `bun:"provider,notnull"`
	Args       map[string]any `bun:"args,type:jsonb"`
	Success    bool           `bun:"success,notnull"`
	ErrorKind  string         `bun:"error_kind"`
	Error      string         `bun:"error"`
	DurationMS int64          `bun:"duration_ms,notnull"`
	At         time.Time      `bun:"at,notnull"`
}

func toRow(e contractx.AuditEntry) dispatchRow {
	return dispatchRow{
		ID:         e.ID,
		Tool:       e.Tool,
		Provider:   e.Provider,
		Args:       e.Args,
		Success:    e.Success,
		ErrorKind:  string(e.ErrorKind),
		Error:      e.Error,
		DurationMS: e.Duration.Milliseconds(),
		At:         e.At.UTC(),
	}
}

type PostgresJournal struct {
	db *bun.DB
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(sqldb *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: bun.NewDB(sqldb, pgdialect.New())}
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresJournal, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	j := NewPostgres(sqldb)
	if err := j.db.PingContext(ctx); err != nil {
		_ = j.db.Close()
		return nil, fmt.Errorf("audit: ping postgres: %w", err)
	}
	if err := j.CreateTable(ctx); err != nil {
		_ = j.db.Close()
		return nil, err
	}
	return j, nil
}

func (j *PostgresJournal) CreateTable(ctx context.Context) error {
	if _, err := j.createTableQuery().Exec(ctx); err != nil {
		return fmt.Errorf("audit: create table: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Write(ctx context.Context, entries []contractx.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]dispatchRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toRow(e))
	}
	if _, err := j.insertQuery(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("audit: insert %d entries: %w", len(rows), err)
	}
	return nil
}

func (j *PostgresJournal) Close() error {
	return j.db.Close()
}

func (j *PostgresJournal) createTableQuery() *bun.CreateTableQuery {
	return j.db.NewCreateTable().Model((*dispatchRow)(nil)).IfNotExists()
}

func (j *PostgresJournal) insertQuery(rows *[]dispatchRow) *bun.InsertQuery {
	return j.db.NewInsert().Model(rows).On("CONFLICT (id) DO NOTHING")
}
