// Package sqlstore implements the document store on a relational database:
// SQLite (modernc.org/sqlite) for single-node deployments and PostgreSQL
// (lib/pq) for shared ones. Documents live as JSON in one table keyed by
// (collection, id); a batch is one SQL transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlstore")

// Store implements port.DocumentStore over database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

// Open connects, runs migrations and returns a ready store.
// For SQLite the dsn is a file path; its directory is created if needed.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		if dir := filepath.Dir(sqlitePath(dsn)); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time; avoids SQLITE_BUSY between concurrent batches
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(driver, dsn); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sql document store ready", zap.String("driver", driver))
	return &Store{db: db, dialect: d, logger: logger}, nil
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) service() string {
	return "sqlstore/" + s.dialect.driver
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, ref port.DocRef) (port.Document, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.Get")
	defer span.End()
	span.SetAttributes(attribute.String("collection", ref.Collection), attribute.String("doc.id", ref.ID))

	var raw string
	err := s.db.QueryRowContext(ctx, s.dialect.getSQL, ref.Collection, ref.ID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return port.Document{ID: ref.ID}, nil
	}
	if err != nil {
		s.logger.Error("sqlstore: get failed",
			zap.String("collection", ref.Collection),
			zap.String("id", ref.ID),
			zap.Error(err),
		)
		return port.Document{}, &domain.ErrExternalService{Service: s.service(), Err: err}
	}

	data, err := decode(raw)
	if err != nil {
		return port.Document{}, err
	}
	return port.Document{ID: ref.ID, Exists: true, Data: data}, nil
}

// QueryByEquality returns documents whose JSON field equals value.
func (s *Store) QueryByEquality(ctx context.Context, collection, field, value string) ([]port.Document, error) {
	ctx, span := tracer.Start(ctx, "SQLStore.QueryByEquality")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.String("field", field))

	query, err := s.dialect.querySQL(field)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "field", Message: err.Error()}
	}

	rows, err := s.db.QueryContext(ctx, query, collection, value)
	if err != nil {
		s.logger.Error("sqlstore: query failed",
			zap.String("collection", collection),
			zap.String("field", field),
			zap.Error(err),
		)
		return nil, &domain.ErrExternalService{Service: s.service(), Err: err}
	}
	defer rows.Close()

	docs := make([]port.Document, 0)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, &domain.ErrExternalService{Service: s.service(), Err: err}
		}
		data, err := decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, port.Document{ID: id, Exists: true, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrExternalService{Service: s.service(), Err: err}
	}
	return docs, nil
}

// Ref builds a reference, generating an id when none is given.
func (s *Store) Ref(collection, id string) port.DocRef {
	if id == "" {
		id = uuid.NewString()
	}
	return port.DocRef{Collection: collection, ID: id}
}

// NewBatch starts a batch.
func (s *Store) NewBatch() port.Batch {
	return &batch{store: s}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.ErrExternalService{Service: s.service(), Err: err}
	}
	return nil
}

type op struct {
	ref    port.DocRef
	data   map[string]any
	delete bool
}

type batch struct {
	store     *Store
	ops       []op
	committed bool
}

func (b *batch) Set(ref port.DocRef, data map[string]any) {
	b.ops = append(b.ops, op{ref: ref, data: data})
}

func (b *batch) Delete(ref port.DocRef) {
	b.ops = append(b.ops, op{ref: ref, delete: true})
}

func (b *batch) Len() int {
	return len(b.ops)
}

// Commit runs every operation in one transaction.
func (b *batch) Commit(ctx context.Context) error {
	if b.committed {
		return port.ErrBatchCommitted
	}
	b.committed = true

	s := b.store
	ctx, span := tracer.Start(ctx, "SQLStore.Commit")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(b.ops)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.ErrExternalService{Service: s.service(), Err: err}
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, o := range b.ops {
		if o.delete {
			_, err = tx.ExecContext(ctx, s.dialect.deleteSQL, o.ref.Collection, o.ref.ID)
		} else {
			var raw []byte
			raw, err = json.Marshal(o.data)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", o.ref.Collection, o.ref.ID, err)
			}
			_, err = tx.ExecContext(ctx, s.dialect.upsertSQL, o.ref.Collection, o.ref.ID, string(raw), now)
		}
		if err != nil {
			s.logger.Warn("sqlstore: batch operation failed, rolling back",
				zap.String("collection", o.ref.Collection),
				zap.String("id", o.ref.ID),
				zap.Bool("delete", o.delete),
				zap.Error(err),
			)
			return &domain.ErrExternalService{Service: s.service(), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.ErrExternalService{Service: s.service(), Err: err}
	}

	s.logger.Debug("sqlstore: batch committed", zap.Int("operations", len(b.ops)))
	return nil
}

func decode(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return data, nil
}
