package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/gateci/internal/observability"
	"github.com/example/gateci/internal/storage"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// New creates a new SQLite storage instance.
func New(path string) (*SQLiteStorage, error) {
	return NewWithMetrics(path, nil)
}

// NewWithMetrics creates a SQLite storage instance that records
// transaction timings into metrics. metrics may be nil.
func NewWithMetrics(path string, metrics *observability.Metrics) (*SQLiteStorage, error) {
	// _txlock=immediate makes write transactions take the write lock at
	// BEGIN, so optimistic-lock retries surface as ErrConcurrentModify
	// instead of SQLITE_BUSY upgrades.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	// SQLite works best with a single connection for writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStorage{db: db, metrics: metrics}, nil
}

// Begin starts a new transaction.
func (s *SQLiteStorage) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	return s.begin(ctx)
}

// BeginImmediate starts a write transaction. With _txlock=immediate in
// the DSN every transaction takes the write lock up front; the separate
// method keeps the caller's intent explicit.
func (s *SQLiteStorage) BeginImmediate(ctx context.Context) (storage.UnitOfWork, error) {
	return s.begin(ctx)
}

func (s *SQLiteStorage) begin(ctx context.Context) (storage.UnitOfWork, error) {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DBTransactionBegin().Observe(time.Since(start))
		s.metrics.DBActiveTransactions().Inc()
	}
	return newUnitOfWork(tx, s.metrics), nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.db)
}

// unitOfWork implements the UnitOfWork interface.
type unitOfWork struct {
	tx      *sql.Tx
	metrics *observability.Metrics
	builds  *buildRepo
	jobs    *jobRepo
	logs    *logRepo
}

func newUnitOfWork(tx *sql.Tx, metrics *observability.Metrics) *unitOfWork {
	return &unitOfWork{
		tx:      tx,
		metrics: metrics,
		builds:  &buildRepo{tx: tx},
		jobs:    &jobRepo{tx: tx},
		logs:    &logRepo{tx: tx},
	}
}

func (u *unitOfWork) Builds() storage.BuildRepository {
	return u.builds
}

func (u *unitOfWork) Jobs() storage.JobRepository {
	return u.jobs
}

func (u *unitOfWork) Logs() storage.LogRepository {
	return u.logs
}

func (u *unitOfWork) Commit() error {
	start := time.Now()
	err := u.tx.Commit()
	if u.metrics != nil {
		u.metrics.DBTransactionCommit().Observe(time.Since(start))
		u.metrics.DBActiveTransactions().Dec()
	}
	return err
}

func (u *unitOfWork) Rollback() error {
	err := u.tx.Rollback()
	if u.metrics != nil && err == nil {
		u.metrics.DBActiveTransactions().Dec()
	}
	return err
}
