package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/casecompass/case-compass/internal/config"
	"github.com/casecompass/case-compass/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrConnectionFailed is returned when neither the pool nor a direct
// connection could provide a database connection.
var ErrConnectionFailed = errors.New("database connection failed")

// DialectorFunc builds a gorm dialector for a DSN.
type DialectorFunc func(dsn string) gorm.Dialector

// Dialector returns the dialector for a configured driver name.
func Dialector(driver string) (DialectorFunc, error) {
	switch driver {
	case "postgres":
		return func(dsn string) gorm.Dialector {
			return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
		}, nil
	case "sqlite":
		return func(dsn string) gorm.Dialector { return sqlite.Open(dsn) }, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Manager owns the process-wide connection pool and hands out one
// connection per request. When the pool is unavailable it falls back to
// direct, per-request connections.
type Manager struct {
	cfg       *config.Config
	log       *logger.Logger
	dialector DialectorFunc
	pool      *gorm.DB
}

// NewManager returns a manager without a pool. Call InitPool to create one.
func NewManager(cfg *config.Config, dialector DialectorFunc, log *logger.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		log:       log,
		dialector: dialector,
	}
}

// Connect builds the manager and tries to create the pool. A pool failure
// is fatal only when cfg.DBRequirePool is set; otherwise the manager keeps
// serving through direct connections.
func Connect(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Manager, error) {
	dialector, err := Dialector(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	m := NewManager(cfg, dialector, log)
	if err := m.InitPool(ctx); err != nil {
		if cfg.DBRequirePool {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		log.Warn("Could not create connection pool, continuing with direct connections", "error", err)
	}

	return m, nil
}

// InitPool opens the pool. No connection is kept warm; database/sql opens
// them on demand up to DBPoolMax.
func (m *Manager) InitPool(ctx context.Context) error {
	db, err := m.open(ctx)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get pool handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(m.cfg.DBPoolMax)
	sqlDB.SetMaxIdleConns(m.cfg.DBPoolMax)
	sqlDB.SetConnMaxIdleTime(m.cfg.DBPoolIdleTimeout)

	m.pool = db
	m.log.Info("Connection pool created", "driver", m.cfg.DBDriver, "max_open", m.cfg.DBPoolMax)
	return nil
}

// Pooled reports whether a pool is available.
func (m *Manager) Pooled() bool {
	return m.pool != nil
}

// Conn is a single checked-out connection. Close must always be called.
type Conn struct {
	DB      *gorm.DB
	Direct  bool
	release func() error
}

// Close returns a pooled connection or closes a direct one. It is safe to
// call more than once.
func (c *Conn) Close() error {
	if c == nil || c.release == nil {
		return nil
	}
	release := c.release
	c.release = nil
	return release()
}

// Acquire returns a connection from the pool, falling back to a direct
// connection when the pool is missing or cannot serve one within the queue
// timeout.
func (m *Manager) Acquire(ctx context.Context) (*Conn, error) {
	if m.pool != nil {
		conn, err := m.checkout(ctx)
		if err == nil {
			return conn, nil
		}
		m.log.Warn("Could not get connection from pool, trying direct connection", "error", err)
	}

	conn, err := m.direct(ctx)
	if err != nil {
		m.log.Error("Failed to establish direct connection", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return conn, nil
}

// Release closes conn and logs, but does not escalate, a failure.
func (m *Manager) Release(conn *Conn) {
	if err := conn.Close(); err != nil {
		m.log.Error("Error closing connection", "error", err, "direct", conn.Direct)
	}
}

func (m *Manager) checkout(ctx context.Context) (*Conn, error) {
	sqlDB, err := m.pool.DB()
	if err != nil {
		return nil, err
	}

	queueCtx, cancel := context.WithTimeout(ctx, m.cfg.DBQueueTimeout)
	defer cancel()

	sqlConn, err := sqlDB.Conn(queueCtx)
	if err != nil {
		return nil, fmt.Errorf("pool checkout: %w", err)
	}

	// Pin the session to the checked-out connection, the same way
	// gorm.DB.Connection does.
	session := m.pool.Session(&gorm.Session{NewDB: true, Context: ctx})
	session.Statement.ConnPool = sqlConn

	return &Conn{DB: session, release: sqlConn.Close}, nil
}

func (m *Manager) direct(ctx context.Context) (*Conn, error) {
	db, err := m.open(ctx)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return &Conn{DB: db.WithContext(ctx), Direct: true, release: sqlDB.Close}, nil
}

func (m *Manager) open(ctx context.Context) (*gorm.DB, error) {
	if m.cfg.DBDriver == "sqlite" {
		if err := ensureDir(m.cfg.DSN()); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(m.dialector(m.cfg.DSN()), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Ping runs a trivial query through Acquire and returns its rows.
func (m *Manager) Ping(ctx context.Context) ([]map[string]interface{}, error) {
	conn, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer m.Release(conn)

	var rows []map[string]interface{}
	if err := conn.DB.Raw("SELECT 1 AS ok").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("test query failed: %w", err)
	}
	return rows, nil
}

// Migrate creates or updates the schema through a managed connection.
func (m *Manager) Migrate(ctx context.Context) error {
	conn, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer m.Release(conn)

	return Migrate(conn.DB)
}

// Close shuts the pool down.
func (m *Manager) Close() error {
	if m.pool == nil {
		return nil
	}
	sqlDB, err := m.pool.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureDir creates the parent directory of a sqlite file path. In-memory
// and URI style DSNs are left alone.
func ensureDir(dsn string) error {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
