// Package recorder persists sessions to a relational store: unit
// kinematics, simulation events, chat and occupancy transitions. Writes
// are batched through in-memory queues and flushed by a background
// goroutine. Postgres is the primary target; when it is unreachable the
// recorder falls back to a local SQLite file.
package recorder

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ctrue/dcs-connect/internal/config"
)

// DBManager handles the recording database connection.
type DBManager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger

	cfg      config.DBConfig
	localDir string
}

// NewDBManager creates a database manager. localDir is where the SQLite
// fallback file lives.
func NewDBManager(log zerolog.Logger, cfg config.DBConfig, localDir string) *DBManager {
	return &DBManager{
		Logger:   log,
		cfg:      cfg,
		localDir: localDir,
	}
}

// Connect establishes a database connection, falling back to SQLite if
// Postgres fails.
func (m *DBManager) Connect() error {
	var err error

	m.DB, err = m.openPostgres()
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		if err := m.useLocal(); err != nil {
			return err
		}
	}

	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}

	if err = m.SqlDB.Ping(); err != nil {
		m.Logger.Error().Err(err).Msg("Failed to validate connection, trying SQLite")
		if err := m.useLocal(); err != nil {
			return err
		}
		if m.SqlDB, err = m.DB.DB(); err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
	}

	m.IsValid = true
	if !m.ShouldSaveLocal {
		m.Logger.Info().Msg("Connected to database")
		m.SqlDB.SetMaxOpenConns(10)
	}
	return nil
}

func (m *DBManager) useLocal() error {
	var err error
	m.ShouldSaveLocal = true
	m.SqliteFilePath = filepath.Join(m.localDir, fmt.Sprintf("session_%s.db", time.Now().Format("2006-01-02_150405")))
	m.DB, err = m.openSqlite(m.SqliteFilePath)
	if err != nil || m.DB == nil {
		m.IsValid = false
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	m.IsValid = true
	return nil
}

func (m *DBManager) openPostgres() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		m.cfg.Host,
		m.cfg.Port,
		m.cfg.Username,
		m.cfg.Password,
		m.cfg.Database,
	)

	m.Logger.Debug().Str("host", m.cfg.Host).Str("database", m.cfg.Database).Msg("Connecting to Postgres DB")

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// openSqlite opens a SQLite database. An empty path uses a shared
// in-memory database.
func (m *DBManager) openSqlite(path string) (*gorm.DB, error) {
	dsn := "file::memory:?cache=shared"
	if path != "" {
		dsn = path
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if path != "" {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	} else {
		m.Logger.Info().Msg("Using local SQLite DB in memory")
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// ConnectLocal skips Postgres and opens the SQLite database at path. Used
// by tests and the demo mode. An empty path uses an in-memory database.
func (m *DBManager) ConnectLocal(path string) error {
	var err error
	m.ShouldSaveLocal = true
	m.SqliteFilePath = path
	m.DB, err = m.openSqlite(path)
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	m.IsValid = true
	return nil
}

// Setup migrates the recording schema. On Postgres it also makes sure
// PostGIS is installed for the geometry columns.
func (m *DBManager) Setup() error {
	if m.DB.Dialector.Name() == "postgres" {
		if err := m.DB.Exec(`CREATE EXTENSION IF NOT EXISTS postgis;`).Error; err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to create PostGIS extension: %w", err)
		}
		m.Logger.Info().Msg("PostGIS extension created")
	}

	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(DatabaseModels...); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// Close releases the underlying connection pool.
func (m *DBManager) Close() error {
	if m.SqlDB != nil {
		return m.SqlDB.Close()
	}
	return nil
}
