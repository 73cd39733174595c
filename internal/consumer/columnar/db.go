// Package columnar implements the reference "export to a columnar
// database" consumer named in the decoder's design notes: it batches
// decoded records into GORM-backed tables (sqlite, postgres, or mysql), or
// into gzipped flat files when no database is configured.
package columnar

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/hprofdecode/pkg/config"
	"github.com/hprofdecode/pkg/telemetry"
)

// DBType represents the database backend a decode run exports to.
type DBType string

const (
	DBTypeSQLite   DBType = "sqlite"
	DBTypePostgres DBType = "postgres"
	DBTypeMySQL    DBType = "mysql"
	// DBTypeNone selects the flat-file fallback: Consumer writes gzipped
	// JSON files instead of going through GORM at all.
	DBTypeNone DBType = "none"
)

// OpenDB opens a GORM connection based on cfg, enabling OTEL tracing when
// telemetry is enabled and tuning the connection pool for mysql/postgres.
// sqlite (the default, used for local ad-hoc exports with no server to
// stand up) skips the pool tuning and ping that only make sense for a
// networked database.
func OpenDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch DBType(cfg.Type) {
	case DBTypeSQLite, DBType(""):
		path := cfg.Database
		if path == "" {
			path = "hprof.db"
		}
		dialector = sqlite.Open(path)
	case DBTypePostgres:
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database,
		)
		dialector = postgres.Open(dsn)
	case DBTypeMySQL:
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		)
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if telemetry.Enabled() {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("failed to enable telemetry: %w", err)
		}
	}

	if DBType(cfg.Type) != DBTypeSQLite && DBType(cfg.Type) != DBType("") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		maxConns := cfg.MaxConns
		if maxConns <= 0 {
			maxConns = 10
		}
		sqlDB.SetMaxOpenConns(maxConns)
		sqlDB.SetMaxIdleConns(maxConns / 2)
		sqlDB.SetConnMaxLifetime(time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}

	return db, nil
}

// Migrate creates every table the columnar consumer writes to.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&StringRow{},
		&ClassRow{},
		&InstanceRow{},
		&InstanceFieldRow{},
		&ObjectArrayRow{},
		&PrimitiveArrayRow{},
		&HeapSummaryRow{},
		&ThreadRow{},
		&RootUnknownRow{},
		&RootJNIGlobalRow{},
		&RootJNILocalRow{},
		&RootJavaFrameRow{},
		&RootNativeStackRow{},
		&RootStickyClassRow{},
		&RootThreadBlockRow{},
		&RootMonitorUsedRow{},
		&RootThreadObjectRow{},
	)
}
