package dbmysql

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bondedlink/internal/config"
)

// NewMySQL returns a GORM DB for the configured driver. The sqlite driver is
// meant for local runs and tests.
func NewMySQL(cnf *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := cnf.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is not set")
	}

	var dialector gorm.Dialector
	switch cnf.Database.Driver {
	case "", "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cnf.Database.Driver)
	}

	logLevel := logger.Warn
	if cnf.Logging.Level == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:      logger.Default.LogMode(logLevel),
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB error: %w", err)
	}
	if cnf.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cnf.Database.MaxOpenConns)
	}
	if cnf.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cnf.Database.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if cnf.Database.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	log.Info("connected to database", zap.String("driver", dialector.Name()))
	return db, nil
}

// Migrate creates or updates the Link tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Conversation{},
		&Message{},
		&UserSession{},
		&UserMemory{},
		&SystemProfile{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
