package database

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/acnesense/config"
	"github.com/camden-git/acnesense/models"
)

// Options tunes the connection pool and query logging.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	LogQueries   bool
}

// InitGormDB opens the database for the given driver and returns a GORM handle.
// For sqlite the dataSourceName is a file path; foreign keys are switched on
// for every pooled connection so detail rows cascade with their history.
func InitGormDB(driver, dataSourceName string, opts Options) (*gorm.DB, error) {
	logLevel := logger.Warn
	if opts.LogQueries {
		logLevel = logger.Info
	}
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector, err := openDialector(driver, dataSourceName)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database using GORM: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if driver == config.DriverSQLite {
		// enable write-ahead logging for better concurrency
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			log.Printf("warning: failed to set WAL mode: %v", err)
		}
	}

	log.Printf("GORM Database (%s) initialized successfully", driver)
	return db, nil
}

func openDialector(driver, dataSourceName string) (gorm.Dialector, error) {
	switch driver {
	case config.DriverSQLite:
		return sqlite.Open(withSQLiteForeignKeys(dataSourceName)), nil
	case config.DriverPostgres:
		return postgres.Open(dataSourceName), nil
	case config.DriverMySQL:
		return mysql.Open(dataSourceName), nil
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", driver)
	}
}

func withSQLiteForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// AutoMigrateModels can be called after InitGormDB to migrate schemas
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.History{},
		&models.HistoryDetail{},
		&models.HistoryAsset{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	log.Println("GORM AutoMigrate completed successfully.")
	return nil
}
