package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//ErrNotFound is returned when a referenced row does not exist
var ErrNotFound = errors.New("record not found")

//Datastore is an interface that is used to inject the database into different handlers to improve testability
type Datastore interface {
	ClassStore
	DeviceStore
	ConsumptionStore
	AlertStore
	SettingStore

	Ping(ctx context.Context) error
}

type myDB struct {
	impl *gorm.DB
}

//ConnectorFunc is used to inject a database connection method into NewDatabaseConnection
type ConnectorFunc func() (*gorm.DB, error)

//NewConnector returns the connector matching the configured database driver
func NewConnector(log logging.Logger, cfg config.Database) (ConnectorFunc, error) {
	switch cfg.Driver {
	case "postgres", "":
		return NewPostgreSQLConnector(log, cfg), nil
	case "mysql":
		return NewMySQLConnector(log, cfg), nil
	case "sqlite":
		return NewSQLiteConnector(cfg.SQLitePath), nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

const connectAttempts int = 10

//NewPostgreSQLConnector opens a connection to a postgresql database
func NewPostgreSQLConnector(log logging.Logger, cfg config.Database) ConnectorFunc {
	dbURI := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s password=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Name, cfg.SSLMode, cfg.Password,
	)

	return func() (*gorm.DB, error) {
		return openWithRetry(log, cfg.Host, func() (*gorm.DB, error) {
			return gorm.Open(postgres.Open(dbURI), &gorm.Config{})
		})
	}
}

//NewMySQLConnector opens a connection to a mysql database
func NewMySQLConnector(log logging.Logger, cfg config.Database) ConnectorFunc {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name,
	)

	return func() (*gorm.DB, error) {
		return openWithRetry(log, cfg.Host, func() (*gorm.DB, error) {
			return gorm.Open(mysql.Open(dsn), &gorm.Config{})
		})
	}
}

func openWithRetry(log logging.Logger, host string, open func() (*gorm.DB, error)) (*gorm.DB, error) {
	var err error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		log.Infof("Connecting to database host %s ...", host)

		var db *gorm.DB
		db, err = open()
		if err == nil {
			return db, nil
		}

		log.Errorf("Failed to connect to database (attempt %d/%d): %s", attempt, connectAttempts, err.Error())
		time.Sleep(3 * time.Second)
	}

	return nil, err
}

//NewSQLiteConnector opens a connection to a local sqlite database
func NewSQLiteConnector(dsn string) ConnectorFunc {
	return func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}

		// sqlite only allows one writer at a time
		sqlDB.SetMaxOpenConns(1)

		err = db.Exec("PRAGMA foreign_keys = ON").Error
		return db, err
	}
}

//NewDatabaseConnection initializes a new connection to the database and wraps it in a Datastore
func NewDatabaseConnection(connect ConnectorFunc, log logging.Logger) (Datastore, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	db := &myDB{
		impl: impl,
	}

	err = db.impl.AutoMigrate(
		&models.Class{},
		&models.Device{},
		&models.DeviceConsumption{},
		&models.Alert{},
		&models.Setting{},
		&models.UserSetting{},
	)
	if err != nil {
		log.Errorf("Failed to migrate database schema: %s", err.Error())
		return nil, err
	}

	return db, nil
}

func (db *myDB) Ping(ctx context.Context) error {
	sqlDB, err := db.impl.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

//nullable turns an optional value into something the driver stores as NULL when absent
func nullable(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
