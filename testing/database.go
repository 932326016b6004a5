// Package testing provides test utilities and database setup for testing the counter service
package testing

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/amirphl/tally/migrations"
	"github.com/amirphl/tally/models"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported TEST_DB_DRIVER values
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// TestDBConfig holds configuration for test database connections
type TestDBConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

// GetTestDBConfig loads test database configuration from environment variables
func GetTestDBConfig() *TestDBConfig {
	config := &TestDBConfig{
		Driver:   getEnv("TEST_DB_DRIVER", DriverSQLite),
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		SSLMode:  getEnv("TEST_DB_SSL_MODE", "disable"),
	}
	return config
}

func (c *TestDBConfig) serverDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.SSLMode)
}

func (c *TestDBConfig) databaseDSN(dbName string) string {
	return fmt.Sprintf("%s dbname=%s", c.serverDSN(), dbName)
}

// TestDB represents a test database instance
type TestDB struct {
	DB     *gorm.DB
	Name   string
	config *TestDBConfig
}

// SetupTestDB creates a fresh, migrated test database.
// SQLite (in memory) is used unless TEST_DB_DRIVER=postgres.
func SetupTestDB() (*TestDB, error) {
	config := GetTestDBConfig()
	switch config.Driver {
	case DriverSQLite:
		return setupSQLite(config)
	case DriverPostgres:
		return setupPostgres(config)
	default:
		return nil, fmt.Errorf("unsupported TEST_DB_DRIVER %q", config.Driver)
	}
}

func setupSQLite(config *TestDBConfig) (*TestDB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite test database: %w", err)
	}

	// Every new connection would see its own empty in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.AutoMigrate(&models.Counter{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite test database: %w", err)
	}

	return &TestDB{DB: db, Name: ":memory:", config: config}, nil
}

func setupPostgres(config *TestDBConfig) (*TestDB, error) {
	// Generate unique database name using timestamp and random number
	dbName := fmt.Sprintf("tally_test_%d_%d", time.Now().Unix(), rand.Intn(10000))

	adminDB, err := gorm.Open(postgres.Open(config.serverDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	err = adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)).Error
	if sqlDB, derr := adminDB.DB(); derr == nil {
		sqlDB.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create test database %s: %w", dbName, err)
	}

	tdb := &TestDB{Name: dbName, config: config}

	if err := migrations.ApplyDSN(context.Background(), config.databaseDSN(dbName)); err != nil {
		tdb.dropPostgres()
		return nil, fmt.Errorf("failed to run migrations on test database %s: %w", dbName, err)
	}

	testDB, err := gorm.Open(postgres.Open(config.databaseDSN(dbName)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		tdb.dropPostgres()
		return nil, fmt.Errorf("failed to connect to test database %s: %w", dbName, err)
	}
	tdb.DB = testDB

	return tdb, nil
}

// TeardownTestDB closes connections and drops the test database
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB != nil {
		if sqlDB, err := tdb.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}

	if tdb.config.Driver != DriverPostgres {
		return nil
	}
	return tdb.dropPostgres()
}

func (tdb *TestDB) dropPostgres() error {
	adminDB, err := gorm.Open(postgres.Open(tdb.config.serverDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Printf("Warning: failed to connect to PostgreSQL for cleanup: %v", err)
		return err
	}
	defer func() {
		sqlDB, _ := adminDB.DB()
		sqlDB.Close()
	}()

	// Force disconnect all connections to the test database
	err = adminDB.Exec(fmt.Sprintf(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s' AND pid <> pg_backend_pid()",
		tdb.Name)).Error
	if err != nil {
		log.Printf("Warning: failed to terminate connections to test database %s: %v", tdb.Name, err)
	}

	err = adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", tdb.Name)).Error
	if err != nil {
		log.Printf("Warning: failed to drop test database %s: %v", tdb.Name, err)
		return err
	}

	return nil
}

// ClearAllTables removes all data from tables while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	if err := tdb.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Counter{}).Error; err != nil {
		return fmt.Errorf("failed to clear table counters: %w", err)
	}
	return nil
}

// Close releases the connection without dropping anything; later queries fail.
// Tests use it to simulate an unreachable store.
func (tdb *TestDB) Close() error {
	sqlDB, err := tdb.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// TestWithDB is a helper function that sets up a test database, runs the test function, and cleans up
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
