package database

import (
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds the postgres connection string from DB_* env vars.
// With INSTANCE_CONNECTION_NAME set it targets the Cloud SQL unix socket.
func DSN() string {
	dbUser := getenv("DB_USER", "postgres")
	dbPass := os.Getenv("DB_PASS")
	dbName := getenv("DB_NAME", "sessiongate")

	// For Cloud Run with Cloud SQL
	socketDir := "/cloudsql"
	instanceConnectionName := os.Getenv("INSTANCE_CONNECTION_NAME")

	if instanceConnectionName != "" {
		log.Printf("Connecting to Cloud SQL via socket: %s", instanceConnectionName)
		return fmt.Sprintf("host=%s/%s user=%s password=%s dbname=%s sslmode=disable",
			socketDir, instanceConnectionName, dbUser, dbPass, dbName)
	}

	dbHost := getenv("DB_HOST", "localhost")
	dbPort := getenv("DB_PORT", "5432")
	log.Printf("Connecting to PostgreSQL at %s:%s", dbHost, dbPort)
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		dbHost, dbUser, dbPass, dbName, dbPort)
}

// Connect opens the postgres database described by DSN
func Connect() (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("✅ Database connected successfully!")
	return db, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
