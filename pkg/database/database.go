// Package database opens the Postgres connection shared by the server and
// the maintenance commands.
package database

import (
	"fmt"
	"strings"

	"lppm/pkg/logging"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to dsn, routing gorm's logging through log.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("DB_DSN is not set; this project requires a Postgres DSN")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logging.NewGormLogger(log)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return gdb, nil
}
