// Package db provides the two PostgreSQL access patterns used across the
// gateway, worker and vector services: a pgx connection pool for the
// primary domain tables (postgres_pgx.go) and a GORM-backed model for the
// append-only audit log, where an ORM's migration and query ergonomics
// outweigh pgx's lower overhead.
package db

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// AuditLogRecord is the GORM-mapped row for one identity-affecting action:
// login, logout, password change, user create/update/disable. It backs
// the audit trail named in SPEC_FULL.md's supplemented-features section.
type AuditLogRecord struct {
	gorm.Model
	EntryID      string `gorm:"uniqueIndex"`
	UserID       string `gorm:"index"`
	Action       string `gorm:"index"`
	Success      bool
	ErrorMessage string
	IPAddress    string
	UserAgent    string
	OccurredAt   time.Time `gorm:"index"`
}

// AuditStore wraps a GORM connection dedicated to the audit_log_records
// table.
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore opens a GORM connection and migrates the audit schema.
func NewAuditStore(pgURL string) (*AuditStore, error) {
	gdb, err := gorm.Open(postgres.Open(pgURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := gdb.AutoMigrate(&AuditLogRecord{}); err != nil {
		return nil, err
	}
	return &AuditStore{db: gdb}, nil
}

// Save persists one audit record.
func (s *AuditStore) Save(rec *AuditLogRecord) error {
	return s.db.Create(rec).Error
}

// ListByUser returns the most recent audit records for a user, newest first.
func (s *AuditStore) ListByUser(userID string, limit int) ([]AuditLogRecord, error) {
	var records []AuditLogRecord
	err := s.db.Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Close releases the underlying connection pool.
func (s *AuditStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
