package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// APIKey represents the api_keys table. Name holds the student id the key was minted for.
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"-"`
	KeyPreview string     `json:"key_preview"`
	Name       string     `gorm:"not null" json:"name"`
	RateLimit  int        `gorm:"default:10000" json:"rate_limit"` // requests per day
	Revoked    bool       `gorm:"default:false" json:"revoked"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
}

// APIUsage represents the api_usage table
type APIUsage struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	KeyID           uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date            string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount    int    `gorm:"default:0" json:"request_count"`
	TotalUnits      int    `gorm:"default:0" json:"total_units"`
	TotalPlacements int    `gorm:"default:0" json:"total_placements"`
}

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlanRun is one committed allocation run
type PlanRun struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	StudentID    string    `gorm:"index;not null" json:"student_id"`
	UnitCount    int       `json:"unit_count"`
	PlacedCount  int       `json:"placed_count"`
	FailureCount int       `json:"failure_count"`
	Warnings     string    `gorm:"type:text" json:"-"` // JSON encoded []models.Warning
	Failures     string    `gorm:"type:text" json:"-"` // JSON encoded []models.FailureReason
	CreatedAt    time.Time `json:"created_at"`
}

// PlanRecord is one persisted learning-plan placement
type PlanRecord struct {
	ID                   uint   `gorm:"primaryKey" json:"id"`
	RunID                string `gorm:"index;size:36;not null" json:"run_id"`
	StudentID            string `gorm:"index:idx_student_date;not null" json:"student_id"`
	Date                 string `gorm:"index:idx_student_date;size:10;not null" json:"date"`
	StartTime            string `gorm:"size:5;not null" json:"start_time"`
	EndTime              string `gorm:"size:5;not null" json:"end_time"`
	ContentUnitID        string `gorm:"not null" json:"content_unit_id"`
	SequenceIndex        int    `json:"sequence_index"`
	ContentType          string `json:"content_type"`
	SubjectCategory      string `json:"subject_category"`
	WindowCategory       string `json:"window_category"`
	DayRole              string `json:"day_role"`
	LinkedGroupID        string `gorm:"index" json:"linked_group_id"`
	ExclusiveWithIndices string `json:"exclusive_with_indices"` // comma separated
}

// Models lists every table managed by AutoMigrate
func Models() []any {
	return []any{&APIKey{}, &APIUsage{}, &MasterUser{}, &PlanRun{}, &PlanRecord{}}
}

// InitDB opens postgres when dsn is set and a sqlite file otherwise, then migrates the schema
func InitDB(dsn, sqlitePath string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if dsn != "" {
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
		cfg.PrepareStmt = false
	} else {
		dialector = sqlite.Open(sqlitePath)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}
