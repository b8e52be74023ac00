package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnavshah/study-planner-api/internal/timeofday"
	"github.com/arnavshah/study-planner-api/pkg/models"
)

// ErrNotFound is returned when a run does not exist for the student
var ErrNotFound = errors.New("not found")

// Store persists plan runs and API usage
type Store struct {
	db *gorm.DB
}

// NewStore wraps an opened database
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveRun persists a report and all of its entries in one transaction and returns the run id
func (s *Store) SaveRun(studentID string, unitCount int, report *models.AllocationReport) (string, error) {
	warnings, err := json.Marshal(report.Warnings)
	if err != nil {
		return "", fmt.Errorf("encode warnings: %w", err)
	}
	failures, err := json.Marshal(report.Failures)
	if err != nil {
		return "", fmt.Errorf("encode failures: %w", err)
	}

	run := PlanRun{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		UnitCount:    unitCount,
		PlacedCount:  len(report.Entries),
		FailureCount: len(report.Failures),
		Warnings:     string(warnings),
		Failures:     string(failures),
	}
	records := make([]PlanRecord, 0, len(report.Entries))
	for _, e := range report.Entries {
		records = append(records, toRecord(run.ID, studentID, e))
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 200).Error
	})
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return run.ID, nil
}

// ListPlans returns persisted entries for the student between from and to inclusive.
// Empty bounds are open.
func (s *Store) ListPlans(studentID, from, to string) ([]models.PlanEntry, error) {
	q := s.db.Where("student_id = ?", studentID)
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	if to != "" {
		q = q.Where("date <= ?", to)
	}
	var records []PlanRecord
	if err := q.Order("date asc, start_time asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	entries := make([]models.PlanEntry, 0, len(records))
	for _, rec := range records {
		e, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ExistingPlans returns the student's persisted placements on the given dates as commitments
func (s *Store) ExistingPlans(studentID string, dates []string) ([]models.ExistingPlan, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	var records []PlanRecord
	err := s.db.Select("date", "start_time", "end_time").
		Where("student_id = ? AND date IN ?", studentID, dates).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load existing plans: %w", err)
	}

	plans := make([]models.ExistingPlan, 0, len(records))
	for _, rec := range records {
		start, err := timeofday.Parse(rec.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := timeofday.Parse(rec.EndTime)
		if err != nil {
			return nil, err
		}
		plans = append(plans, models.ExistingPlan{Date: rec.Date, StartTime: start, EndTime: end})
	}
	return plans, nil
}

// DeleteRun discards a run and its entries
func (s *Store) DeleteRun(studentID, runID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND student_id = ?", runID, studentID).Delete(&PlanRun{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("run_id = ?", runID).Delete(&PlanRecord{}).Error
	})
}

// RecordUsage bumps today's usage counters for a key with a single upsert
func (s *Store) RecordUsage(keyID uint, units, placements int) error {
	today := time.Now().Format(timeofday.DateLayout)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":    gorm.Expr("request_count + ?", 1),
			"total_units":      gorm.Expr("total_units + ?", units),
			"total_placements": gorm.Expr("total_placements + ?", placements),
		}),
	}).Create(&APIUsage{
		KeyID:           keyID,
		Date:            today,
		RequestCount:    1,
		TotalUnits:      units,
		TotalPlacements: placements,
	}).Error
}

// FindOrCreateKey returns the tracking record for a verified key
func (s *Store) FindOrCreateKey(key, studentID string) (*APIKey, error) {
	var apiKey APIKey
	err := s.db.Where(APIKey{Key: key}).Attrs(APIKey{
		Name:       studentID,
		KeyPreview: Preview(key),
		RateLimit:  10000,
	}).FirstOrCreate(&apiKey).Error
	if err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// Usage returns the most recent usage rows for a key
func (s *Store) Usage(keyID uint, limit int) ([]APIUsage, error) {
	var usage []APIUsage
	err := s.db.Where("key_id = ?", keyID).Order("date desc").Limit(limit).Find(&usage).Error
	return usage, err
}

// Preview masks a key for listing, e.g. stu...9f3a
func Preview(key string) string {
	if len(key) > 8 {
		return key[:3] + "..." + key[len(key)-4:]
	}
	return "****"
}

func toRecord(runID, studentID string, e models.PlanEntry) PlanRecord {
	indices := make([]string, 0, len(e.ExclusiveWithIndices))
	for _, i := range e.ExclusiveWithIndices {
		indices = append(indices, strconv.Itoa(i))
	}
	return PlanRecord{
		RunID:                runID,
		StudentID:            studentID,
		Date:                 e.Date,
		StartTime:            e.StartTime.String(),
		EndTime:              e.EndTime.String(),
		ContentUnitID:        e.ContentUnitID,
		SequenceIndex:        e.SequenceIndex,
		ContentType:          string(e.ContentType),
		SubjectCategory:      e.SubjectCategory,
		WindowCategory:       string(e.WindowCategory),
		DayRole:              string(e.DayRole),
		LinkedGroupID:        e.LinkedGroupID,
		ExclusiveWithIndices: strings.Join(indices, ","),
	}
}

func fromRecord(rec PlanRecord) (models.PlanEntry, error) {
	start, err := timeofday.Parse(rec.StartTime)
	if err != nil {
		return models.PlanEntry{}, err
	}
	end, err := timeofday.Parse(rec.EndTime)
	if err != nil {
		return models.PlanEntry{}, err
	}
	var indices []int
	if rec.ExclusiveWithIndices != "" {
		for _, part := range strings.Split(rec.ExclusiveWithIndices, ",") {
			n, err := strconv.Atoi(part)
			if err != nil {
				return models.PlanEntry{}, fmt.Errorf("plan %d: bad exclusive index %q", rec.ID, part)
			}
			indices = append(indices, n)
		}
	}
	return models.PlanEntry{
		ContentUnitID:        rec.ContentUnitID,
		SequenceIndex:        rec.SequenceIndex,
		ContentType:          models.ContentType(rec.ContentType),
		SubjectCategory:      rec.SubjectCategory,
		Date:                 rec.Date,
		StartTime:            start,
		EndTime:              end,
		WindowCategory:       models.SpanCategory(rec.WindowCategory),
		DayRole:              models.DayRole(rec.DayRole),
		LinkedGroupID:        rec.LinkedGroupID,
		ExclusiveWithIndices: indices,
	}, nil
}

// CreateKey stores a freshly minted key for a student
func (s *Store) CreateKey(key, studentID string, rateLimit int) (*APIKey, error) {
	apiKey := APIKey{
		Key:        key,
		Name:       studentID,
		KeyPreview: Preview(key),
		RateLimit:  rateLimit,
	}
	if err := s.db.Create(&apiKey).Error; err != nil {
		return nil, fmt.Errorf("create key: %w", err)
	}
	return &apiKey, nil
}

// ListKeys returns every tracked key
func (s *Store) ListKeys() ([]APIKey, error) {
	var keys []APIKey
	err := s.db.Order("id asc").Find(&keys).Error
	return keys, err
}

// RevokeKey marks a key as revoked. Signed keys stay verifiable, so the
// record is kept to block them.
func (s *Store) RevokeKey(id uint) error {
	res := s.db.Model(&APIKey{}).Where("id = ?", id).Update("revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateKeyLimit changes the daily request limit of a key
func (s *Store) UpdateKeyLimit(id uint, limit int) error {
	res := s.db.Model(&APIKey{}).Where("id = ?", id).Update("rate_limit", limit)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchKey stamps the last use of a key
func (s *Store) TouchKey(id uint, at time.Time) error {
	return s.db.Model(&APIKey{}).Where("id = ?", id).Update("last_used", at).Error
}

// RequestsToday returns how many requests a key made today
func (s *Store) RequestsToday(keyID uint) (int, error) {
	var usage APIUsage
	today := time.Now().Format(timeofday.DateLayout)
	err := s.db.Where("key_id = ? AND date = ?", keyID, today).Limit(1).Find(&usage).Error
	if err != nil {
		return 0, err
	}
	return usage.RequestCount, nil
}

// FindAdmin looks up an admin by username
func (s *Store) FindAdmin(username string) (*MasterUser, error) {
	var user MasterUser
	err := s.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
