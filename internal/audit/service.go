// Package audit records who changed what and archives the record to
// object storage.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"supik-server/internal/logger"
	"supik-server/internal/metrics"
	"supik-server/internal/models"
)

// Actions written by the API.
const (
	ActionLogin        = "login"
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionGrant        = "grant"
	ActionRevoke       = "revoke"
	ActionAddMember    = "add_member"
	ActionRemoveMember = "remove_member"
)

// Entry is one action to record. Payload is stored as JSON.
type Entry struct {
	AccountID uint
	Action    string
	Entity    string
	EntityID  uint
	Payload   any
}

// Filter narrows Query. Zero fields are ignored.
type Filter struct {
	AccountID uint
	Action    string
	Entity    string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock replaces the time source used for CreatedAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Record appends an entry. Callers have already committed the change being
// recorded, so a failure here is logged, counted in
// supik_audit_write_failures_total and returned, but never rolls back.
func (s *Service) Record(ctx context.Context, e Entry) error {
	row := models.Log{
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		CreatedAt: s.now().UTC(),
	}
	if e.AccountID != 0 {
		id := e.AccountID
		row.AccountID = &id
	}
	if e.Payload != nil {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			metrics.AuditWriteFailures.WithLabelValues("encode").Inc()
			logger.Error("audit payload encode failed", zap.String("action", e.Action), zap.Error(err))
			return fmt.Errorf("encode audit payload: %w", err)
		}
		row.Payload = string(data)
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		metrics.AuditWriteFailures.WithLabelValues("write").Inc()
		logger.Error("audit record failed",
			zap.String("action", e.Action),
			zap.String("entity", e.Entity),
			zap.Uint("entity_id", e.EntityID),
			zap.Error(err),
		)
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Query returns one page of matching records, newest first, and the total
// number of matches.
func (s *Service) Query(ctx context.Context, f Filter) ([]models.Log, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Log{})
	if f.AccountID != 0 {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Entity != "" {
		q = q.Where("entity = ?", f.Entity)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To.UTC())
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var logs []models.Log
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(f.Offset).Find(&logs).Error
	return logs, total, err
}

// Range returns every record created in [from, to), oldest first.
func (s *Service) Range(ctx context.Context, from, to time.Time) ([]models.Log, error) {
	var logs []models.Log
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	return logs, err
}
