package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"dag-trigger-gateway/internal/models"
)

// ClaimResult is the outcome of a Claim call.
type ClaimResult int

const (
	// Claimed means this caller inserted the ledger row and owns the trigger.
	Claimed ClaimResult = iota
	// AlreadyClaimed means another delivery of the same message got there first.
	AlreadyClaimed
)

// Repository is the durable dedup ledger. The unique index on
// processed_messages.message_id is the serialization point: of any number
// of concurrent Claim calls for the same identifier, exactly one insert
// commits and every other caller sees the uniqueness violation.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// HasProcessed is the read-only fast path for redeliveries. It never
// substitutes for Claim: a false here still races with other deliveries.
func (r *Repository) HasProcessed(ctx context.Context, messageID string) (bool, error) {
	var processed models.ProcessedMessage
	result := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&processed)
	if result.Error == nil {
		return true, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("database error checking processed message: %w", result.Error)
}

// Claim durably records that messageID has begun processing. A duplicate-key
// error means a concurrent or earlier delivery already holds the claim; any
// other database error is an infrastructure failure and must abort the
// invocation rather than pass as a dedup verdict.
func (r *Repository) Claim(ctx context.Context, messageID string) (ClaimResult, error) {
	row := models.ProcessedMessage{MessageID: messageID}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return AlreadyClaimed, nil
		}
		return AlreadyClaimed, fmt.Errorf("failed to claim message %s: %w", messageID, err)
	}
	return Claimed, nil
}

// isUniqueViolation catches the Postgres unique_violation code for drivers
// or gorm versions that do not translate it to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// LogTriggerAttempt records the outcome of a newly claimed notification.
func (r *Repository) LogTriggerAttempt(ctx context.Context, messageID, dagName, status, errorMsg string) error {
	log := models.TriggerLog{
		MessageID: messageID,
		DagName:   dagName,
		Status:    status,
		ErrorMsg:  errorMsg,
	}
	if err := r.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("failed to log trigger attempt: %w", err)
	}
	return nil
}

// GetTriggerLogs returns trigger logs, newest first.
func (r *Repository) GetTriggerLogs(ctx context.Context) ([]models.TriggerLog, error) {
	var logs []models.TriggerLog
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to get trigger logs: %w", err)
	}
	return logs, nil
}

// GetTriggerLog returns a single trigger log by ID.
func (r *Repository) GetTriggerLog(ctx context.Context, id uint) (*models.TriggerLog, error) {
	var log models.TriggerLog
	if err := r.db.WithContext(ctx).First(&log, id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// CountProcessed returns the total number of claimed identifiers.
func (r *Repository) CountProcessed(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProcessedMessage{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count processed messages: %w", err)
	}
	return count, nil
}

// CountTriggersByStatus returns the number of trigger logs with the given status.
func (r *Repository) CountTriggersByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TriggerLog{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count trigger logs: %w", err)
	}
	return count, nil
}
