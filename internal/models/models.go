package models

import (
	"time"
)

// ProcessedMessage is one row per Pub/Sub message identifier ever claimed.
// Rows are insert-only: the unique index on message_id is the dedup gate,
// and the table doubles as the audit ledger, so nothing updates or deletes
// rows once written.
type ProcessedMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID string    `json:"message_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	ClaimedAt time.Time `json:"claimed_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for ProcessedMessage
func (ProcessedMessage) TableName() string {
	return "processed_messages"
}

// Trigger log statuses
const (
	TriggerStatusSuccess  = "success"
	TriggerStatusFailure  = "failure"
	TriggerStatusFiltered = "filtered"
)

// TriggerLog records the outcome of every newly claimed notification.
// Duplicate deliveries are absorbed before this point and do not log.
type TriggerLog struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID string    `json:"message_id" gorm:"type:varchar(255);not null;index"`
	DagName   string    `json:"dag_name" gorm:"type:varchar(255)"`
	Status    string    `json:"status" gorm:"type:varchar(50);not null"` // success, failure, filtered
	ErrorMsg  string    `json:"error_msg" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for TriggerLog
func (TriggerLog) TableName() string {
	return "trigger_logs"
}

// PushRequest is the Pub/Sub push delivery body:
// {"message": {"messageId": "...", "attributes": {...}}}
type PushRequest struct {
	Message *PushMessage `json:"message"`
}

// PushMessage carries the transport-assigned identifier and the
// publisher-set attributes of one notification.
type PushMessage struct {
	MessageID  string            `json:"messageId"`
	Attributes map[string]string `json:"attributes"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
