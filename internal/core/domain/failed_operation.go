package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

// FailedOperation is a dead-letter record of an operation that could not be
// completed.
type FailedOperation struct {
	CorrelationID string            `json:"correlation_id" msgpack:"correlation_id"`
	Operation     string            `json:"operation"      msgpack:"operation"`
	Component     string            `json:"component"      msgpack:"component"`
	UserID        string            `json:"user_id"        msgpack:"user_id"`
	Message       string            `json:"message"        msgpack:"message"`
	Kind          string            `json:"kind"           msgpack:"kind"`
	Attempts      int               `json:"attempts"       msgpack:"attempts"`
	Retryable     bool              `json:"retryable"      msgpack:"retryable"`
	Metadata      map[string]string `json:"metadata"       msgpack:"metadata"`
	CreatedAt     time.Time         `json:"created_at"     msgpack:"created_at"`
}

// NewFailedOperation builds a record from a terminal retry error.
func NewFailedOperation(e *retry.Error) *FailedOperation {
	fo := &FailedOperation{
		Message:   e.Error(),
		Kind:      e.Kind.String(),
		Attempts:  e.Attempts,
		Retryable: e.Retryable,
		CreatedAt: time.Now().UTC(),
	}
	if c := e.Context; c != nil {
		fo.CorrelationID = c.CorrelationID()
		fo.Operation = c.Operation()
		fo.Component = c.Component()
		fo.UserID = c.UserID()
		fo.Metadata = c.Metadata()
	}
	if fo.CorrelationID == "" {
		fo.CorrelationID = uuid.NewString()
	}
	return fo
}
