package retry

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// OperationContext describes why an operation is being run. It is created once
// per call site right before invoking Do and is never modified afterwards.
type OperationContext struct {
	correlationID string
	operation     string
	component     string
	userID        string
	metadata      map[string]string
	createdAt     time.Time
}

// ContextOption customizes a new OperationContext.
type ContextOption func(*OperationContext)

// WithCorrelationID overrides the generated correlation id, e.g. to join an
// inbound request id.
func WithCorrelationID(id string) ContextOption {
	return func(c *OperationContext) {
		if id != "" {
			c.correlationID = id
		}
	}
}

// WithUserID attributes the operation to a user.
func WithUserID(id string) ContextOption {
	return func(c *OperationContext) {
		c.userID = id
	}
}

// WithMetadata attaches a free-form key/value pair.
func WithMetadata(key, value string) ContextOption {
	return func(c *OperationContext) {
		if c.metadata == nil {
			c.metadata = make(map[string]string)
		}
		c.metadata[key] = value
	}
}

// NewOperationContext creates a context with a fresh correlation id.
func NewOperationContext(operation, component string, opts ...ContextOption) *OperationContext {
	c := &OperationContext{
		correlationID: uuid.NewString(),
		operation:     operation,
		component:     component,
		createdAt:     time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OperationContext) CorrelationID() string { return c.correlationID }
func (c *OperationContext) Operation() string     { return c.operation }
func (c *OperationContext) Component() string     { return c.component }
func (c *OperationContext) UserID() string        { return c.userID }
func (c *OperationContext) CreatedAt() time.Time  { return c.createdAt }

// Metadata returns a copy of the attached metadata.
func (c *OperationContext) Metadata() map[string]string {
	return maps.Clone(c.metadata)
}

// LogAttrs returns slog key/value pairs identifying the operation.
// A nil context yields no attributes.
func (c *OperationContext) LogAttrs() []any {
	if c == nil {
		return nil
	}
	attrs := []any{
		"correlation_id", c.correlationID,
		"operation", c.operation,
		"component", c.component,
	}
	if c.userID != "" {
		attrs = append(attrs, "user_id", c.userID)
	}
	return attrs
}
