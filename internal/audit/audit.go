package audit

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/opsdesk/storeops/internal"
	auditDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/audit"
	"gorm.io/datatypes"
)

// FieldChange is one field-level diff captured at the moment of mutation.
// Old and new values may be nested composites, not just primitives; they are
// validated for JSON representability where the change set is built, not at
// read time.
type FieldChange struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"old_value"`
	NewValue interface{} `json:"new_value"`
}

// RequestContext carries the transport-level facts worth keeping with an
// audit entry.
type RequestContext struct {
	SourceAddress string
	ClientAgent   string
}

// ContextFromRequest extracts the caller address and user agent from an HTTP
// request, honoring X-Forwarded-For when a proxy sits in front.
func ContextFromRequest(r *http.Request) RequestContext {
	addr := r.Header.Get("X-Forwarded-For")
	if addr != "" {
		// first hop is the original client
		addr = strings.TrimSpace(strings.Split(addr, ",")[0])
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			addr = host
		} else {
			addr = r.RemoteAddr
		}
	}
	return RequestContext{
		SourceAddress: addr,
		ClientAgent:   r.UserAgent(),
	}
}

// Entry is one immutable audit record. There is no update or delete path in
// the public surface; entries only ever get appended.
type Entry struct {
	ID            int64         `json:"id"`
	ActorID       int64         `json:"actor_id"`
	ActorEmail    string        `json:"actor_email"`
	ActorRole     string        `json:"actor_role"`
	Action        string        `json:"action"`
	EntityType    string        `json:"entity_type"`
	EntityID      string        `json:"entity_id"`
	Changes       []FieldChange `json:"changes"`
	SourceAddress string        `json:"source_address,omitempty"`
	ClientAgent   string        `json:"client_agent,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// ValidateChanges rejects change sets that could not be read back: empty
// field names or values JSON cannot represent.
func ValidateChanges(changes []FieldChange) *internal.AppError {
	for i, c := range changes {
		if c.Field == "" {
			return internal.NewValidationError(
				fmt.Sprintf("change %d has an empty field name", i),
				internal.ErrCodeInvalidChangeSet)
		}
		if _, err := json.Marshal(c.OldValue); err != nil {
			return internal.NewValidationError(
				fmt.Sprintf("change %d: old value for %s is not serializable", i, c.Field),
				internal.ErrCodeInvalidChangeSet).WithCause(err)
		}
		if _, err := json.Marshal(c.NewValue); err != nil {
			return internal.NewValidationError(
				fmt.Sprintf("change %d: new value for %s is not serializable", i, c.Field),
				internal.ErrCodeInvalidChangeSet).WithCause(err)
		}
	}
	return nil
}

func marshalChanges(changes []FieldChange) (datatypes.JSON, error) {
	if changes == nil {
		changes = []FieldChange{}
	}
	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// FromDataModel converts a stored row back to the domain entry. The change
// payload is decoded in stored order.
func FromDataModel(m *auditDatamodel.AuditLog) (*Entry, error) {
	var changes []FieldChange
	if len(m.Changes) > 0 {
		if err := json.Unmarshal(m.Changes, &changes); err != nil {
			return nil, fmt.Errorf("decode changes for audit entry %d: %w", m.ID, err)
		}
	}
	return &Entry{
		ID:            m.ID,
		ActorID:       m.ActorID,
		ActorEmail:    m.ActorEmail,
		ActorRole:     m.ActorRole,
		Action:        m.Action,
		EntityType:    m.EntityType,
		EntityID:      m.EntityID,
		Changes:       changes,
		SourceAddress: m.SourceAddress,
		ClientAgent:   m.ClientAgent,
		Timestamp:     m.CreatedAt,
	}, nil
}
