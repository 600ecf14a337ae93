package domain

import (
	"strings"
	"time"
)

// SessionState enumerates the conversation states.
type SessionState string

const (
	SessionStateIdle                SessionState = "IDLE"
	SessionStateWaitingConfirmation SessionState = "WAITING_CONFIRMATION"
	SessionStateEditing             SessionState = "EDITING"
)

// TempData holds the partially captured ticket fields while a conversation is
// in flight. It is only meaningful outside IDLE and is cleared on every reset.
type TempData map[string]any

// ConversationSession is the per-phone-number dialogue state. UserID is nil
// until the sender is matched against a profile or a collaborator record.
type ConversationSession struct {
	ID             string
	PhoneNumber    string
	UserID         *string
	IsCollaborator bool
	CurrentState   SessionState
	TempData       TempData
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Registered reports whether the sender was linked to an internal identity.
func (s *ConversationSession) Registered() bool {
	return s != nil && s.UserID != nil && *s.UserID != ""
}

var cancelKeywords = []string{"cancelar", "cancel"}

// IsCancelKeyword matches the global cancel command, case-insensitive and
// trimmed. It applies in every state except IDLE.
func IsCancelKeyword(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range cancelKeywords {
		if normalized == kw {
			return true
		}
	}
	return false
}

var acceptKeywords = []string{"si", "sí", "confirmar", "ok", "correcto"}

// IsAcceptKeyword matches the confirmation replies accepted while waiting for
// confirmation. Exact match only; "si quiero" is not an acceptance.
func IsAcceptKeyword(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range acceptKeywords {
		if normalized == kw {
			return true
		}
	}
	return false
}

// IsEditRequest matches replies that ask to correct the captured data. The
// original flow treats any reply containing "editar" or "no" as an edit/deny.
func IsEditRequest(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	return strings.Contains(normalized, "editar") || strings.Contains(normalized, "no")
}

// editFieldMap translates the localized field names users type while editing
// into the canonical TempData keys.
var editFieldMap = map[string]string{
	"monto":     "amount",
	"fecha":     "date",
	"comercio":  "merchant_name",
	"categoria": "category",
	"categoría": "category",
	"iva":       "iva_amount",
}

// ParseEditCommand splits a "Campo: Valor" correction into a canonical key and
// the raw value. Unmapped field names pass through verbatim; the insert step
// ignores keys it does not recognize. ok is false when no separator is present.
func ParseEditCommand(text string) (key, value string, mapped, ok bool) {
	parts := strings.SplitN(text, ":", 2)
	if len(parts) < 2 {
		return "", "", false, false
	}
	rawField := strings.ToLower(strings.TrimSpace(parts[0]))
	value = strings.TrimSpace(parts[1])
	if canonical, found := editFieldMap[rawField]; found {
		return canonical, value, true, true
	}
	return rawField, value, false, true
}
