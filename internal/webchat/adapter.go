package webchat

import (
	"time"

	"github.com/sportbar2312/reservation-bot/internal/conversation"
	"github.com/sportbar2312/reservation-bot/internal/wizard"
)

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "select", "reset", "ping"
	ClientKey string `json:"client,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	// Action and Value carry a selection: Action is the event kind the
	// option belonged to (select_zone, confirm_date, ...).
	Action string `json:"action,omitempty"`
	Value  string `json:"value,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type           string          `json:"type"` // "session", "typing", "outputs", "dropped", "error", "pong"
	SessionID      string          `json:"session_id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Step           string          `json:"step,omitempty"`
	Outputs        []wizard.Output `json:"outputs,omitempty"`
	Text           string          `json:"text,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
}

var selectionKinds = map[wizard.EventKind]struct{}{
	wizard.EventSelectZone:  {},
	wizard.EventSelectTime:  {},
	wizard.EventConfirmDate: {},
	wizard.EventPickTable:   {},
	wizard.EventPickOptIn:   {},
}

// Event maps a widget frame onto a wizard event. ok is false for frames that
// carry no customer input.
func (m InboundMessage) Event() (ev wizard.Event, ok bool) {
	switch m.Type {
	case "message":
		return wizard.Text(m.Text), true
	case "select":
		kind := wizard.EventKind(m.Action)
		if _, known := selectionKinds[kind]; !known {
			return wizard.Event{}, false
		}
		return wizard.Event{Kind: kind, Value: m.Value}, true
	case "reset":
		return wizard.Reset(""), true
	default:
		return wizard.Event{}, false
	}
}

func outputsFrame(sessionID string, res *conversation.Result) OutboundMessage {
	return OutboundMessage{
		Type:           "outputs",
		SessionID:      sessionID,
		ConversationID: res.ConversationID,
		Step:           res.Step,
		Outputs:        res.Outputs,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}
