package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the closed set of report change events carried on the
// queue. Anything else is a decode error.
type EventType string

const (
	EventNewReport    EventType = "NEW_REPORT"
	EventEditReport   EventType = "EDIT_REPORT"
	EventDeleteReport EventType = "DELETE_REPORT"
)

// Action is the delivery-facing name of an event type, sent to generic
// subscriber endpoints.
type Action string

const (
	ActionNew    Action = "new"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Type maps an action back to its event type for retry publishing.
func (a Action) Type() EventType {
	switch a {
	case ActionEdit:
		return EventEditReport
	case ActionDelete:
		return EventDeleteReport
	default:
		return EventNewReport
	}
}

// Action maps an event type to its delivery action.
func (t EventType) Action() Action {
	switch t {
	case EventEditReport:
		return ActionEdit
	case EventDeleteReport:
		return ActionDelete
	default:
		return ActionNew
	}
}

// EventPayload carries the report data for one event. A non-nil
// Subscription targets the retry at exactly one subscriber; nil means
// resolve the full audience.
type EventPayload struct {
	Report       *Report `json:"report"`
	OldReport    *Report `json:"oldReport,omitempty"`
	Subscription *int64  `json:"subscription,omitempty"`
	Attempt      int     `json:"attempt,omitempty"`
}

// Event is one unit of queue traffic: a report change or a scheduled
// retry. NotBefore defers processing until the given instant.
type Event struct {
	ID        string       `json:"id,omitempty"`
	Type      EventType    `json:"type"`
	Data      EventPayload `json:"data"`
	NotBefore *time.Time   `json:"notBefore,omitempty"`
}

// DecodeEvent parses a raw queue payload. Unknown event types and
// malformed payloads are rejected so the caller can drop the message.
func DecodeEvent(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("malformed event: %w", err)
	}
	switch evt.Type {
	case EventNewReport, EventEditReport, EventDeleteReport:
	default:
		return nil, fmt.Errorf("unknown event type %q", evt.Type)
	}
	if evt.Data.Report == nil {
		return nil, fmt.Errorf("event %s carries no report", evt.Type)
	}
	return &evt, nil
}
