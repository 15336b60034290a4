package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/riskgovernor/internal/domain"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// GuardPublishedData contains data for GuardPublished events
type GuardPublishedData struct {
	CaseID     string                `json:"case_id"`
	DecisionID string                `json:"decision_id"`
	AuditID    string                `json:"audit_id"`
	Guard      domain.ExecutionGuard `json:"guard"`
}

// EventType returns the event type for GuardPublishedData
func (d *GuardPublishedData) EventType() EventType {
	return GuardPublished
}

// CaseCreatedData contains data for CaseCreated events
type CaseCreatedData struct {
	CaseID    string `json:"case_id"`
	Asset     string `json:"asset"`
	PersonaID string `json:"persona_id"`
}

// EventType returns the event type for CaseCreatedData
func (d *CaseCreatedData) EventType() EventType {
	return CaseCreated
}

// OverrideRecordedData contains data for OverrideRecorded events
type OverrideRecordedData struct {
	Override domain.Override `json:"override"`
	VectorID string          `json:"vector_id"`
}

// EventType returns the event type for OverrideRecordedData
func (d *OverrideRecordedData) EventType() EventType {
	return OverrideRecorded
}

// RiskEscalatedData contains data for RiskEscalated events
type RiskEscalatedData struct {
	Event  domain.RiskEvent `json:"event"`
	Reason string           `json:"reason"`
}

// EventType returns the event type for RiskEscalatedData
func (d *RiskEscalatedData) EventType() EventType {
	return RiskEscalated
}

// Event is one published domain event.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// UnmarshalJSON restores the typed payload from the event type.
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if len(aux.Data) == 0 {
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case GuardPublished:
		eventData = &GuardPublishedData{}
	case CaseCreated:
		eventData = &CaseCreatedData{}
	case OverrideRecorded:
		eventData = &OverrideRecordedData{}
	case RiskEscalated:
		eventData = &RiskEscalatedData{}
	default:
		return fmt.Errorf("unknown event type: %s", aux.Type)
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}
