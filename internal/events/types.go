// Package events carries governor domain events: an in-process bus for
// committed guards, and emitters that push escalations to external consumers.
package events

// EventType identifies a domain event.
type EventType string

const (
	// GuardPublished fires after a transaction commits a new execution guard
	GuardPublished EventType = "GUARD_PUBLISHED"
	// CaseCreated fires when a case is opened
	CaseCreated EventType = "CASE_CREATED"
	// OverrideRecorded fires when a human override is stored
	OverrideRecorded EventType = "OVERRIDE_RECORDED"
	// RiskEscalated fires when a transaction escalates to a human
	RiskEscalated EventType = "RISK_ESCALATED"
)

// AllTypes lists every event type, in declaration order.
var AllTypes = []EventType{GuardPublished, CaseCreated, OverrideRecorded, RiskEscalated}
