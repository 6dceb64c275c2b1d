package model

import "time"

// Severity drives triage ordering for coaching flags.
type Severity string

// Flag severities, lowest to highest.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FlagType names the rule family that raised a flag.
type FlagType string

// Flag types emitted by the rules engine.
const (
	FlagNoShow             FlagType = "no_show"
	FlagLateness           FlagType = "lateness"
	FlagEarlyEnd           FlagType = "early_end"
	FlagPoorFirstSession   FlagType = "poor_first_session"
	FlagHighRescheduleRate FlagType = "high_reschedule_rate"
	FlagChronicLateness    FlagType = "chronic_lateness"
	FlagDecliningRatings   FlagType = "declining_ratings"
)

// FlagStatus is the lifecycle state of a flag.
type FlagStatus string

// Flag lifecycle states.
const (
	FlagOpen       FlagStatus = "open"
	FlagInProgress FlagStatus = "in_progress"
	FlagResolved   FlagStatus = "resolved"
	FlagDismissed  FlagStatus = "dismissed"
)

// RuleResult is the transient output of one detector. It is not
// persisted unless Triggered is true, in which case the flag creator
// maps it to a Flag.
type RuleResult struct {
	Triggered         bool
	FlagType          FlagType
	Severity          Severity
	Title             string
	Description       string
	RecommendedAction *string
	SupportingData    map[string]any
}

// Flag is a persisted coaching alert. At most one open flag exists per
// (TutorID, FlagType) pair at any time; new triggers for an already-open
// type are suppressed rather than duplicated.
type Flag struct {
	ID        string
	TutorID   string
	SessionID *string // nil for aggregate-level flags

	FlagType          FlagType
	Severity          Severity
	Title             string
	Description       string
	RecommendedAction *string
	SupportingData    map[string]any

	Status          FlagStatus
	ResolvedAt      *time.Time
	ResolvedBy      *string
	ResolutionNotes *string
	CoachAgreed     *bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
