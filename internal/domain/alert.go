package domain

import "time"

// AlertKind distinguishes an absolute price threshold from a percentage
// move alert.
type AlertKind string

const (
	AlertKindThreshold  AlertKind = "threshold"
	AlertKindPercentage AlertKind = "percentage"
)

// AlertCondition is the comparison direction for an alert.
type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

// Alert is a one-shot watch on a mint's price. Once Triggered is true it
// stays fired until removed.
type Alert struct {
	ID        string
	Mint      string
	Symbol    string
	Kind      AlertKind
	Condition AlertCondition
	Value     float64

	Enabled bool

	Triggered   bool
	CreatedAt   time.Time
	TriggeredAt time.Time
}
