package models

import "time"

// RegulationType is the closed set of rule kinds. It alone decides the sign of
// an event's points; Category is descriptive only.
type RegulationType string

const (
	RegulationTypeViolation RegulationType = "violation"
	RegulationTypeAward     RegulationType = "award"
)

// Valid reports whether t is a known regulation type.
func (t RegulationType) Valid() bool {
	return t == RegulationTypeViolation || t == RegulationTypeAward
}

// Regulation is a catalog rule referenced by violation and award events.
type Regulation struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Category    string         `db:"category" json:"category"`
	Type        RegulationType `db:"type" json:"type"`
	Point       int            `db:"point" json:"point"`
	ActionTaken string         `db:"action_taken" json:"action_taken"`
	IsActive    bool           `db:"is_active" json:"is_active"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// RegulationFilter narrows regulation listings.
type RegulationFilter struct {
	Type     RegulationType
	Category string
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
