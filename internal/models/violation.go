package models

import "time"

// Violation records one infraction. Points are copied from the regulation when
// the event is created and never follow later regulation edits.
type Violation struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	RegulationID string    `db:"regulation_id" json:"regulation_id"`
	Points       int       `db:"points" json:"points"`
	Description  string    `db:"description" json:"description"`
	RecordedBy   string    `db:"recorded_by" json:"recorded_by"`
	OccurredAt   time.Time `db:"occurred_at" json:"occurred_at"`
	SchoolYear   string    `db:"school_year" json:"school_year"`
	Semester     Semester  `db:"semester" json:"semester"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ViolationDetail joins the regulation a violation references.
type ViolationDetail struct {
	Violation
	RegulationName     string         `db:"regulation_name" json:"regulation_name"`
	RegulationCategory string         `db:"regulation_category" json:"regulation_category"`
	RegulationType     RegulationType `db:"regulation_type" json:"regulation_type"`
	ActionTaken        string         `db:"action_taken" json:"action_taken"`
}

// ViolationFilter narrows violation listings.
type ViolationFilter struct {
	StudentID  string
	SchoolYear string
	Semester   Semester
	Page       int
	PageSize   int
}
