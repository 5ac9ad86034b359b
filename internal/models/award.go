package models

import "time"

// AwardStatus tracks the approval workflow of an award.
type AwardStatus string

const (
	AwardStatusProposed AwardStatus = "proposed"
	AwardStatusApproved AwardStatus = "approved"
	AwardStatusRejected AwardStatus = "rejected"
)

// Award records one commendation. Only approved awards are credited.
type Award struct {
	ID           string      `db:"id" json:"id"`
	StudentID    string      `db:"student_id" json:"student_id"`
	RegulationID string      `db:"regulation_id" json:"regulation_id"`
	Points       int         `db:"points" json:"points"`
	Description  string      `db:"description" json:"description"`
	ProposedBy   string      `db:"proposed_by" json:"proposed_by"`
	ApprovedBy   *string     `db:"approved_by" json:"approved_by,omitempty"`
	Status       AwardStatus `db:"status" json:"status"`
	OccurredAt   time.Time   `db:"occurred_at" json:"occurred_at"`
	SchoolYear   string      `db:"school_year" json:"school_year"`
	Semester     Semester    `db:"semester" json:"semester"`
	DecidedAt    *time.Time  `db:"decided_at" json:"decided_at,omitempty"`
	DecisionNote *string     `db:"decision_note" json:"decision_note,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// AwardDetail joins the regulation an award references.
type AwardDetail struct {
	Award
	RegulationName     string         `db:"regulation_name" json:"regulation_name"`
	RegulationCategory string         `db:"regulation_category" json:"regulation_category"`
	RegulationType     RegulationType `db:"regulation_type" json:"regulation_type"`
	ActionTaken        string         `db:"action_taken" json:"action_taken"`
}

// AwardFilter narrows award listings.
type AwardFilter struct {
	StudentID  string
	SchoolYear string
	Semester   Semester
	Status     AwardStatus
	Page       int
	PageSize   int
}
