package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive      EnrollmentStatus = "ACTIVE"
	EnrollmentStatusTransferred EnrollmentStatus = "TRANSFERRED"
	EnrollmentStatusLeft        EnrollmentStatus = "LEFT"
)

// Enrollment captures a student's membership of a class within a school year.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	ClassID    string           `db:"class_id" json:"class_id"`
	SchoolYear string           `db:"school_year" json:"school_year"`
	JoinedAt   time.Time        `db:"joined_at" json:"joined_at"`
	LeftAt     *time.Time       `db:"left_at" json:"left_at,omitempty"`
	Status     EnrollmentStatus `db:"status" json:"status"`
}

// EnrollmentDetail enriches Enrollment with student and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	StudentNIS  string `db:"student_nis" json:"student_nis"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// Overlaps reports whether the enrollment was active at any point in [from, to].
func (e Enrollment) Overlaps(from, to time.Time) bool {
	if e.JoinedAt.After(to) {
		return false
	}
	if e.LeftAt != nil && e.LeftAt.Before(from) {
		return false
	}
	return true
}
