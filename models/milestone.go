package models

import (
	"time"
)

// DeadlineLayout is the accepted milestone deadline format
const DeadlineLayout = "2006-01-02"

// Milestone is a course-wide checkpoint shared by every project
type Milestone struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Deadline  *string   `json:"deadline,omitempty" db:"deadline"` // YYYY-MM-DD
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Milestone model
func (Milestone) TableName() string {
	return "milestones"
}

// FileKind names an artifact slot on a (project, milestone) pair
type FileKind string

const (
	FileKindPresentation FileKind = "presentation"
	FileKindReport       FileKind = "report"
)

// IsValidFileKind reports whether kind is a known artifact slot
func IsValidFileKind(kind FileKind) bool {
	return kind == FileKindPresentation || kind == FileKindReport
}

// Grade holds the grade and uploaded artifacts for one (project, milestone) pair
type Grade struct {
	ID               int64      `json:"id" db:"id"`
	ProjectID        int64      `json:"project_id" db:"project_id"`
	MilestoneID      int64      `json:"milestone_id" db:"milestone_id"`
	Grade            *int       `json:"grade,omitempty" db:"grade"` // 0..5
	PresentationPath *string    `json:"presentation_path,omitempty" db:"presentation_path"`
	ReportPath       *string    `json:"report_path,omitempty" db:"report_path"`
	GradedBySub      *string    `json:"graded_by_sub,omitempty" db:"graded_by_sub"`
	GradedAt         *time.Time `json:"graded_at,omitempty" db:"graded_at"`
}

// TableName returns the table name for the Grade model
func (Grade) TableName() string {
	return "project_milestone_grades"
}

// PathFor returns the stored relative path for kind
func (g *Grade) PathFor(kind FileKind) *string {
	if g == nil {
		return nil
	}
	switch kind {
	case FileKindPresentation:
		return g.PresentationPath
	case FileKindReport:
		return g.ReportPath
	default:
		return nil
	}
}

// RatingRow is one line of the teacher's team ranking
type RatingRow struct {
	ProjectID   int64    `json:"project_id"`
	ProjectName string   `json:"project_name"`
	TeamSize    int      `json:"team_size"`
	AvgGrade    *float64 `json:"avg_grade"`
	Grades      []int    `json:"grades"`
}

// WipeReport summarizes a bulk wipe
type WipeReport struct {
	Grades          int64 `json:"grades"`
	Members         int64 `json:"members"`
	Projects        int64 `json:"projects"`
	Milestones      int64 `json:"milestones"`
	StudentProfiles int64 `json:"student_profiles"`
}

// MilestoneState is one milestone as seen by a project: its grade and uploaded artifacts
type MilestoneState struct {
	ProjectID        int64   `json:"project_id"`
	MilestoneID      int64   `json:"milestone_id"`
	Title            string  `json:"title"`
	Deadline         *string `json:"deadline,omitempty"`
	Grade            *int    `json:"grade"`
	PresentationPath *string `json:"presentation_path"`
	ReportPath       *string `json:"report_path"`
}
