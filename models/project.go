package models

import (
	"time"
)

// TeamRoleLead marks the project owner in the member list
const TeamRoleLead = "lead"

// Project is a student team project owned by exactly one lead
type Project struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   *string   `json:"description,omitempty" db:"description"`
	RepoURL       *string   `json:"repo_url,omitempty" db:"repo_url"`
	TrackerURL    *string   `json:"tracker_url,omitempty" db:"tracker_url"`
	MobileRepoURL *string   `json:"mobile_repo_url,omitempty" db:"mobile_repo_url"` // Secondary repository, required for a full team
	LeadSub       string    `json:"lead_sub" db:"lead_sub"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Project model
func (Project) TableName() string {
	return "projects"
}

// HasMobileRepo returns true if the secondary repository URL is set
func (p *Project) HasMobileRepo() bool {
	return p.MobileRepoURL != nil && *p.MobileRepoURL != ""
}

// IsLead returns true if sub owns the project
func (p *Project) IsLead(sub string) bool {
	return p.LeadSub == sub
}

// TeamMember links a profile to a project
type TeamMember struct {
	ID         int64     `json:"id" db:"id"`
	ProjectID  int64     `json:"project_id" db:"project_id"`
	MemberSub  string    `json:"member_sub" db:"member_sub"`
	RoleInTeam *string   `json:"role_in_team,omitempty" db:"role_in_team"`
	AddedAt    time.Time `json:"added_at" db:"added_at"`
	FullName   string    `json:"full_name,omitempty" db:"-"`
}

// TableName returns the table name for the TeamMember model
func (TeamMember) TableName() string {
	return "team_members"
}
