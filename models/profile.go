package models

import (
	"time"
)

// ProfileMode is the account mode a student picks for the course
type ProfileMode string

const (
	ModeParticipant ProfileMode = "participant"
	ModeLead        ProfileMode = "lead"
	ModeTeacher     ProfileMode = "teacher"
)

// Profile is the local record kept for every subject that has signed in
type Profile struct {
	ID        int64       `json:"id" db:"id"`
	Sub       string      `json:"sub" db:"sub"` // Identity provider subject
	Username  *string     `json:"username,omitempty" db:"username"`
	Email     *string     `json:"email,omitempty" db:"email"`
	Mode      ProfileMode `json:"mode" db:"mode"`
	FullName  *string     `json:"full_name,omitempty" db:"full_name"`
	GroupNo   *string     `json:"group_no,omitempty" db:"group_no"`
	Tg        *string     `json:"tg,omitempty" db:"tg"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Profile model
func (Profile) TableName() string {
	return "user_profiles"
}

// NewProfile creates a participant profile for sub
func NewProfile(sub string) *Profile {
	return &Profile{
		Sub:       sub,
		Mode:      ModeParticipant,
		CreatedAt: time.Now().UTC(),
	}
}

// IsLead returns true if the profile is in lead mode
func (p *Profile) IsLead() bool {
	return p.Mode == ModeLead
}

// IsTeacher returns true if the profile belongs to a teacher
func (p *Profile) IsTeacher() bool {
	return p.Mode == ModeTeacher
}

// DisplayName returns full name, username or email, whichever is set first
func (p *Profile) DisplayName() string {
	for _, v := range []*string{p.FullName, p.Username, p.Email} {
		if v != nil && *v != "" {
			return *v
		}
	}
	return p.Sub
}

// IsValidMode reports whether a student may switch to mode
func IsValidMode(mode ProfileMode) bool {
	return mode == ModeParticipant || mode == ModeLead
}
