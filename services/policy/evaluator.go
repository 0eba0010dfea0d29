package policy

import (
	"fmt"
	"strings"

	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/models"
	"github.com/upb/siamonitor/services"
	"go.uber.org/zap"
)

const (
	// MaxTeamSize counts the lead as a member
	MaxTeamSize = 5

	MinGrade = 0
	MaxGrade = 5
)

// Effect classifies a decision for the caller
type Effect string

const (
	EffectAllow     Effect = "allow"
	EffectForbidden Effect = "forbidden" // caller lacks role, ownership or membership
	EffectInvalid   Effect = "invalid"   // request breaks a domain rule
	EffectConflict  Effect = "conflict"  // request duplicates existing state
)

// Decision is the outcome of one authorization question. It is computed per
// request and never cached.
type Decision struct {
	Allowed bool
	Reason  string
	Effect  Effect
}

func allow() Decision {
	return Decision{Allowed: true, Effect: EffectAllow}
}

func forbid(reason string) Decision {
	return Decision{Reason: reason, Effect: EffectForbidden}
}

func reject(reason string) Decision {
	return Decision{Reason: reason, Effect: EffectInvalid}
}

func conflict(reason string) Decision {
	return Decision{Reason: reason, Effect: EffectConflict}
}

// Err converts a denial into a services.DomainError, nil when allowed
func (d Decision) Err() error {
	switch d.Effect {
	case EffectAllow:
		return nil
	case EffectInvalid:
		return services.NewDomainError(services.ErrorTypeValidation, d.Reason, nil)
	case EffectConflict:
		return services.NewDomainError(services.ErrorTypeConflict, d.Reason, nil)
	default:
		return services.NewDomainError(services.ErrorTypeForbidden, d.Reason, nil)
	}
}

// UploadRule selects who may upload milestone artifacts
type UploadRule string

const (
	UploadLeadOnly  UploadRule = "lead"
	UploadAnyMember UploadRule = "member"
)

// ParseUploadRule validates a configured upload rule
func ParseUploadRule(s string) (UploadRule, error) {
	switch rule := UploadRule(strings.ToLower(strings.TrimSpace(s))); rule {
	case UploadLeadOnly, UploadAnyMember:
		return rule, nil
	case "":
		return UploadLeadOnly, nil
	default:
		return "", fmt.Errorf("unknown upload rule %q (want lead or member)", s)
	}
}

// MemberAddition carries the facts needed to decide a team member add
type MemberAddition struct {
	Project       *models.Project
	Candidate     *models.Profile // nil when no profile exists for the subject
	MemberCount   int
	AlreadyMember bool
	// NewMobileRepoURL is set when the same request also sets the secondary repository
	NewMobileRepoURL string
}

// Evaluator answers resource-level authorization questions. It performs no
// I/O; callers load the facts and pass them in.
type Evaluator struct {
	uploadRule UploadRule
	logger     *zap.Logger
}

// NewEvaluator creates a policy evaluator
func NewEvaluator(uploadRule UploadRule, logger *zap.Logger) *Evaluator {
	if uploadRule == "" {
		uploadRule = UploadLeadOnly
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{uploadRule: uploadRule, logger: logger}
}

// UploadRule returns the active upload rule
func (e *Evaluator) UploadRule() UploadRule {
	return e.uploadRule
}

// CanCreateProject allows a lead-mode profile without a project
func (e *Evaluator) CanCreateProject(id *auth.Identity, profile *models.Profile, ownsProject bool) Decision {
	if profile == nil || !profile.IsLead() {
		return e.deny("create_project", id, forbid("Only team lead can create a project"))
	}
	if ownsProject {
		return e.deny("create_project", id, reject("Lead already has a project"))
	}
	return allow()
}

// CanAddMember enforces lead ownership, the team cap and the secondary
// repository requirement for a full team.
func (e *Evaluator) CanAddMember(id *auth.Identity, add MemberAddition) Decision {
	if add.Project == nil || id == nil || !add.Project.IsLead(id.Subject) {
		return e.deny("add_member", id, forbid("Only lead can add members"))
	}
	if add.Candidate == nil {
		return e.deny("add_member", id, reject("Student not found by subject"))
	}
	if add.Candidate.IsTeacher() {
		return e.deny("add_member", id, reject("Only students can be added"))
	}
	if add.MemberCount >= MaxTeamSize {
		return e.deny("add_member", id, reject(fmt.Sprintf("Team is full (max %d)", MaxTeamSize)))
	}
	if add.AlreadyMember {
		return e.deny("add_member", id, conflict("Student already in this project"))
	}
	if add.MemberCount+1 == MaxTeamSize && !add.Project.HasMobileRepo() && strings.TrimSpace(add.NewMobileRepoURL) == "" {
		return e.deny("add_member", id, reject(fmt.Sprintf("With %d members, mobile_repo_url is required", MaxTeamSize)))
	}
	return allow()
}

// CanViewProject allows teachers and project members
func (e *Evaluator) CanViewProject(id *auth.Identity, isMember bool) Decision {
	if id.IsTeacher() || isMember {
		return allow()
	}
	return e.deny("view_project", id, forbid("Forbidden"))
}

// CanEditProject allows only the project lead
func (e *Evaluator) CanEditProject(id *auth.Identity, project *models.Project) Decision {
	if id != nil && project != nil && project.IsLead(id.Subject) {
		return allow()
	}
	return e.deny("edit_project", id, forbid("Only lead can edit the project"))
}

// CanDropMobileRepo refuses to clear the secondary repository of a full team
func (e *Evaluator) CanDropMobileRepo(id *auth.Identity, memberCount int) Decision {
	if memberCount >= MaxTeamSize {
		return e.deny("edit_project", id, reject(fmt.Sprintf("With %d members, mobile_repo_url is required", MaxTeamSize)))
	}
	return allow()
}

// CanGrade allows teachers to set a grade in [MinGrade, MaxGrade]
func (e *Evaluator) CanGrade(id *auth.Identity, value int) Decision {
	if !id.IsTeacher() {
		return e.deny("grade", id, forbid("Teacher role required"))
	}
	if value < MinGrade || value > MaxGrade {
		return e.deny("grade", id, reject(fmt.Sprintf("grade must be between %d and %d", MinGrade, MaxGrade)))
	}
	return allow()
}

// CanUpload applies the configured upload rule
func (e *Evaluator) CanUpload(id *auth.Identity, project *models.Project, isMember bool) Decision {
	if id == nil || project == nil {
		return e.deny("upload", id, forbid("Forbidden"))
	}
	isLead := project.IsLead(id.Subject)
	switch e.uploadRule {
	case UploadAnyMember:
		if isLead || isMember {
			return allow()
		}
		return e.deny("upload", id, forbid("Only team members can upload files"))
	default:
		if isLead {
			return allow()
		}
		return e.deny("upload", id, forbid("Only team lead can upload files"))
	}
}

// CanDownload allows teachers, members and the lead
func (e *Evaluator) CanDownload(id *auth.Identity, project *models.Project, isMember bool) Decision {
	if id.IsTeacher() || isMember || (project != nil && id != nil && project.IsLead(id.Subject)) {
		return allow()
	}
	return e.deny("download", id, forbid("Forbidden"))
}

// CanManageMilestones allows teachers
func (e *Evaluator) CanManageMilestones(id *auth.Identity) Decision {
	return e.teacherOnly("manage_milestones", id)
}

// CanViewRating allows teachers
func (e *Evaluator) CanViewRating(id *auth.Identity) Decision {
	return e.teacherOnly("view_rating", id)
}

// CanWipe allows teachers
func (e *Evaluator) CanWipe(id *auth.Identity) Decision {
	return e.teacherOnly("wipe", id)
}

// CanChangeMode lets students switch between participant and lead
func (e *Evaluator) CanChangeMode(id *auth.Identity, mode models.ProfileMode) Decision {
	if id.IsTeacher() {
		return e.deny("change_mode", id, forbid("Teachers cannot change mode"))
	}
	if !models.IsValidMode(mode) {
		return e.deny("change_mode", id, reject("mode must be participant or lead"))
	}
	return allow()
}

func (e *Evaluator) teacherOnly(action string, id *auth.Identity) Decision {
	if id.IsTeacher() {
		return allow()
	}
	return e.deny(action, id, forbid("Teacher role required"))
}

func (e *Evaluator) deny(action string, id *auth.Identity, d Decision) Decision {
	sub := ""
	if id != nil {
		sub = id.Subject
	}
	e.logger.Debug("policy denied",
		zap.String("action", action),
		zap.String("sub", sub),
		zap.String("effect", string(d.Effect)),
		zap.String("reason", d.Reason))
	return d
}
