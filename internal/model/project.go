package model

import "time"

const (
	ProjectStatusNotStarted = "not_started"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusOnHold     = "on_hold"
	ProjectStatusCompleted  = "completed"
)

var projectStatuses = map[string]bool{
	ProjectStatusNotStarted: true,
	ProjectStatusInProgress: true,
	ProjectStatusOnHold:     true,
	ProjectStatusCompleted:  true,
}

var projectTypes = map[string]bool{
	"diy":        true,
	"contractor": true,
	"handyman":   true,
}

var priorities = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

type Project struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	Priority        *string    `json:"priority"`
	OwnerID         *string    `json:"ownerId"`
	ImplementerID   *string    `json:"implementerId"`
	TargetDate      *string    `json:"targetDate"`
	EstimatedBudget *int64     `json:"estimatedBudget"`
	ActualBudget    *int64     `json:"actualBudget"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CompletedAt     *time.Time `json:"completedAt"`
}

// ProjectWithTags is the read model returned by the project endpoints.
type ProjectWithTags struct {
	Project
	Tags []Tag `json:"tags"`
}

// ProjectFilter narrows a project listing. Empty fields match everything.
type ProjectFilter struct {
	Status  string
	Type    string
	OwnerID string
}

func ValidProjectStatus(s string) bool { return projectStatuses[s] }

func ValidProjectType(t string) bool { return projectTypes[t] }

func ValidPriority(p string) bool { return priorities[p] }

// ProjectCompletedAt computes completed_at for a project moving from
// previous to next status. Entering completed stamps now, staying completed
// keeps the existing stamp, and any other status clears it.
func ProjectCompletedAt(previous, next string, existing *time.Time, now time.Time) *time.Time {
	if next != ProjectStatusCompleted {
		return nil
	}
	if previous == ProjectStatusCompleted && existing != nil {
		return existing
	}
	return &now
}
