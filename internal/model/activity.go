package model

import (
	"encoding/json"
	"time"
)

const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionCompleted = "completed"
)

const (
	EntityProject = "project"
	EntityTask    = "task"
	EntityMember  = "member"
	EntityNote    = "note"
	EntityPhoto   = "photo"
)

type Activity struct {
	ID          string          `json:"id"`
	Action      string          `json:"action"`
	EntityType  string          `json:"entityType"`
	EntityID    *string         `json:"entityId"`
	EntityTitle *string         `json:"entityTitle"`
	ProjectID   *string         `json:"projectId"`
	ActorID     *string         `json:"actorId"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ProjectSummary is the display slice of a project joined into activities.
type ProjectSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ActivityView is an activity with actor and project display fields.
type ActivityView struct {
	Activity
	Actor   *MemberSummary  `json:"actor"`
	Project *ProjectSummary `json:"project"`
}

func ValidAction(a string) bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionCompleted:
		return true
	}
	return false
}

func ValidEntityType(t string) bool {
	switch t {
	case EntityProject, EntityTask, EntityMember, EntityNote, EntityPhoto:
		return true
	}
	return false
}
