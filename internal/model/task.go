package model

import "time"

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	AssigneeID  *string    `json:"assigneeId"`
	SortOrder   int        `json:"sortOrder"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// TaskPatch carries the fields of a partial task update. Nil pointers are
// left untouched. SetAssignee distinguishes "clear the assignee" from
// "leave it alone".
type TaskPatch struct {
	Title       *string
	Status      *string
	SetAssignee bool
	AssigneeID  *string
	SortOrder   *int
}

func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}
