package model

import "time"

type Note struct {
	ID        string    `json:"id"`
	ProjectID *string   `json:"projectId"`
	TaskID    *string   `json:"taskId"`
	Content   string    `json:"content"`
	AuthorID  *string   `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteView is a note with its author's display fields joined in.
type NoteView struct {
	Note
	Author *MemberSummary `json:"author"`
}
