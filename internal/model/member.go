package model

import "time"

const (
	MemberTypeFamily     = "family"
	MemberTypeContractor = "contractor"
)

type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Initials  string    `json:"initials"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MemberSummary is the display slice of a member joined into other resources.
type MemberSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Color    string `json:"color"`
}

func ValidMemberType(t string) bool {
	return t == MemberTypeFamily || t == MemberTypeContractor
}
