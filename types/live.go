package types

import "time"

// Section is a live room's named container for one block of collaboratively
// visible text. Sections are provisioned per user (id "user-<userId>") on the
// first live edit; the name mirrors the owner's display name and is re-synced
// when the owner's profile changes.
type Section struct {
	Name    string
	Owner   string
	Members map[string]struct{} // user ids whose live text belongs to this section
}

// SectionInfo is the wire representation of a section in sectionsUpdated
// broadcasts and room snapshots.
type SectionInfo struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	UserCount int    `json:"userCount"`
	Owner     string `json:"owner"`
}

// LiveContent is one user's current live text, last write wins.
type LiveContent struct {
	Text      string    `json:"text"`
	SectionId string    `json:"sectionId"`
	Timestamp time.Time `json:"timestamp"`
}
