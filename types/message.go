package types

import "time"

// Message is one entry of a chat room's bounded log. The author fields are a
// snapshot taken at send time and are not rewritten when the author later
// changes their profile. SessionId is the hub-issued session identifier of the
// author, used for delete authorization and for clients to recognize their own
// messages.
type Message struct {
	Id          string    `json:"id"`
	UserId      string    `json:"userId"`
	Emoji       string    `json:"emoji,omitempty"`
	DisplayName string    `json:"displayName"`
	SessionId   string    `json:"sessionId"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notice is the single pinned announcement of a chat room. Replacing or
// deleting the notice clears all answers.
type Notice struct {
	Id          string    `json:"id"`
	UserId      string    `json:"userId"`
	Emoji       string    `json:"emoji,omitempty"`
	DisplayName string    `json:"displayName"`
	SessionId   string    `json:"sessionId"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// Answer is one session's reply to the current notice, at most one per
// authoring session.
type Answer struct {
	Id          string    `json:"id"`
	UserId      string    `json:"userId"`
	Emoji       string    `json:"emoji,omitempty"`
	DisplayName string    `json:"displayName"`
	SessionId   string    `json:"sessionId"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}
