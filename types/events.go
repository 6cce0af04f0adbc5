package types

import (
	"fmt"
	"strings"
	"time"
)

// Error codes carried by outbound error events.
const (
	ErrCodeValidation    = "validation"
	ErrCodeNotJoined     = "not_joined"
	ErrCodeWrongRoomKind = "wrong_room_kind"
	ErrCodeNotFound      = "not_found"
	ErrCodeUnknownEvent  = "unknown_event"
)

// The different types of messages transferred from the client to here. Each
// payload validates its own required fields at the protocol boundary.

type JoinPayload struct {
	UserId string `json:"userId" mapstructure:"userId"`
	Emoji  string `json:"emoji" mapstructure:"emoji"`
	RoomId string `json:"roomId" mapstructure:"roomId"`
}

type CreateRoomPayload struct {
	RoomName string `json:"roomName" mapstructure:"roomName"`
	RoomType string `json:"roomType" mapstructure:"roomType"`
}

func (p CreateRoomPayload) Validate() error {
	if strings.TrimSpace(p.RoomName) == "" {
		return fmt.Errorf("roomName is required")
	}
	if _, ok := ParseRoomKind(p.RoomType); !ok {
		return fmt.Errorf("unknown roomType %q", p.RoomType)
	}
	return nil
}

type ChangeRoomPayload struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
}

func (p ChangeRoomPayload) Validate() error {
	if strings.TrimSpace(p.RoomId) == "" {
		return fmt.Errorf("roomId is required")
	}
	return nil
}

type UpdateProfilePayload struct {
	Emoji string `json:"emoji" mapstructure:"emoji"`
}

// MessagePayload intentionally has no validation: blank messages are allowed.
type MessagePayload struct {
	Text string `json:"text" mapstructure:"text"`
}

type DeleteMessagePayload struct {
	MessageId string `json:"messageId" mapstructure:"messageId"`
}

func (p DeleteMessagePayload) Validate() error {
	if p.MessageId == "" {
		return fmt.Errorf("messageId is required")
	}
	return nil
}

type SetNoticePayload struct {
	Text string `json:"text" mapstructure:"text"`
}

type UpdateNoticePayload struct {
	Text string `json:"text" mapstructure:"text"`
}

type AddAnswerPayload struct {
	Text string `json:"text" mapstructure:"text"`
}

type UpdateAnswerPayload struct {
	AnswerId string `json:"answerId" mapstructure:"answerId"`
	Text     string `json:"text" mapstructure:"text"`
}

func (p UpdateAnswerPayload) Validate() error {
	if p.AnswerId == "" {
		return fmt.Errorf("answerId is required")
	}
	return nil
}

type DeleteAnswerPayload struct {
	AnswerId string `json:"answerId" mapstructure:"answerId"`
}

func (p DeleteAnswerPayload) Validate() error {
	if p.AnswerId == "" {
		return fmt.Errorf("answerId is required")
	}
	return nil
}

type UpdateLiveContentPayload struct {
	Text string `json:"text" mapstructure:"text"`
}

type DeleteSectionPayload struct {
	SectionId string `json:"sectionId" mapstructure:"sectionId"`
}

func (p DeleteSectionPayload) Validate() error {
	if p.SectionId == "" {
		return fmt.Errorf("sectionId is required")
	}
	return nil
}

type ReorderSectionsPayload struct {
	SectionOrder []string `json:"sectionOrder" mapstructure:"sectionOrder"`
}

type MentionUserPayload struct {
	TargetUserId string `json:"targetUserId" mapstructure:"targetUserId"`
}

func (p MentionUserPayload) Validate() error {
	if p.TargetUserId == "" {
		return fmt.Errorf("targetUserId is required")
	}
	return nil
}

// Outbound payloads.

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomDataPayload struct {
	RoomId       string                 `json:"roomId"`
	Name         string                 `json:"name"`
	Type         RoomKind               `json:"type"`
	Messages     []Message              `json:"messages"`
	Notice       *Notice                `json:"notice"`
	Answers      []Answer               `json:"answers"`
	LiveContent  map[string]LiveContent `json:"liveContent"`
	Sections     []SectionInfo          `json:"sections"`
	SectionOrder []string               `json:"sectionOrder"`
}

type UserJoinedPayload struct {
	UserId      string `json:"userId"`
	Emoji       string `json:"emoji,omitempty"`
	DisplayName string `json:"displayName"`
	UserCount   int    `json:"userCount"`
}

type UserLeftPayload struct {
	UserId      string `json:"userId"`
	Emoji       string `json:"emoji,omitempty"`
	DisplayName string `json:"displayName"`
	UserCount   int    `json:"userCount"`
}

type MessageDeletedPayload struct {
	MessageId string `json:"messageId"`
}

type AnswerDeletedPayload struct {
	AnswerId string `json:"answerId"`
}

type TypingPayload struct {
	UserId      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type TypingStopPayload struct {
	UserId string `json:"userId"`
}

type LiveContentUpdatedPayload struct {
	UserId      string    `json:"userId"`
	Emoji       string    `json:"emoji,omitempty"`
	DisplayName string    `json:"displayName"`
	Text        string    `json:"text"`
	SectionId   string    `json:"sectionId"`
	Timestamp   time.Time `json:"timestamp"`
}

type SectionDeletedPayload struct {
	SectionId string `json:"sectionId"`
}

type SectionsReorderedPayload struct {
	SectionOrder []string `json:"sectionOrder"`
}

type MentionedPayload struct {
	FromUserId      string `json:"fromUserId"`
	FromDisplayName string `json:"fromDisplayName"`
	RoomId          string `json:"roomId"`
	RoomName        string `json:"roomName"`
}
