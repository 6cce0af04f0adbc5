package types

// RoomKind discriminates the two room variants. It is fixed at creation.
type RoomKind string

const (
	RoomKindChat RoomKind = "chat"
	RoomKindLive RoomKind = "live"
)

// ParseRoomKind maps a client-supplied room type onto a RoomKind, defaulting
// to chat. The bool reports whether the input was recognized.
func ParseRoomKind(s string) (RoomKind, bool) {
	switch RoomKind(s) {
	case RoomKindChat:
		return RoomKindChat, true
	case RoomKindLive:
		return RoomKindLive, true
	case "":
		return RoomKindChat, true
	}
	return RoomKindChat, false
}

// RoomInfo is one entry of the room-picker listing broadcast after every
// join/leave/create.
type RoomInfo struct {
	Id        string   `json:"id"`
	Name      string   `json:"name"`
	Type      RoomKind `json:"type"`
	UserCount int      `json:"userCount"`
}
