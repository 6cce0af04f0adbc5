package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	u := User{UserId: "alice"}
	assert.Equal(t, "alice", u.DisplayName())
	u.Emoji = "🦊"
	assert.Equal(t, "🦊", u.DisplayName())
}

func TestParseRoomKind(t *testing.T) {
	kind, ok := ParseRoomKind("chat")
	assert.True(t, ok)
	assert.Equal(t, RoomKindChat, kind)
	kind, ok = ParseRoomKind("live")
	assert.True(t, ok)
	assert.Equal(t, RoomKindLive, kind)
	kind, ok = ParseRoomKind("")
	assert.True(t, ok)
	assert.Equal(t, RoomKindChat, kind)
	_, ok = ParseRoomKind("video")
	assert.False(t, ok)
}

func TestNewIdOrdering(t *testing.T) {
	ts := time.Now()
	id1, err := NewId(ts, "a")
	require.NoError(t, err)
	id2, err := NewId(ts.Add(time.Millisecond), "a")
	require.NoError(t, err)
	assert.True(t, id1 < id2, "ids must sort chronologically: %s vs %s", id1, id2)
	assert.True(t, strings.Contains(id1, "-"))
}

func TestNewIdDistinguishesContent(t *testing.T) {
	ts := time.Now()
	id1, err := NewId(ts, "a")
	require.NoError(t, err)
	id2, err := NewId(ts, "b")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestPayloadValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload interface{ Validate() error }
		wantErr bool
	}{
		{"create room ok", CreateRoomPayload{RoomName: "Board", RoomType: "live"}, false},
		{"create room no name", CreateRoomPayload{RoomName: "  ", RoomType: "chat"}, true},
		{"create room bad type", CreateRoomPayload{RoomName: "x", RoomType: "video"}, true},
		{"create room default type", CreateRoomPayload{RoomName: "x"}, false},
		{"change room ok", ChangeRoomPayload{RoomId: "general"}, false},
		{"change room empty", ChangeRoomPayload{}, true},
		{"delete message ok", DeleteMessagePayload{MessageId: "1"}, false},
		{"delete message empty", DeleteMessagePayload{}, true},
		{"update answer empty", UpdateAnswerPayload{Text: "x"}, true},
		{"delete answer empty", DeleteAnswerPayload{}, true},
		{"delete section empty", DeleteSectionPayload{}, true},
		{"mention user empty", MentionUserPayload{}, true},
		{"mention user ok", MentionUserPayload{TargetUserId: "bob"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWebsocketMessageRoundtrip(t *testing.T) {
	msg, err := NewWebsocketMessage(EventTyping, TypingPayload{UserId: "alice", DisplayName: "alice"})
	require.NoError(t, err)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	decoded := WebsocketMessage{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, EventTyping, decoded.Event)
	p := TypingPayload{}
	require.NoError(t, json.Unmarshal(decoded.Data, &p))
	assert.Equal(t, "alice", p.UserId)
}
