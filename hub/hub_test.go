package hub

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-rooms/config"
	"github.com/tcriess/lightspeed-rooms/types"
)

func newTestConfig() *config.Config {
	return &config.Config{
		HistoryConfig:       config.HistoryConfig{HistorySize: 100},
		DefaultRoomConfig:   config.DefaultRoomConfig{Id: "general", Name: "General"},
		LogLevel:            "ERROR",
		AllowGuests:         true,
		SectionDeletePolicy: config.SectionDeletePolicyOwner,
		MentionSelf:         true,
	}
}

func newTestHub(t *testing.T, cfg *config.Config) *Hub {
	t.Helper()
	if cfg == nil {
		cfg = newTestConfig()
	}
	h, err := NewHub(cfg)
	require.NoError(t, err)
	return h
}

// connect registers a client without a websocket connection; tests drive the
// hub by calling handleInbound directly, which matches the serial-handling
// contract of the run loop.
func connect(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := NewClient(h, nil)
	h.register(c)
	return c
}

func wireMsg(t *testing.T, event string, payload interface{}) types.WebsocketMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return types.WebsocketMessage{Event: event, Data: data}
}

func send(t *testing.T, h *Hub, c *Client, event string, payload interface{}) {
	t.Helper()
	h.handleInbound(c, wireMsg(t, event, payload))
}

// drain empties the client's send buffer and decodes the wire messages.
func drain(t *testing.T, c *Client) []types.WebsocketMessage {
	t.Helper()
	msgs := make([]types.WebsocketMessage, 0)
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return msgs
			}
			msg := types.WebsocketMessage{}
			require.NoError(t, json.Unmarshal(raw, &msg))
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func eventsNamed(msgs []types.WebsocketMessage, name string) []json.RawMessage {
	payloads := make([]json.RawMessage, 0)
	for _, msg := range msgs {
		if msg.Event == name {
			payloads = append(payloads, msg.Data)
		}
	}
	return payloads
}

func requireEvent(t *testing.T, msgs []types.WebsocketMessage, name string, out interface{}) {
	t.Helper()
	payloads := eventsNamed(msgs, name)
	require.NotEmpty(t, payloads, "expected a %q event", name)
	if out != nil {
		require.NoError(t, json.Unmarshal(payloads[len(payloads)-1], out))
	}
}

func requireNoEvent(t *testing.T, msgs []types.WebsocketMessage, name string) {
	t.Helper()
	require.Empty(t, eventsNamed(msgs, name), "expected no %q event", name)
}

func joinHub(t *testing.T, h *Hub, userId, emoji, roomId string) *Client {
	t.Helper()
	c := connect(t, h)
	send(t, h, c, types.EventJoin, types.JoinPayload{UserId: userId, Emoji: emoji, RoomId: roomId})
	require.NotNil(t, c.session, "join must attach a session")
	drain(t, c)
	return c
}

// createRoomVia creates a room through the given client and resolves the
// generated room id from the listing.
func createRoomVia(t *testing.T, h *Hub, c *Client, name, kind string) string {
	t.Helper()
	send(t, h, c, types.EventCreateRoom, types.CreateRoomPayload{RoomName: name, RoomType: kind})
	drain(t, c)
	for _, info := range h.RoomInfos() {
		if info.Name == name {
			return info.Id
		}
	}
	t.Fatalf("room %q not found in listing", name)
	return ""
}

func TestJoinReceivesSnapshot(t *testing.T) {
	h := newTestHub(t, nil)
	c := connect(t, h)
	send(t, h, c, types.EventJoin, types.JoinPayload{UserId: "alice"})
	msgs := drain(t, c)

	roomData := types.RoomDataPayload{}
	requireEvent(t, msgs, types.EventRoomData, &roomData)
	assert.Equal(t, "general", roomData.RoomId)
	assert.Equal(t, types.RoomKindChat, roomData.Type)
	assert.Empty(t, roomData.Messages)

	var rooms []types.RoomInfo
	requireEvent(t, msgs, types.EventRooms, &rooms)
	require.Len(t, rooms, 1)
	assert.Equal(t, 1, rooms[0].UserCount)
}

func TestJoinNotifiesRoomAndEveryone(t *testing.T) {
	h := newTestHub(t, nil)
	alice := joinHub(t, h, "alice", "", "")

	bob := connect(t, h)
	send(t, h, bob, types.EventJoin, types.JoinPayload{UserId: "bob"})
	drain(t, bob)

	aliceMsgs := drain(t, alice)
	joined := types.UserJoinedPayload{}
	requireEvent(t, aliceMsgs, types.EventUserJoined, &joined)
	assert.Equal(t, "bob", joined.UserId)
	assert.Equal(t, 2, joined.UserCount)
	var rooms []types.RoomInfo
	requireEvent(t, aliceMsgs, types.EventRooms, &rooms)
	assert.Equal(t, 2, rooms[0].UserCount)
}

func TestJoinedUserDoesNotSeeOwnUserJoined(t *testing.T) {
	h := newTestHub(t, nil)
	c := connect(t, h)
	send(t, h, c, types.EventJoin, types.JoinPayload{UserId: "alice"})
	msgs := drain(t, c)
	requireNoEvent(t, msgs, types.EventUserJoined)
}

func TestJoinGuestName(t *testing.T) {
	h := newTestHub(t, nil)
	c := connect(t, h)
	send(t, h, c, types.EventJoin, types.JoinPayload{UserId: "   "})
	require.NotNil(t, c.session)
	assert.True(t, strings.HasSuffix(c.session.User.UserId, " (guest)"))
}

func TestJoinRejectedWithoutGuests(t *testing.T) {
	cfg := newTestConfig()
	cfg.AllowGuests = false
	h := newTestHub(t, cfg)
	c := connect(t, h)
	send(t, h, c, types.EventJoin, types.JoinPayload{UserId: ""})
	assert.Nil(t, c.session)
	errPayload := types.ErrorPayload{}
	requireEvent(t, drain(t, c), types.EventError, &errPayload)
	assert.Equal(t, types.ErrCodeValidation, errPayload.Code)
}

func TestDoubleJoinRejected(t *testing.T) {
	h := newTestHub(t, nil)
	c := joinHub(t, h, "alice", "", "")
	send(t, h, c, types.EventJoin, types.JoinPayload{UserId: "alice2"})
	errPayload := types.ErrorPayload{}
	requireEvent(t, drain(t, c), types.EventError, &errPayload)
	assert.Equal(t, types.ErrCodeValidation, errPayload.Code)
	assert.Equal(t, "alice", c.session.User.UserId)
}

func TestOperationBeforeJoinRejected(t *testing.T) {
	h := newTestHub(t, nil)
	c := connect(t, h)
	send(t, h, c, types.EventMessage, types.MessagePayload{Text: "hi"})
	errPayload := types.ErrorPayload{}
	requireEvent(t, drain(t, c), types.EventError, &errPayload)
	assert.Equal(t, types.ErrCodeNotJoined, errPayload.Code)
}

func TestUnknownEventRejected(t *testing.T) {
	h := newTestHub(t, nil)
	c := joinHub(t, h, "alice", "", "")
	send(t, h, c, "fly", struct{}{})
	errPayload := types.ErrorPayload{}
	requireEvent(t, drain(t, c), types.EventError, &errPayload)
	assert.Equal(t, types.ErrCodeUnknownEvent, errPayload.Code)
}

func TestChangeRoom(t *testing.T) {
	h := newTestHub(t, nil)
	alice := joinHub(t, h, "alice", "", "")
	bob := joinHub(t, h, "bob", "", "")
	drain(t, alice)

	send(t, h, bob, types.EventChangeRoom, types.ChangeRoomPayload{RoomId: "den"})
	bobMsgs := drain(t, bob)
	roomData := types.RoomDataPayload{}
	requireEvent(t, bobMsgs, types.EventRoomData, &roomData)
	assert.Equal(t, "den", roomData.RoomId)

	aliceMsgs := drain(t, alice)
	left := types.UserLeftPayload{}
	requireEvent(t, aliceMsgs, types.EventUserLeft, &left)
	assert.Equal(t, "bob", left.UserId)
	assert.Equal(t, 1, left.UserCount)

	assert.Equal(t, "den", bob.session.RoomId)
	assert.Len(t, h.RoomInfos(), 2)
}

func TestChangeRoomDoesNotOverwriteKind(t *testing.T) {
	h := newTestHub(t, nil)
	alice := joinHub(t, h, "alice", "", "")
	boardId := createRoomVia(t, h, alice, "Board", "live")

	// switching into an existing live room keeps its kind even though
	// changeRoom defaults lazily created rooms to chat
	send(t, h, alice, types.EventChangeRoom, types.ChangeRoomPayload{RoomId: boardId})
	roomData := types.RoomDataPayload{}
	requireEvent(t, drain(t, alice), types.EventRoomData, &roomData)
	assert.Equal(t, types.RoomKindLive, roomData.Type)
}

func TestCreateRoomBroadcastsListing(t *testing.T) {
	h := newTestHub(t, nil)
	alice := joinHub(t, h, "alice", "", "")
	bob := joinHub(t, h, "bob", "", "")
	drain(t, alice)

	send(t, h, alice, types.EventCreateRoom, types.CreateRoomPayload{RoomName: "War Room", RoomType: "chat"})
	var rooms []types.RoomInfo
	requireEvent(t, drain(t, bob), types.EventRooms, &rooms)
	require.Len(t, rooms, 2)
	assert.Equal(t, "War Room", rooms[1].Name)
	assert.True(t, strings.HasPrefix(rooms[1].Id, "war-room-"))
	assert.Equal(t, 0, rooms[1].UserCount)
}

func TestDisconnectCleansUp(t *testing.T) {
	h := newTestHub(t, nil)
	alice := joinHub(t, h, "alice", "", "")
	bob := joinHub(t, h, "bob", "", "")
	drain(t, alice)

	h.unregister(bob)
	assert.Empty(t, drain(t, bob), "unregister must close the send channel")

	aliceMsgs := drain(t, alice)
	left := types.UserLeftPayload{}
	requireEvent(t, aliceMsgs, types.EventUserLeft, &left)
	assert.Equal(t, "bob", left.UserId)
	var rooms []types.RoomInfo
	requireEvent(t, aliceMsgs, types.EventRooms, &rooms)
	assert.Equal(t, 1, rooms[0].UserCount)
	assert.Len(t, h.sessions, 1)

	// idempotent
	h.unregister(bob)
}

// An event can already sit in the inbound queue when its client's unregister
// is processed; handling it afterwards must be a no-op, in particular no send
// on the closed channel.
func TestInboundAfterUnregisterIgnored(t *testing.T) {
	h := newTestHub(t, nil)
	alice := joinHub(t, h, "alice", "", "")
	bob := joinHub(t, h, "bob", "", "")
	drain(t, alice)

	msg := wireMsg(t, types.EventMessage, types.MessagePayload{Text: "late"})
	h.unregister(bob)
	require.NotPanics(t, func() { h.handleInbound(bob, msg) })
	requireNoEvent(t, drain(t, alice), types.EventMessage)
}

func TestUpdateProfileKeepsHistorySnapshots(t *testing.T) {
	h := newTestHub(t, nil)
	alice := joinHub(t, h, "alice", "", "")
	send(t, h, alice, types.EventMessage, types.MessagePayload{Text: "hi"})
	drain(t, alice)

	send(t, h, alice, types.EventUpdateProfile, types.UpdateProfilePayload{Emoji: "🦊"})
	assert.Equal(t, "🦊", alice.session.User.Emoji)

	// a later snapshot still carries the authoring-time display name
	bob := connect(t, h)
	send(t, h, bob, types.EventJoin, types.JoinPayload{UserId: "bob"})
	roomData := types.RoomDataPayload{}
	requireEvent(t, drain(t, bob), types.EventRoomData, &roomData)
	require.Len(t, roomData.Messages, 1)
	assert.Equal(t, "alice", roomData.Messages[0].DisplayName)
}

func TestEvictIdleRooms(t *testing.T) {
	cfg := newTestConfig()
	cfg.RoomEvictionConfig = config.RoomEvictionConfig{Enabled: true, IdleMinutes: 0}
	h := newTestHub(t, cfg)
	alice := joinHub(t, h, "alice", "", "")
	createRoomVia(t, h, alice, "Empty", "chat")
	occupiedId := createRoomVia(t, h, alice, "Occupied", "chat")
	send(t, h, alice, types.EventChangeRoom, types.ChangeRoomPayload{RoomId: occupiedId})
	drain(t, alice)
	require.Len(t, h.RoomInfos(), 3)

	h.evictIdleRooms()

	infos := h.RoomInfos()
	require.Len(t, infos, 2, "the empty non-default room must be evicted")
	assert.Equal(t, "general", infos[0].Id)
	assert.Equal(t, occupiedId, infos[1].Id)
	var rooms []types.RoomInfo
	requireEvent(t, drain(t, alice), types.EventRooms, &rooms)
	assert.Len(t, rooms, 2)
}

func TestRoomInfosSnapshotIsSafe(t *testing.T) {
	h := newTestHub(t, nil)
	infos := h.RoomInfos()
	require.Len(t, infos, 1)
	infos[0].Name = "mutated"
	assert.Equal(t, "General", h.RoomInfos()[0].Name)
}

func TestMalformedPayloadRejected(t *testing.T) {
	h := newTestHub(t, nil)
	c := joinHub(t, h, "alice", "", "")
	h.handleInbound(c, types.WebsocketMessage{Event: types.EventChangeRoom, Data: json.RawMessage(`{"roomId": ""}`)})
	errPayload := types.ErrorPayload{}
	requireEvent(t, drain(t, c), types.EventError, &errPayload)
	assert.Equal(t, types.ErrCodeValidation, errPayload.Code)
}
