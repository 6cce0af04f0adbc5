package hub

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/folkengine/goname"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/tcriess/lightspeed-rooms/config"
	"github.com/tcriess/lightspeed-rooms/filter"
	"github.com/tcriess/lightspeed-rooms/globals"
	"github.com/tcriess/lightspeed-rooms/room"
	"github.com/tcriess/lightspeed-rooms/types"
)

type validator interface {
	Validate() error
}

// decodePayload weak-decodes the raw data of a wire message into the typed
// payload and runs its field validation.
func decodePayload(data json.RawMessage, out interface{}) error {
	payloadMap := make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payloadMap); err != nil {
			return err
		}
	}
	if err := mapstructure.WeakDecode(payloadMap, out); err != nil {
		return err
	}
	if v, ok := out.(validator); ok {
		return v.Validate()
	}
	return nil
}

// handleInbound dispatches one decoded wire message. Runs on the hub run
// loop; each case completes its full read-modify-broadcast sequence before
// the next event is taken.
func (h *Hub) handleInbound(c *Client, msg types.WebsocketMessage) {
	// the client may have unregistered between queueing and handling; its Send
	// channel is closed then, so nothing may be delivered to it anymore
	if _, ok := h.clients[c]; !ok {
		return
	}
	countInboundEvent(msg.Event)

	if msg.Event == types.EventJoin {
		p := types.JoinPayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		h.handleJoin(c, p)
		return
	}

	// everything else requires a joined session
	sess := c.session
	if sess == nil {
		h.sendError(c, types.ErrCodeNotJoined, "join first")
		return
	}
	r, ok := h.rooms[sess.RoomId]
	if !ok {
		h.sendError(c, types.ErrCodeNotFound, "current room no longer exists")
		return
	}

	switch msg.Event {
	case types.EventCreateRoom:
		p := types.CreateRoomPayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		h.handleCreateRoom(c, p)

	case types.EventChangeRoom:
		p := types.ChangeRoomPayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		h.handleChangeRoom(c, sess, p)

	case types.EventUpdateProfile:
		p := types.UpdateProfilePayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		h.handleUpdateProfile(sess, r, p)

	case types.EventMessage:
		p := types.MessagePayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindChat) {
			return
		}
		h.handleMessage(sess, r, p)

	case types.EventDeleteMessage:
		p := types.DeleteMessagePayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindChat) {
			return
		}
		h.handleDeleteMessage(sess, r, p)

	case types.EventClearAllMessages:
		if !h.requireKind(c, r, types.RoomKindChat) {
			return
		}
		h.handleClearAllMessages(sess, r)

	case types.EventSetNotice:
		p := types.SetNoticePayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindChat) {
			return
		}
		h.handleSetNotice(sess, r, p)

	case types.EventUpdateNotice:
		p := types.UpdateNoticePayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindChat) {
			return
		}
		if r.UpdateNotice(p.Text, sess.Id, time.Now().UTC()) {
			h.broadcastRoom(r, types.EventNotice, r.Notice(), "", sess)
		}

	case types.EventDeleteNotice:
		if !h.requireKind(c, r, types.RoomKindChat) {
			return
		}
		if r.DeleteNotice(sess.Id) {
			h.broadcastRoom(r, types.EventNoticeDeleted, struct{}{}, "", sess)
		}

	case types.EventAddAnswer:
		p := types.AddAnswerPayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindChat) {
			return
		}
		h.handleAddAnswer(c, sess, r, p)

	case types.EventUpdateAnswer:
		p := types.UpdateAnswerPayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindChat) {
			return
		}
		if answer := r.UpdateAnswer(p.AnswerId, p.Text, sess.Id, time.Now().UTC()); answer != nil {
			h.broadcastRoom(r, types.EventAnswerUpdated, *answer, "", sess)
		}

	case types.EventDeleteAnswer:
		p := types.DeleteAnswerPayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindChat) {
			return
		}
		if r.DeleteAnswer(p.AnswerId, sess.Id) {
			h.broadcastRoom(r, types.EventAnswerDeleted, types.AnswerDeletedPayload{AnswerId: p.AnswerId}, "", sess)
		}

	case types.EventTypingStart:
		h.broadcastRoom(r, types.EventTyping, types.TypingPayload{
			UserId:      sess.User.UserId,
			DisplayName: sess.User.DisplayName(),
		}, filter.ExcludeSession(sess.Id), sess)

	case types.EventTypingStop:
		h.broadcastRoom(r, types.EventTypingStop, types.TypingStopPayload{
			UserId: sess.User.UserId,
		}, filter.ExcludeSession(sess.Id), sess)

	case types.EventUpdateLiveContent:
		p := types.UpdateLiveContentPayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindLive) {
			return
		}
		h.handleLiveContent(sess, r, p.Text)

	case types.EventClearLiveContent:
		if !h.requireKind(c, r, types.RoomKindLive) {
			return
		}
		h.handleLiveContent(sess, r, "")

	case types.EventDeleteSection:
		p := types.DeleteSectionPayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindLive) {
			return
		}
		h.handleDeleteSection(sess, r, p)

	case types.EventReorderSections:
		p := types.ReorderSectionsPayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindLive) {
			return
		}
		normalized := r.ReorderSections(p.SectionOrder)
		h.broadcastRoom(r, types.EventSectionsReordered, types.SectionsReorderedPayload{SectionOrder: normalized}, "", sess)

	case types.EventMentionUser:
		p := types.MentionUserPayload{}
		if err := decodePayload(msg.Data, &p); err != nil {
			h.sendError(c, types.ErrCodeValidation, err.Error())
			return
		}
		if !h.requireKind(c, r, types.RoomKindLive) {
			return
		}
		h.handleMentionUser(sess, r, p)

	case types.EventMentionAll:
		if !h.requireKind(c, r, types.RoomKindLive) {
			return
		}
		h.handleMentionAll(sess, r)

	default:
		h.sendError(c, types.ErrCodeUnknownEvent, "unknown event "+strconv.Quote(msg.Event))
	}
}

func (h *Hub) requireKind(c *Client, r *room.Room, kind types.RoomKind) bool {
	if r.Kind != kind {
		h.sendError(c, types.ErrCodeWrongRoomKind, "operation requires a "+string(kind)+" room")
		return false
	}
	return true
}

// lifecycle

func (h *Hub) handleJoin(c *Client, p types.JoinPayload) {
	if c.session != nil {
		h.sendError(c, types.ErrCodeValidation, "already joined, use changeRoom")
		return
	}
	userId := strings.TrimSpace(p.UserId)
	if userId == "" {
		if !h.cfg.AllowGuests {
			h.sendError(c, types.ErrCodeValidation, "userId is required")
			return
		}
		userId = goname.New(goname.FantasyMap).FirstLast() + " (guest)"
	}
	roomId := strings.TrimSpace(p.RoomId)
	if roomId == "" {
		roomId = h.cfg.DefaultRoomConfig.Id
	}
	r, err := h.getOrCreateRoom(roomId, roomId, types.RoomKindChat)
	if err != nil {
		globals.AppLogger.Error("could not create room", "room", roomId, "error", err)
		h.sendError(c, types.ErrCodeValidation, "could not create room")
		return
	}
	sess := &Session{
		Id:     uuid.NewString(),
		User:   types.User{UserId: userId, Emoji: p.Emoji},
		RoomId: r.Id,
		client: c,
	}
	h.sessions[sess.Id] = sess
	c.session = sess
	metricSessions.Inc()
	r.AddMember(sess.Id)
	globals.AppLogger.Info("session joined", "session", sess.Id, "user", userId, "room", r.Id)

	// full snapshot to the joining session first, then the roster change to
	// the rest of the room, then the updated listing everywhere
	h.sendTo(c, types.EventRooms, h.currentRoomInfos())
	h.sendRoomData(c, r)
	h.broadcastRoom(r, types.EventUserJoined, types.UserJoinedPayload{
		UserId:      sess.User.UserId,
		Emoji:       sess.User.Emoji,
		DisplayName: sess.User.DisplayName(),
		UserCount:   r.MemberCount(),
	}, filter.ExcludeSession(sess.Id), sess)
	h.broadcastRoomList()
}

// roomIdFromName derives a fresh room id the way the room picker expects
// them: a slug of the name plus the creation time in milliseconds.
func roomIdFromName(name string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	return slug + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func (h *Hub) handleCreateRoom(c *Client, p types.CreateRoomPayload) {
	kind, _ := types.ParseRoomKind(p.RoomType)
	roomId := roomIdFromName(p.RoomName)
	_, err := h.getOrCreateRoom(roomId, p.RoomName, kind)
	if err != nil {
		globals.AppLogger.Error("could not create room", "room", roomId, "error", err)
		h.sendError(c, types.ErrCodeValidation, "could not create room")
		return
	}
	h.broadcastRoomList()
}

func (h *Hub) handleChangeRoom(c *Client, sess *Session, p types.ChangeRoomPayload) {
	h.leaveRoom(sess)
	sess.SectionId = "" // the owned-section reference is per room
	r, err := h.getOrCreateRoom(p.RoomId, p.RoomId, types.RoomKindChat)
	if err != nil {
		globals.AppLogger.Error("could not create room", "room", p.RoomId, "error", err)
		h.sendError(c, types.ErrCodeValidation, "could not create room")
		return
	}
	r.AddMember(sess.Id)
	sess.RoomId = r.Id
	globals.AppLogger.Info("session changed room", "session", sess.Id, "room", r.Id)

	h.sendRoomData(c, r)
	h.broadcastRoom(r, types.EventUserJoined, types.UserJoinedPayload{
		UserId:      sess.User.UserId,
		Emoji:       sess.User.Emoji,
		DisplayName: sess.User.DisplayName(),
		UserCount:   r.MemberCount(),
	}, filter.ExcludeSession(sess.Id), sess)
	h.broadcastRoomList()
}

// handleUpdateProfile mutates the session's display identity in place.
// Historical messages, notices and answers keep their authoring-time
// snapshot; only the session's owned live section is renamed.
func (h *Hub) handleUpdateProfile(sess *Session, r *room.Room, p types.UpdateProfilePayload) {
	sess.User.Emoji = p.Emoji
	if r.Kind == types.RoomKindLive && r.SyncSectionName(sess.User) {
		h.broadcastRoom(r, types.EventSectionsUpdated, r.SectionInfos(), "", sess)
	}
}

// sendRoomData sends the full room snapshot to a single session.
func (h *Hub) sendRoomData(c *Client, r *room.Room) {
	messages, err := r.Messages()
	if err != nil {
		globals.AppLogger.Error("could not read message log", "room", r.Id, "error", err)
		messages = []types.Message{}
	}
	h.sendTo(c, types.EventRoomData, types.RoomDataPayload{
		RoomId:       r.Id,
		Name:         r.Name,
		Type:         r.Kind,
		Messages:     messages,
		Notice:       r.Notice(),
		Answers:      r.Answers(),
		LiveContent:  r.LiveContent(),
		Sections:     r.SectionInfos(),
		SectionOrder: r.SectionOrder(),
	})
}

// chat

func (h *Hub) handleMessage(sess *Session, r *room.Room, p types.MessagePayload) {
	ts := time.Now().UTC()
	id, err := types.NewId(ts, struct {
		SessionId string
		Text      string
	}{sess.Id, p.Text})
	if err != nil {
		globals.AppLogger.Error("could not create message id", "error", err)
		return
	}
	msg := types.Message{
		Id:          id,
		UserId:      sess.User.UserId,
		Emoji:       sess.User.Emoji,
		DisplayName: sess.User.DisplayName(),
		SessionId:   sess.Id,
		Text:        p.Text,
		Timestamp:   ts,
	}
	if err := r.AppendMessage(msg); err != nil {
		globals.AppLogger.Error("could not append message", "room", r.Id, "error", err)
		return
	}
	h.broadcastRoom(r, types.EventMessage, msg, "", sess)
}

func (h *Hub) handleDeleteMessage(sess *Session, r *room.Room, p types.DeleteMessagePayload) {
	ok, err := r.DeleteMessage(p.MessageId, sess.Id)
	if err != nil {
		globals.AppLogger.Error("could not delete message", "room", r.Id, "error", err)
		return
	}
	// an id miss or a foreign author is a silent no-op, not an error: the
	// usual cause is two clients racing on the same delete button
	if !ok {
		return
	}
	h.broadcastRoom(r, types.EventMessageDeleted, types.MessageDeletedPayload{MessageId: p.MessageId}, "", sess)
}

func (h *Hub) handleClearAllMessages(sess *Session, r *room.Room) {
	if err := r.ClearMessages(); err != nil {
		globals.AppLogger.Error("could not clear message log", "room", r.Id, "error", err)
		return
	}
	h.broadcastRoom(r, types.EventAllMessagesCleared, struct{}{}, "", sess)
}

func (h *Hub) handleSetNotice(sess *Session, r *room.Room, p types.SetNoticePayload) {
	ts := time.Now().UTC()
	id, err := types.NewId(ts, struct {
		SessionId string
		Text      string
	}{sess.Id, p.Text})
	if err != nil {
		globals.AppLogger.Error("could not create notice id", "error", err)
		return
	}
	notice := &types.Notice{
		Id:          id,
		UserId:      sess.User.UserId,
		Emoji:       sess.User.Emoji,
		DisplayName: sess.User.DisplayName(),
		SessionId:   sess.Id,
		Text:        p.Text,
		Timestamp:   ts,
	}
	r.SetNotice(notice)
	h.broadcastRoom(r, types.EventNotice, notice, "", sess)
}

func (h *Hub) handleAddAnswer(c *Client, sess *Session, r *room.Room, p types.AddAnswerPayload) {
	if r.Notice() == nil {
		h.sendError(c, types.ErrCodeNotFound, "no active notice")
		return
	}
	ts := time.Now().UTC()
	id, err := types.NewId(ts, struct {
		SessionId string
		Text      string
	}{sess.Id, p.Text})
	if err != nil {
		globals.AppLogger.Error("could not create answer id", "error", err)
		return
	}
	answer := &types.Answer{
		Id:          id,
		UserId:      sess.User.UserId,
		Emoji:       sess.User.Emoji,
		DisplayName: sess.User.DisplayName(),
		SessionId:   sess.Id,
		Text:        p.Text,
		Timestamp:   ts,
	}
	stored, updated := r.UpsertAnswer(answer)
	if stored == nil {
		return
	}
	if updated {
		h.broadcastRoom(r, types.EventAnswerUpdated, *stored, "", sess)
	} else {
		h.broadcastRoom(r, types.EventAnswer, *stored, "", sess)
	}
}

// live

func (h *Hub) handleLiveContent(sess *Session, r *room.Room, text string) {
	sectionId, _ := r.EnsureSection(sess.User, sess.SectionId)
	sess.SectionId = sectionId
	ts := time.Now().UTC()
	r.SetLiveContent(sess.User.UserId, text, sectionId, ts)
	// the section list goes first so a newly provisioned section is known
	// before its content arrives
	h.broadcastRoom(r, types.EventSectionsUpdated, r.SectionInfos(), "", sess)
	h.broadcastRoom(r, types.EventLiveContentUpdated, types.LiveContentUpdatedPayload{
		UserId:      sess.User.UserId,
		Emoji:       sess.User.Emoji,
		DisplayName: sess.User.DisplayName(),
		Text:        text,
		SectionId:   sectionId,
		Timestamp:   ts,
	}, "", sess)
}

func (h *Hub) handleDeleteSection(sess *Session, r *room.Room, p types.DeleteSectionPayload) {
	section := r.Section(p.SectionId)
	if section == nil {
		return
	}
	if h.cfg.SectionDeletePolicy == config.SectionDeletePolicyOwner && section.Owner != sess.User.UserId {
		return
	}
	if !r.DeleteSection(p.SectionId) {
		return
	}
	h.broadcastRoom(r, types.EventSectionDeleted, types.SectionDeletedPayload{SectionId: p.SectionId}, "", sess)
	h.broadcastRoom(r, types.EventSectionsUpdated, r.SectionInfos(), "", sess)
}

// handleMentionUser notifies every member session carrying the target user
// id; an absent target is silently dropped.
func (h *Hub) handleMentionUser(sess *Session, r *room.Room, p types.MentionUserPayload) {
	payload := types.MentionedPayload{
		FromUserId:      sess.User.UserId,
		FromDisplayName: sess.User.DisplayName(),
		RoomId:          r.Id,
		RoomName:        r.Name,
	}
	for _, sessionId := range r.Members() {
		target, ok := h.sessions[sessionId]
		if !ok || target.User.UserId != p.TargetUserId {
			continue
		}
		h.sendTo(target.client, types.EventMentioned, payload)
	}
}

// handleMentionAll notifies the sessions of every user who owns or belongs to
// a section, not all room members.
func (h *Hub) handleMentionAll(sess *Session, r *room.Room) {
	participants := r.SectionParticipants()
	payload := types.MentionedPayload{
		FromUserId:      sess.User.UserId,
		FromDisplayName: sess.User.DisplayName(),
		RoomId:          r.Id,
		RoomName:        r.Name,
	}
	for _, sessionId := range r.Members() {
		target, ok := h.sessions[sessionId]
		if !ok {
			continue
		}
		if _, isParticipant := participants[target.User.UserId]; !isParticipant {
			continue
		}
		if !h.cfg.MentionSelf && target.Id == sess.Id {
			continue
		}
		h.sendTo(target.client, types.EventMentioned, payload)
	}
}
