// Package room holds the authoritative state of a single room. All mutation
// happens through methods called from the hub's serial run loop, so nothing
// here is locked.
package room

import (
	"time"

	"github.com/tcriess/lightspeed-rooms/history"
	"github.com/tcriess/lightspeed-rooms/types"
)

type Room struct {
	Id   string
	Name string
	Kind types.RoomKind

	// session ids of the currently joined sessions
	members map[string]struct{}

	// chat state
	messages *history.Log
	notice   *types.Notice
	answers  []*types.Answer

	// live state
	liveContent  map[string]types.LiveContent
	sections     map[string]*types.Section
	sectionOrder []string

	lastActivity time.Time
}

func New(id, name string, kind types.RoomKind, historySize int) (*Room, error) {
	log, err := history.NewLog(historySize)
	if err != nil {
		return nil, err
	}
	return &Room{
		Id:           id,
		Name:         name,
		Kind:         kind,
		members:      make(map[string]struct{}),
		messages:     log,
		answers:      make([]*types.Answer, 0),
		liveContent:  make(map[string]types.LiveContent),
		sections:     make(map[string]*types.Section),
		sectionOrder: make([]string, 0),
		lastActivity: time.Now(),
	}, nil
}

// Touch records room activity for the idle-eviction sweep.
func (r *Room) Touch() {
	r.lastActivity = time.Now()
}

func (r *Room) LastActivity() time.Time {
	return r.lastActivity
}

func (r *Room) Info() types.RoomInfo {
	return types.RoomInfo{Id: r.Id, Name: r.Name, Type: r.Kind, UserCount: len(r.members)}
}

// Close releases the message log. Called when the room is evicted.
func (r *Room) Close() error {
	return r.messages.Close()
}

// membership

func (r *Room) AddMember(sessionId string) {
	r.members[sessionId] = struct{}{}
	r.Touch()
}

func (r *Room) RemoveMember(sessionId string) {
	delete(r.members, sessionId)
	r.Touch()
}

func (r *Room) HasMember(sessionId string) bool {
	_, ok := r.members[sessionId]
	return ok
}

func (r *Room) MemberCount() int {
	return len(r.members)
}

// Members returns the session ids of all joined sessions, unordered.
func (r *Room) Members() []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	return ids
}

// chat

func (r *Room) AppendMessage(msg types.Message) error {
	r.Touch()
	return r.messages.Append(msg)
}

// DeleteMessage removes the message only if sessionId matches the author's
// session. It reports whether a message was removed; an id miss or an
// authorship mismatch is a plain false.
func (r *Room) DeleteMessage(messageId, sessionId string) (bool, error) {
	msg, err := r.messages.Get(messageId)
	if err != nil {
		return false, err
	}
	if msg == nil || msg.SessionId != sessionId {
		return false, nil
	}
	r.Touch()
	return r.messages.Delete(messageId)
}

func (r *Room) ClearMessages() error {
	r.Touch()
	return r.messages.Clear()
}

func (r *Room) Messages() ([]types.Message, error) {
	return r.messages.Messages()
}

// SetNotice replaces any existing notice and clears all answers, as one
// atomic step.
func (r *Room) SetNotice(notice *types.Notice) {
	r.notice = notice
	r.answers = r.answers[:0]
	r.Touch()
}

// UpdateNotice rewrites the notice text if sessionId matches the authoring
// session. Only text and timestamp change.
func (r *Room) UpdateNotice(text string, sessionId string, ts time.Time) bool {
	if r.notice == nil || r.notice.SessionId != sessionId {
		return false
	}
	r.notice.Text = text
	r.notice.Timestamp = ts
	r.Touch()
	return true
}

// DeleteNotice removes the notice and clears all answers if sessionId matches
// the authoring session.
func (r *Room) DeleteNotice(sessionId string) bool {
	if r.notice == nil || r.notice.SessionId != sessionId {
		return false
	}
	r.notice = nil
	r.answers = r.answers[:0]
	r.Touch()
	return true
}

func (r *Room) Notice() *types.Notice {
	return r.notice
}

// UpsertAnswer adds answer unless its authoring session already has one, in
// which case that answer's text and timestamp are updated in place. The
// returned bool reports whether an existing answer was updated. Without an
// active notice nothing happens and nil is returned.
func (r *Room) UpsertAnswer(answer *types.Answer) (*types.Answer, bool) {
	if r.notice == nil {
		return nil, false
	}
	r.Touch()
	for _, existing := range r.answers {
		if existing.SessionId == answer.SessionId {
			existing.Text = answer.Text
			existing.Timestamp = answer.Timestamp
			return existing, true
		}
	}
	r.answers = append(r.answers, answer)
	return answer, false
}

// UpdateAnswer rewrites the answer text if sessionId matches the authoring
// session. Returns the updated answer or nil.
func (r *Room) UpdateAnswer(answerId, text, sessionId string, ts time.Time) *types.Answer {
	for _, answer := range r.answers {
		if answer.Id == answerId {
			if answer.SessionId != sessionId {
				return nil
			}
			answer.Text = text
			answer.Timestamp = ts
			r.Touch()
			return answer
		}
	}
	return nil
}

// DeleteAnswer removes the answer if sessionId matches the authoring session.
func (r *Room) DeleteAnswer(answerId, sessionId string) bool {
	for i, answer := range r.answers {
		if answer.Id == answerId {
			if answer.SessionId != sessionId {
				return false
			}
			r.answers = append(r.answers[:i], r.answers[i+1:]...)
			r.Touch()
			return true
		}
	}
	return false
}

func (r *Room) Answers() []types.Answer {
	answers := make([]types.Answer, 0, len(r.answers))
	for _, answer := range r.answers {
		answers = append(answers, *answer)
	}
	return answers
}

// live

// SectionId derives the deterministic per-user section id.
func SectionId(userId string) string {
	return "user-" + userId
}

// EnsureSection returns the section id for user, provisioning the section on
// first use. cachedId is the session's cached owned-section reference; it is
// honored as long as it still resolves in this room. The bool reports whether
// a new section was created.
func (r *Room) EnsureSection(user types.User, cachedId string) (string, bool) {
	if cachedId != "" {
		if _, ok := r.sections[cachedId]; ok {
			return cachedId, false
		}
	}
	sectionId := SectionId(user.UserId)
	if section, ok := r.sections[sectionId]; ok {
		section.Members[user.UserId] = struct{}{}
		return sectionId, false
	}
	r.sections[sectionId] = &types.Section{
		Name:    user.DisplayName(),
		Owner:   user.UserId,
		Members: map[string]struct{}{user.UserId: {}},
	}
	r.sectionOrder = append(r.sectionOrder, sectionId)
	r.Touch()
	return sectionId, true
}

func (r *Room) Section(sectionId string) *types.Section {
	return r.sections[sectionId]
}

// SetLiveContent upserts the user's live text slot, last write wins.
func (r *Room) SetLiveContent(userId, text, sectionId string, ts time.Time) {
	r.liveContent[userId] = types.LiveContent{Text: text, SectionId: sectionId, Timestamp: ts}
	r.Touch()
}

func (r *Room) LiveContent() map[string]types.LiveContent {
	content := make(map[string]types.LiveContent, len(r.liveContent))
	for userId, lc := range r.liveContent {
		content[userId] = lc
	}
	return content
}

// DeleteSection removes the section and cascades deletion of every live
// content entry pointing at it. It reports whether the section existed.
func (r *Room) DeleteSection(sectionId string) bool {
	if _, ok := r.sections[sectionId]; !ok {
		return false
	}
	delete(r.sections, sectionId)
	for i, id := range r.sectionOrder {
		if id == sectionId {
			r.sectionOrder = append(r.sectionOrder[:i], r.sectionOrder[i+1:]...)
			break
		}
	}
	for userId, content := range r.liveContent {
		if content.SectionId == sectionId {
			delete(r.liveContent, userId)
		}
	}
	r.Touch()
	return true
}

// SectionInfos lists the sections in the server-owned order.
func (r *Room) SectionInfos() []types.SectionInfo {
	infos := make([]types.SectionInfo, 0, len(r.sectionOrder))
	for _, id := range r.sectionOrder {
		section, ok := r.sections[id]
		if !ok {
			continue
		}
		infos = append(infos, types.SectionInfo{
			Id:        id,
			Name:      section.Name,
			UserCount: len(section.Members),
			Owner:     section.Owner,
		})
	}
	return infos
}

func (r *Room) SectionOrder() []string {
	order := make([]string, len(r.sectionOrder))
	copy(order, r.sectionOrder)
	return order
}

// ReorderSections validates a client-proposed order against the room's
// section set and stores the normalized result: unknown ids are dropped,
// missing ids are appended in their previous order.
func (r *Room) ReorderSections(order []string) []string {
	normalized := make([]string, 0, len(r.sectionOrder))
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, ok := r.sections[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}
	for _, id := range r.sectionOrder {
		if _, ok := seen[id]; !ok {
			normalized = append(normalized, id)
		}
	}
	r.sectionOrder = normalized
	r.Touch()
	return r.SectionOrder()
}

// SyncSectionName renames the user's owned section to the current display
// name. Reports whether a section name changed.
func (r *Room) SyncSectionName(user types.User) bool {
	section, ok := r.sections[SectionId(user.UserId)]
	if !ok || section.Owner != user.UserId {
		return false
	}
	if section.Name == user.DisplayName() {
		return false
	}
	section.Name = user.DisplayName()
	r.Touch()
	return true
}

// SectionParticipants returns the user ids that own or belong to any section,
// the audience of a broadcast mention.
func (r *Room) SectionParticipants() map[string]struct{} {
	participants := make(map[string]struct{})
	for _, section := range r.sections {
		participants[section.Owner] = struct{}{}
		for userId := range section.Members {
			participants[userId] = struct{}{}
		}
	}
	return participants
}
