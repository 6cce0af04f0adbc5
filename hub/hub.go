// Package hub owns all shared state of the service: the session registry and
// the room store. Inbound client events, connection lifecycle and the
// eviction sweep are funneled through a single run loop and handled one at a
// time, so every operation executes atomically with respect to the shared
// state and no handler ever observes a half-applied mutation.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/antonmedv/expr/vm"
	"github.com/robfig/cron/v3"
	"github.com/tcriess/lightspeed-rooms/config"
	"github.com/tcriess/lightspeed-rooms/filter"
	"github.com/tcriess/lightspeed-rooms/globals"
	"github.com/tcriess/lightspeed-rooms/room"
	"github.com/tcriess/lightspeed-rooms/types"
)

const inboundChannelSize = 1000

// Session is one joined connection: the hub-issued session id is the
// ownership token carried in every record the session authors.
type Session struct {
	Id        string
	User      types.User
	RoomId    string
	SectionId string // cached owned-section reference, live rooms only

	client *Client
}

type inboundEvent struct {
	client *Client
	msg    types.WebsocketMessage
}

type Hub struct {
	cfg *config.Config

	// Connected clients, joined or not.
	clients map[*Client]struct{}

	// Registered sessions by session id.
	sessions map[string]*Session

	// Room store, roomOrder keeps insertion order for the room-picker listing.
	rooms     map[string]*room.Room
	roomOrder []string

	// Register a new client connection with the hub.
	Register chan *Client

	// Unregister a client connection from the hub.
	Unregister chan *Client

	inbound   chan inboundEvent
	evictChan chan struct{}

	// Cached room listing for the REST surface, written by the run loop only.
	infoMu    sync.RWMutex
	roomInfos []types.RoomInfo
}

func NewHub(cfg *config.Config) (*Hub, error) {
	h := &Hub{
		cfg:        cfg,
		clients:    make(map[*Client]struct{}),
		sessions:   make(map[string]*Session),
		rooms:      make(map[string]*room.Room),
		roomOrder:  make([]string, 0),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		inbound:    make(chan inboundEvent, inboundChannelSize),
		evictChan:  make(chan struct{}, 1),
	}
	// the default room exists before any client connects
	_, err := h.getOrCreateRoom(cfg.DefaultRoomConfig.Id, cfg.DefaultRoomConfig.Name, types.RoomKindChat)
	if err != nil {
		return nil, err
	}
	h.updateRoomInfoCache()
	return h, nil
}

// Run is the main hub event loop handling register, unregister, inbound and
// eviction events. Handlers must not block: everything that touches rooms or
// sessions happens inside this loop.
func (h *Hub) Run() {
	if h.cfg.RoomEvictionConfig.Enabled {
		cronRunner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		_, err := cronRunner.AddFunc("@every 1m", func() {
			select {
			case h.evictChan <- struct{}{}:
			default:
			}
		})
		if err != nil {
			panic(err)
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}
	for {
		select {
		case client := <-h.Register:
			h.register(client)

		case client := <-h.Unregister:
			h.unregister(client)

		case in := <-h.inbound:
			h.handleInbound(in.client, in.msg)

		case <-h.evictChan:
			h.evictIdleRooms()
		}
	}
}

func (h *Hub) register(c *Client) {
	h.clients[c] = struct{}{}
	metricConnectedClients.Inc()
	globals.AppLogger.Debug("registered new client connection")
}

func (h *Hub) unregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	metricConnectedClients.Dec()
	if sess := c.session; sess != nil {
		h.leaveRoom(sess)
		delete(h.sessions, sess.Id)
		metricSessions.Dec()
		c.session = nil
	}
	if c.conn != nil {
		c.conn.Close()
	}
	close(c.Send)
	globals.AppLogger.Debug("unregistered client connection")
}

// leaveRoom removes the session from its current room and broadcasts the
// roster change. No cascading deletion: messages, notices and sections the
// session authored stay behind.
func (h *Hub) leaveRoom(sess *Session) {
	r, ok := h.rooms[sess.RoomId]
	if !ok {
		return
	}
	r.RemoveMember(sess.Id)
	h.broadcastRoom(r, types.EventUserLeft, types.UserLeftPayload{
		UserId:      sess.User.UserId,
		Emoji:       sess.User.Emoji,
		DisplayName: sess.User.DisplayName(),
		UserCount:   r.MemberCount(),
	}, filter.ExcludeSession(sess.Id), sess)
	h.broadcastRoomList()
}

// room store

// getOrCreateRoom creates the room lazily. The kind applies only on creation,
// an existing room's kind is never overwritten.
func (h *Hub) getOrCreateRoom(roomId, name string, kind types.RoomKind) (*room.Room, error) {
	if r, ok := h.rooms[roomId]; ok {
		return r, nil
	}
	r, err := room.New(roomId, name, kind, h.cfg.HistoryConfig.HistorySize)
	if err != nil {
		return nil, err
	}
	h.rooms[roomId] = r
	h.roomOrder = append(h.roomOrder, roomId)
	metricRooms.Inc()
	globals.AppLogger.Info("created room", "room", roomId, "kind", kind)
	return r, nil
}

func (h *Hub) currentRoomInfos() []types.RoomInfo {
	infos := make([]types.RoomInfo, 0, len(h.roomOrder))
	for _, id := range h.roomOrder {
		if r, ok := h.rooms[id]; ok {
			infos = append(infos, r.Info())
		}
	}
	return infos
}

func (h *Hub) updateRoomInfoCache() []types.RoomInfo {
	infos := h.currentRoomInfos()
	h.infoMu.Lock()
	h.roomInfos = infos
	h.infoMu.Unlock()
	return infos
}

// RoomInfos returns a snapshot of the room listing. Safe to call from any
// goroutine; used by the HTTP listing endpoint.
func (h *Hub) RoomInfos() []types.RoomInfo {
	h.infoMu.RLock()
	defer h.infoMu.RUnlock()
	infos := make([]types.RoomInfo, len(h.roomInfos))
	copy(infos, h.roomInfos)
	return infos
}

// evictIdleRooms sweeps empty, non-default rooms whose last activity is past
// the configured idle threshold.
func (h *Hub) evictIdleRooms() {
	threshold := time.Duration(h.cfg.RoomEvictionConfig.IdleMinutes) * time.Minute
	evicted := false
	keep := h.roomOrder[:0]
	for _, id := range h.roomOrder {
		r, ok := h.rooms[id]
		if !ok {
			continue
		}
		if id == h.cfg.DefaultRoomConfig.Id || r.MemberCount() > 0 || time.Since(r.LastActivity()) < threshold {
			keep = append(keep, id)
			continue
		}
		if err := r.Close(); err != nil {
			globals.AppLogger.Error("could not close room log", "room", id, "error", err)
		}
		delete(h.rooms, id)
		metricRooms.Dec()
		evicted = true
		globals.AppLogger.Info("evicted idle room", "room", id)
	}
	h.roomOrder = keep
	if evicted {
		h.broadcastRoomList()
	}
}

// fan-out

func marshalEvent(event string, payload interface{}) ([]byte, error) {
	msg, err := types.NewWebsocketMessage(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// sendTo delivers one event to a single client.
func (h *Hub) sendTo(c *Client, event string, payload interface{}) {
	raw, err := marshalEvent(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal event", "event", event, "error", err)
		return
	}
	c.enqueue(raw)
	metricDeliveries.Inc()
}

func (h *Hub) sendError(c *Client, code, message string) {
	h.sendTo(c, types.EventError, types.ErrorPayload{Code: code, Message: message})
}

// broadcastRoom delivers one event to every member session of r. A non-empty
// targetFilter is compiled (cached) and evaluated once per candidate
// receiver; receivers it rejects are skipped.
func (h *Hub) broadcastRoom(r *room.Room, event string, payload interface{}, targetFilter string, sender *Session) {
	raw, err := marshalEvent(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal event", "event", event, "error", err)
		return
	}
	var prog *vm.Program
	if targetFilter != "" {
		prog, err = filter.Compile(targetFilter)
		if err != nil {
			globals.AppLogger.Error("could not compile filter", "filter", targetFilter, "error", err)
			return
		}
	}
	env := filter.Env{
		Room: filter.Room{Id: r.Id, Name: r.Name},
		Name: event,
	}
	if sender != nil {
		env.Sender = filter.User{
			SessionId: sender.Id,
			UserId:    sender.User.UserId,
			Name:      sender.User.DisplayName(),
		}
	}
	for _, sessionId := range r.Members() {
		sess, ok := h.sessions[sessionId]
		if !ok {
			continue
		}
		if prog != nil {
			env.Target = filter.User{
				SessionId: sess.Id,
				UserId:    sess.User.UserId,
				Name:      sess.User.DisplayName(),
			}
			if !filter.Run(prog, env) {
				continue
			}
		}
		sess.client.enqueue(raw)
		metricDeliveries.Inc()
	}
}

// broadcastAll delivers one event to every connected client, joined or not.
func (h *Hub) broadcastAll(event string, payload interface{}) {
	raw, err := marshalEvent(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal event", "event", event, "error", err)
		return
	}
	for c := range h.clients {
		c.enqueue(raw)
		metricDeliveries.Inc()
	}
}

// broadcastRoomList refreshes the cached listing and pushes it to all
// connected clients. Called after every membership or room-set change.
func (h *Hub) broadcastRoomList() {
	h.broadcastAll(types.EventRooms, h.updateRoomInfoCache())
}
