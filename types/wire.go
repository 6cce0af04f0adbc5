package types

import "encoding/json"

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewWebsocketMessage marshals payload into the data field of a wire message.
func NewWebsocketMessage(event string, payload interface{}) (*WebsocketMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &WebsocketMessage{Event: event, Data: data}, nil
}

// Inbound event names (client -> server).
const (
	EventJoin              = "join"
	EventCreateRoom        = "createRoom"
	EventChangeRoom        = "changeRoom"
	EventUpdateProfile     = "updateProfile"
	EventMessage           = "message" // also outbound
	EventDeleteMessage     = "deleteMessage"
	EventClearAllMessages  = "clearAllMessages"
	EventSetNotice         = "setNotice"
	EventUpdateNotice      = "updateNotice"
	EventDeleteNotice      = "deleteNotice"
	EventAddAnswer         = "addAnswer"
	EventUpdateAnswer      = "updateAnswer"
	EventDeleteAnswer      = "deleteAnswer"
	EventTypingStart       = "typingStart"
	EventTypingStop        = "typingStop" // also outbound
	EventUpdateLiveContent = "updateLiveContent"
	EventClearLiveContent  = "clearLiveContent"
	EventDeleteSection     = "deleteSection"
	EventReorderSections   = "reorderSections"
	EventMentionUser       = "mentionUser"
	EventMentionAll        = "mentionAll"
)

// Outbound event names (server -> client).
const (
	EventRooms              = "rooms"
	EventRoomData           = "roomData"
	EventUserJoined         = "userJoined"
	EventUserLeft           = "userLeft"
	EventMessageDeleted     = "messageDeleted"
	EventAllMessagesCleared = "allMessagesCleared"
	EventNotice             = "notice"
	EventNoticeDeleted      = "noticeDeleted"
	EventAnswer             = "answer"
	EventAnswerUpdated      = "answerUpdated"
	EventAnswerDeleted      = "answerDeleted"
	EventTyping             = "typing"
	EventLiveContentUpdated = "liveContentUpdated"
	EventSectionsUpdated    = "sectionsUpdated"
	EventSectionDeleted     = "sectionDeleted"
	EventSectionsReordered  = "sectionsReordered"
	EventMentioned          = "mentioned"
	EventError              = "error"
)
