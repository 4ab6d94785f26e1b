package sfs

import (
	"time"

	"github.com/pior/sfs/object"
	"github.com/pior/sfs/wire"
)

// EventType identifies the kind of an Event.
type EventType string

const (
	EventConnection             EventType = "onConnection"
	EventConnectionLost         EventType = "onConnectionLost"
	EventLogin                  EventType = "onLogin"
	EventLogout                 EventType = "onLogout"
	EventRoomListUpdate         EventType = "onRoomListUpdate"
	EventUserCountChange        EventType = "onUserCountChange"
	EventJoinRoom               EventType = "onJoinRoom"
	EventJoinRoomError          EventType = "onJoinRoomError"
	EventUserEnterRoom          EventType = "onUserEnterRoom"
	EventUserLeaveRoom          EventType = "onUserLeaveRoom"
	EventPublicMessage          EventType = "onPublicMessage"
	EventPrivateMessage         EventType = "onPrivateMessage"
	EventModeratorMessage       EventType = "onModeratorMessage"
	EventAdminMessage           EventType = "onAdminMessage"
	EventObjectReceived         EventType = "onObjectReceived"
	EventRoomVariablesUpdate    EventType = "onRoomVariablesUpdate"
	EventUserVariablesUpdate    EventType = "onUserVariablesUpdate"
	EventRoomAdded              EventType = "onRoomAdded"
	EventRoomDeleted            EventType = "onRoomDeleted"
	EventRandomKey              EventType = "onRandomKey"
	EventRoundTripResponse      EventType = "onRoundTripResponse"
	EventCreateRoomError        EventType = "onCreateRoomError"
	EventBuddyList              EventType = "onBuddyList"
	EventBuddyListError         EventType = "onBuddyListError"
	EventBuddyListUpdate        EventType = "onBuddyListUpdate"
	EventBuddyPermissionRequest EventType = "onBuddyPermissionRequest"
	EventBuddyRoom              EventType = "onBuddyRoom"
	EventRoomLeft               EventType = "onRoomLeft"
	EventSpectatorSwitched      EventType = "onSpectatorSwitched"
	EventPlayerSwitched         EventType = "onPlayerSwitched"
	EventExtensionResponse      EventType = "onExtensionResponse"
	EventConfigLoadSuccess      EventType = "onConfigLoadSuccess"
	EventConfigLoadFailure      EventType = "onConfigLoadFailure"
)

// Event is delivered to the handler registered for its Type.
type Event interface {
	Type() EventType
}

// ConnectionEvent reports the result of Connect. Exactly one is produced per
// attempt, whichever transport ends up being used.
type ConnectionEvent struct {
	Success bool
	Error   string
}

// ConnectionLostEvent is produced when the transport dies or Disconnect is
// called.
type ConnectionLostEvent struct{}

type LoginEvent struct {
	Success bool
	Name    string
	Error   string
}

type LogoutEvent struct{}

// RoomListUpdateEvent carries the new room directory, ordered by id.
type RoomListUpdateEvent struct {
	Rooms []*Room
}

type UserCountChangeEvent struct {
	Room *Room
}

type JoinRoomEvent struct {
	Room *Room
}

type JoinRoomErrorEvent struct {
	Error string
}

type UserEnterRoomEvent struct {
	RoomID int
	User   *User
}

type UserLeaveRoomEvent struct {
	RoomID   int
	UserID   int
	UserName string
}

type PublicMessageEvent struct {
	Message string
	Sender  *User
	RoomID  int
}

type PrivateMessageEvent struct {
	Message string
	Sender  *User
	RoomID  int
	UserID  int
}

type ModeratorMessageEvent struct {
	Message string
	Sender  *User
}

type AdminMessageEvent struct {
	Message string
}

type ObjectReceivedEvent struct {
	Object object.Value
	Sender *User
}

// RoomVariablesUpdateEvent lists the variable names touched by the update,
// deleted ones included.
type RoomVariablesUpdateEvent struct {
	Room        *Room
	ChangedVars []string
}

type UserVariablesUpdateEvent struct {
	User        *User
	ChangedVars []string
}

type RoomAddedEvent struct {
	Room *Room
}

// RoomDeletedEvent carries the last reference to the removed room.
type RoomDeletedEvent struct {
	Room *Room
}

type RandomKeyEvent struct {
	Key string
}

// RoundTripResponseEvent reports the time elapsed since RoundTripBench.
type RoundTripResponseEvent struct {
	Elapsed time.Duration
}

type CreateRoomErrorEvent struct {
	Error string
}

type BuddyListEvent struct {
	Buddies []*Buddy
}

type BuddyListErrorEvent struct {
	Error string
}

type BuddyListUpdateEvent struct {
	Buddy *Buddy
}

// BuddyPermissionRequestEvent asks the local user to accept being added to
// the buddy list of Sender. Answer with SendBuddyPermissionResponse.
type BuddyPermissionRequestEvent struct {
	Sender  string
	Message string
}

type BuddyRoomEvent struct {
	RoomIDs []int
}

type RoomLeftEvent struct {
	RoomID int
}

type SpectatorSwitchedEvent struct {
	Success bool
	NewID   int
	Room    *Room
}

type PlayerSwitchedEvent struct {
	Success bool
	NewID   int
	Room    *Room
}

// ExtensionResponseEvent carries a server extension reply. Object is set for
// the xml and json formats, Fields for the string format.
type ExtensionResponseEvent struct {
	Format wire.Format
	Object object.Value
	Fields []string
}

type ConfigLoadSuccessEvent struct{}

type ConfigLoadFailureEvent struct {
	Error string
}

func (*ConnectionEvent) Type() EventType { return EventConnection }
func (*ConnectionLostEvent) Type() EventType { return EventConnectionLost }
func (*LoginEvent) Type() EventType { return EventLogin }
func (*LogoutEvent) Type() EventType { return EventLogout }
func (*RoomListUpdateEvent) Type() EventType { return EventRoomListUpdate }
func (*UserCountChangeEvent) Type() EventType { return EventUserCountChange }
func (*JoinRoomEvent) Type() EventType { return EventJoinRoom }
func (*JoinRoomErrorEvent) Type() EventType { return EventJoinRoomError }
func (*UserEnterRoomEvent) Type() EventType { return EventUserEnterRoom }
func (*UserLeaveRoomEvent) Type() EventType { return EventUserLeaveRoom }
func (*PublicMessageEvent) Type() EventType { return EventPublicMessage }
func (*PrivateMessageEvent) Type() EventType { return EventPrivateMessage }
func (*ModeratorMessageEvent) Type() EventType { return EventModeratorMessage }
func (*AdminMessageEvent) Type() EventType { return EventAdminMessage }
func (*ObjectReceivedEvent) Type() EventType { return EventObjectReceived }
func (*RoomVariablesUpdateEvent) Type() EventType { return EventRoomVariablesUpdate }
func (*UserVariablesUpdateEvent) Type() EventType { return EventUserVariablesUpdate }
func (*RoomAddedEvent) Type() EventType { return EventRoomAdded }
func (*RoomDeletedEvent) Type() EventType { return EventRoomDeleted }
func (*RandomKeyEvent) Type() EventType { return EventRandomKey }
func (*RoundTripResponseEvent) Type() EventType { return EventRoundTripResponse }
func (*CreateRoomErrorEvent) Type() EventType { return EventCreateRoomError }
func (*BuddyListEvent) Type() EventType { return EventBuddyList }
func (*BuddyListErrorEvent) Type() EventType { return EventBuddyListError }
func (*BuddyListUpdateEvent) Type() EventType { return EventBuddyListUpdate }
func (*BuddyPermissionRequestEvent) Type() EventType { return EventBuddyPermissionRequest }
func (*BuddyRoomEvent) Type() EventType { return EventBuddyRoom }
func (*RoomLeftEvent) Type() EventType { return EventRoomLeft }
func (*SpectatorSwitchedEvent) Type() EventType { return EventSpectatorSwitched }
func (*PlayerSwitchedEvent) Type() EventType { return EventPlayerSwitched }
func (*ExtensionResponseEvent) Type() EventType { return EventExtensionResponse }
func (*ConfigLoadSuccessEvent) Type() EventType { return EventConfigLoadSuccess }
func (*ConfigLoadFailureEvent) Type() EventType { return EventConfigLoadFailure }
