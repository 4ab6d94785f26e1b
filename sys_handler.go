package sfs

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pior/sfs/object"
	"github.com/pior/sfs/wire"
	"github.com/rs/zerolog"
)

const obsoleteAPIError = "API are obsolete, please upgrade"

// sysHandler implements the sys protocol: connection, login, rooms, users,
// messages, variables and buddies. Every field is read with a default so a
// missing or malformed attribute never fails a message.
type sysHandler struct {
	c       *Client
	logger  zerolog.Logger
	actions map[string]func(*wire.Envelope)
}

var _ MessageHandler = (*sysHandler)(nil)

func newSysHandler(c *Client) *sysHandler {
	h := &sysHandler{
		c:      c,
		logger: c.baseLogger.With().Str("component", "sys").Logger(),
	}
	h.actions = map[string]func(*wire.Envelope){
		"apiOK":        h.apiOK,
		"apiKO":        h.apiKO,
		"logOK":        h.logOK,
		"logKO":        h.logKO,
		"logout":       h.logout,
		"rmList":       h.roomList,
		"uCount":       h.userCount,
		"joinOK":       h.joinOK,
		"joinKO":       h.joinKO,
		"uER":          h.userEnterRoom,
		"userGone":     h.userLeaveRoom,
		"pubMsg":       h.publicMessage,
		"prvMsg":       h.privateMessage,
		"dmnMsg":       h.adminMessage,
		"modMsg":       h.moderatorMessage,
		"dataObj":      h.dataObject,
		"rVarsUpdate":  h.roomVariablesUpdate,
		"uVarsUpdate":  h.userVariablesUpdate,
		"roomAdd":      h.roomAdded,
		"roomDel":      h.roomDeleted,
		"rndK":         h.randomKey,
		"roundTripRes": h.roundTrip,
		"createRmKO":   h.createRoomError,
		"bList":        h.buddyList,
		"bUpd":         h.buddyUpdate,
		"bAdd":         h.buddyAdded,
		"remB":         h.buddyRemoved,
		"bPrm":         h.buddyPermission,
		"roomB":        h.buddyRoom,
		"leaveRoom":    h.leaveRoom,
		"swSpec":       h.spectatorSwitched,
		"swPl":         h.playerSwitched,
	}
	return h
}

func (h *sysHandler) HandleMessage(env *wire.Envelope) {
	if env.Format != wire.FormatXML {
		h.logger.Warn().Str("format", string(env.Format)).Msg("ignoring sys message in non-xml format")
		return
	}

	action, ok := h.actions[env.Action]
	if !ok {
		h.logger.Debug().Str("action", env.Action).Msg("unknown sys action")
		return
	}
	action(env)
}

// knownRoom returns the room the message refers to, or nil after logging
// the inconsistency.
func (h *sysHandler) knownRoom(env *wire.Envelope) *Room {
	room := h.c.room(env.Room)
	if room == nil {
		h.logger.Warn().
			Str("action", env.Action).
			Int("room_id", env.Room).
			Msg("message for unknown room ignored, room list not up to date?")
	}
	return room
}

// sender resolves the user@id of a message within its room.
func (h *sysHandler) sender(env *wire.Envelope) (*Room, *User) {
	room := h.knownRoom(env)
	if room == nil {
		return nil, nil
	}
	userID := env.Body.Child("user").AttrInt("id", wire.DefaultInt)
	user := room.User(userID)
	if user == nil {
		h.logger.Warn().
			Str("action", env.Action).
			Int("room_id", env.Room).
			Int("user_id", userID).
			Msg("message from unknown sender ignored")
		return room, nil
	}
	return room, user
}

func (h *sysHandler) apiOK(env *wire.Envelope) {
	h.c.mu.Lock()
	h.c.connected = true
	h.c.mu.Unlock()

	h.c.dispatch(&ConnectionEvent{Success: true})
}

func (h *sysHandler) apiKO(env *wire.Envelope) {
	h.c.dispatch(&ConnectionEvent{Success: false, Error: obsoleteAPIError})
}

func (h *sysHandler) logOK(env *wire.Envelope) {
	login := env.Body.Child("login")
	id := login.AttrInt("id", wire.DefaultInt)
	name := login.AttrString("n", wire.DefaultString)

	h.c.mu.Lock()
	h.c.myUserID = id
	h.c.myUserName = name
	h.c.moderator = login.AttrInt("mod", 0) == 1
	h.c.playerID = wire.DefaultInt
	h.c.mu.Unlock()

	if err := h.c.GetRoomList(); err != nil {
		h.logger.Warn().Err(err).Msg("room list request after login failed")
	}

	h.c.dispatch(&LoginEvent{Success: true, Name: name})
}

func (h *sysHandler) logKO(env *wire.Envelope) {
	h.c.dispatch(&LoginEvent{
		Success: false,
		Error:   env.Body.Child("login").AttrString("e", wire.DefaultString),
	})
}

func (h *sysHandler) logout(env *wire.Envelope) {
	h.c.resetSession(true)
	h.c.dispatch(&LogoutEvent{})
}

func (h *sysHandler) roomList(env *wire.Envelope) {
	rooms := make(map[int]*Room)
	for _, n := range env.Body.Path("rmList").ChildrenNamed("rm") {
		r := parseListedRoom(n, h.logger)
		rooms[r.ID()] = r
	}

	h.c.mu.Lock()
	h.c.rooms = rooms
	h.c.mu.Unlock()

	h.c.dispatch(&RoomListUpdateEvent{Rooms: sortedRooms(rooms)})
}

func (h *sysHandler) userCount(env *wire.Envelope) {
	room := h.knownRoom(env)
	if room == nil {
		return
	}
	room.SetCounts(
		env.Body.AttrInt("u", room.UserCount()),
		env.Body.AttrInt("s", room.SpectatorCount()),
	)
	h.c.dispatch(&UserCountChangeEvent{Room: room})
}

func (h *sysHandler) joinOK(env *wire.Envelope) {
	room := h.knownRoom(env)
	if room == nil {
		return
	}

	playerID := env.Body.Child("pid").AttrInt("id", wire.DefaultInt)

	room.ClearUsers()
	room.setMyPlayerIndex(playerID)
	if vars := env.Body.Child("vars"); vars != nil {
		room.resetVariables(vars, h.logger)
	}
	for _, n := range env.Body.Path("uLs").ChildrenNamed("u") {
		room.AddUser(parseUser(n, h.logger))
	}

	h.c.mu.Lock()
	h.c.activeRoomID = room.ID()
	h.c.playerID = playerID
	h.c.changingRoom = false
	h.c.mu.Unlock()

	h.c.dispatch(&JoinRoomEvent{Room: room})
}

func (h *sysHandler) joinKO(env *wire.Envelope) {
	h.c.mu.Lock()
	h.c.changingRoom = false
	h.c.mu.Unlock()

	h.c.dispatch(&JoinRoomErrorEvent{
		Error: env.Body.Child("error").AttrString("msg", wire.DefaultString),
	})
}

func (h *sysHandler) userEnterRoom(env *wire.Envelope) {
	room := h.knownRoom(env)
	if room == nil {
		return
	}
	n := env.Body.Child("u")
	if n == nil {
		h.logger.Warn().Int("room_id", env.Room).Msg("user enter message without user")
		return
	}

	user := parseUser(n, h.logger)
	room.AddUser(user)
	h.c.dispatch(&UserEnterRoomEvent{RoomID: room.ID(), User: user})
}

func (h *sysHandler) userLeaveRoom(env *wire.Envelope) {
	room := h.knownRoom(env)
	if room == nil {
		return
	}

	userID := env.Body.Child("user").AttrInt("id", wire.DefaultInt)
	user := room.User(userID)
	if user == nil {
		h.logger.Warn().Int("room_id", room.ID()).Int("user_id", userID).Msg("unknown user left room")
		return
	}

	room.RemoveUser(userID)
	h.c.dispatch(&UserLeaveRoomEvent{RoomID: room.ID(), UserID: userID, UserName: user.Name()})
}

func (h *sysHandler) messageText(env *wire.Envelope) string {
	return wire.DecodeEntities(env.Body.Child("txt").TextOr(wire.DefaultString))
}

func (h *sysHandler) publicMessage(env *wire.Envelope) {
	room, user := h.sender(env)
	if user == nil {
		return
	}
	h.c.dispatch(&PublicMessageEvent{Message: h.messageText(env), Sender: user, RoomID: room.ID()})
}

func (h *sysHandler) privateMessage(env *wire.Envelope) {
	room, user := h.sender(env)
	if user == nil {
		return
	}
	h.c.dispatch(&PrivateMessageEvent{
		Message: h.messageText(env),
		Sender:  user,
		RoomID:  room.ID(),
		UserID:  user.ID(),
	})
}

func (h *sysHandler) adminMessage(env *wire.Envelope) {
	h.c.dispatch(&AdminMessageEvent{Message: h.messageText(env)})
}

func (h *sysHandler) moderatorMessage(env *wire.Envelope) {
	_, user := h.sender(env)
	if user == nil {
		return
	}
	h.c.dispatch(&ModeratorMessageEvent{Message: h.messageText(env), Sender: user})
}

func (h *sysHandler) dataObject(env *wire.Envelope) {
	_, user := h.sender(env)
	if user == nil {
		return
	}

	obj, err := object.Decode(env.Body.Child("dataObj").Text())
	if err != nil {
		h.logger.Warn().Err(err).Int("user_id", user.ID()).Msg("dropping undecodable object")
		return
	}
	h.c.dispatch(&ObjectReceivedEvent{Object: obj, Sender: user})
}

func (h *sysHandler) roomVariablesUpdate(env *wire.Envelope) {
	room := h.knownRoom(env)
	if room == nil {
		return
	}

	var changed []string
	if vars := env.Body.Child("vars"); vars != nil {
		changed = room.updateVariables(vars, h.logger)
	}
	h.c.dispatch(&RoomVariablesUpdateEvent{Room: room, ChangedVars: changed})
}

func (h *sysHandler) userVariablesUpdate(env *wire.Envelope) {
	room, user := h.sender(env)
	if room == nil || user == nil {
		return
	}

	var changed []string
	if vars := env.Body.Child("vars"); vars != nil {
		changed = user.updateVariables(vars, h.logger)
	}
	h.c.dispatch(&UserVariablesUpdateEvent{User: user, ChangedVars: changed})
}

func (h *sysHandler) roomAdded(env *wire.Envelope) {
	n := env.Body.Child("rm")
	if n == nil {
		h.logger.Warn().Msg("room added message without room")
		return
	}
	room := parseAddedRoom(n, h.logger)

	h.c.mu.Lock()
	h.c.rooms[room.ID()] = room
	h.c.mu.Unlock()

	h.c.dispatch(&RoomAddedEvent{Room: room})
}

func (h *sysHandler) roomDeleted(env *wire.Envelope) {
	id := env.Body.Child("rm").AttrInt("id", env.Room)

	h.c.mu.Lock()
	room, ok := h.c.rooms[id]
	delete(h.c.rooms, id)
	h.c.mu.Unlock()

	if !ok {
		h.logger.Warn().Int("room_id", id).Msg("unknown room deleted")
		return
	}
	h.c.dispatch(&RoomDeletedEvent{Room: room})
}

func (h *sysHandler) randomKey(env *wire.Envelope) {
	h.c.dispatch(&RandomKeyEvent{Key: env.Body.Child("k").TextOr(wire.DefaultString)})
}

func (h *sysHandler) roundTrip(env *wire.Envelope) {
	h.c.mu.RLock()
	start := h.c.benchStart
	h.c.mu.RUnlock()

	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}
	h.c.dispatch(&RoundTripResponseEvent{Elapsed: elapsed})
}

func (h *sysHandler) createRoomError(env *wire.Envelope) {
	n := env.Body.Child("room")
	if n == nil {
		n = env.Body.Child("Room")
	}
	h.c.dispatch(&CreateRoomErrorEvent{Error: n.AttrString("e", wire.DefaultString)})
}

func (h *sysHandler) buddyError(env *wire.Envelope) {
	h.c.dispatch(&BuddyListErrorEvent{Error: env.Body.Child("err").TextOr(wire.DefaultString)})
}

func (h *sysHandler) buddyList(env *wire.Envelope) {
	list := env.Body.Child("bList")

	h.c.mu.Lock()
	h.c.buddies = nil
	h.c.myBuddyVars = make(map[string]string)
	applyBuddyVariables(h.c.myBuddyVars, env.Body.Child("mv"))
	if list != nil {
		for _, n := range list.ChildrenNamed("b") {
			h.c.buddies = upsertBuddy(h.c.buddies, parseBuddy(n))
		}
	}
	buddies := append([]*Buddy(nil), h.c.buddies...)
	h.c.mu.Unlock()

	if list == nil {
		h.buddyError(env)
		return
	}
	h.c.dispatch(&BuddyListEvent{Buddies: buddies})
}

func (h *sysHandler) buddyUpdate(env *wire.Envelope) {
	n := env.Body.Child("b")
	if n == nil {
		h.buddyError(env)
		return
	}
	updated := parseBuddy(n)

	h.c.mu.Lock()
	i := buddyIndex(h.c.buddies, updated.Name())
	if i >= 0 {
		old := h.c.buddies[i]
		updated.blocked = old.IsBlocked()
		updated.vars = old.Variables()
		applyBuddyVariables(updated.vars, n.Child("vs"))
		h.c.buddies[i] = updated
	}
	h.c.mu.Unlock()

	if i < 0 {
		h.logger.Warn().Str("buddy", updated.Name()).Msg("update for unknown buddy ignored")
		return
	}
	h.c.dispatch(&BuddyListUpdateEvent{Buddy: updated})
}

func (h *sysHandler) buddyAdded(env *wire.Envelope) {
	n := env.Body.Child("b")
	if n == nil {
		h.logger.Warn().Msg("buddy added message without buddy")
		return
	}

	h.c.mu.Lock()
	h.c.buddies = upsertBuddy(h.c.buddies, parseBuddy(n))
	buddies := append([]*Buddy(nil), h.c.buddies...)
	h.c.mu.Unlock()

	h.c.dispatch(&BuddyListEvent{Buddies: buddies})
}

func (h *sysHandler) buddyRemoved(env *wire.Envelope) {
	name := env.Body.Child("n").TextOr(wire.DefaultString)

	h.c.mu.Lock()
	i := buddyIndex(h.c.buddies, name)
	if i >= 0 {
		h.c.buddies = append(h.c.buddies[:i], h.c.buddies[i+1:]...)
	}
	buddies := append([]*Buddy(nil), h.c.buddies...)
	h.c.mu.Unlock()

	if i < 0 {
		return
	}
	h.c.dispatch(&BuddyListEvent{Buddies: buddies})
}

func (h *sysHandler) buddyPermission(env *wire.Envelope) {
	var message string
	if txt := env.Body.Child("txt"); txt != nil {
		message = wire.DecodeEntities(txt.Text())
	}
	h.c.dispatch(&BuddyPermissionRequestEvent{
		Sender:  env.Body.Child("n").TextOr(wire.DefaultString),
		Message: message,
	})
}

func (h *sysHandler) buddyRoom(env *wire.Envelope) {
	raw := env.Body.Child("br").AttrString("r", wire.DefaultString)

	var ids []int
	for _, s := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			id = wire.DefaultInt
		}
		ids = append(ids, id)
	}
	h.c.dispatch(&BuddyRoomEvent{RoomIDs: ids})
}

func (h *sysHandler) leaveRoom(env *wire.Envelope) {
	h.c.dispatch(&RoomLeftEvent{RoomID: env.Body.Child("rm").AttrInt("id", wire.DefaultInt)})
}

// spectatorSwitched handles swSpec. A pid element with a u attribute
// reports another user becoming a player; without it the local user is
// concerned and an event is produced. Counts only move on success.
func (h *sysHandler) spectatorSwitched(env *wire.Envelope) {
	room := h.knownRoom(env)
	if room == nil {
		return
	}

	pid := env.Body.Child("pid")
	playerID := pid.AttrInt("id", wire.DefaultInt)
	success := playerID > 0

	if pid.HasAttr("u") {
		if success {
			h.switchUser(room, pid.AttrInt("u", wire.DefaultInt), false, playerID)
		}
		return
	}

	if success {
		room.shiftCounts(1, -1)
	}
	h.c.mu.Lock()
	h.c.playerID = playerID
	h.c.mu.Unlock()
	room.setMyPlayerIndex(playerID)

	h.c.dispatch(&SpectatorSwitchedEvent{Success: success, NewID: playerID, Room: room})
}

// playerSwitched handles swPl, the reverse of swSpec. A player id of -1
// means the switch succeeded.
func (h *sysHandler) playerSwitched(env *wire.Envelope) {
	room := h.knownRoom(env)
	if room == nil {
		return
	}

	pid := env.Body.Child("pid")
	playerID := pid.AttrInt("id", wire.DefaultInt)
	success := playerID == wire.DefaultInt

	if pid.HasAttr("u") {
		if success {
			h.switchUser(room, pid.AttrInt("u", wire.DefaultInt), true, playerID)
		}
		return
	}

	if success {
		room.shiftCounts(-1, 1)
	}
	h.c.mu.Lock()
	h.c.playerID = playerID
	h.c.mu.Unlock()
	room.setMyPlayerIndex(playerID)

	h.c.dispatch(&PlayerSwitchedEvent{Success: success, NewID: playerID, Room: room})
}

// switchUser moves a member between players and spectators. Unknown members
// leave the room untouched.
func (h *sysHandler) switchUser(room *Room, userID int, spectator bool, playerID int) {
	user := room.User(userID)
	if user == nil {
		h.logger.Warn().Int("room_id", room.ID()).Int("user_id", userID).Msg("slot switch for unknown user ignored")
		return
	}

	if spectator {
		room.shiftCounts(-1, 1)
	} else {
		room.shiftCounts(1, -1)
	}
	user.setSlot(spectator, playerID)
}

func sortedRooms(rooms map[int]*Room) []*Room {
	out := make([]*Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func buddyIndex(buddies []*Buddy, name string) int {
	for i, b := range buddies {
		if b.Name() == name {
			return i
		}
	}
	return -1
}

// upsertBuddy appends b, or replaces the buddy with the same name.
func upsertBuddy(buddies []*Buddy, b *Buddy) []*Buddy {
	if i := buddyIndex(buddies, b.Name()); i >= 0 {
		buddies[i] = b
		return buddies
	}
	return append(buddies, b)
}
