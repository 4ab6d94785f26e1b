package sfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pior/sfs/object"
	"github.com/pior/sfs/wire"
)

// ModMsgTarget selects the recipients of a moderator message.
type ModMsgTarget string

const (
	ModMsgToUser ModMsgTarget = "u"
	ModMsgToRoom ModMsgTarget = "r"
	ModMsgToZone ModMsgTarget = "z"
)

// groupKey carries the recipient list of SendObjectToGroup.
const groupKey = "_$$_"

// RoomExtension attaches a server extension to a created room.
type RoomExtension struct {
	Name   string
	Script string
}

// RoomDescriptor describes a room to create with CreateRoom.
type RoomDescriptor struct {
	Name             string
	Password         string
	MaxUsers         int
	MaxSpectators    int
	IsGame           bool
	ExitCurrentRoom  bool
	ReceiveUserCount bool
	Variables        []RoomVariable
	Extension        *RoomExtension
}

// NewRoomDescriptor returns a descriptor for a regular room that is joined
// in place of the current one.
func NewRoomDescriptor(name string, maxUsers int) RoomDescriptor {
	return RoomDescriptor{
		Name:            name,
		MaxUsers:        maxUsers,
		ExitCurrentRoom: true,
	}
}

type joinOptions struct {
	password  string
	spectator bool
	dontLeave bool
	leaveRoom int
}

// JoinOption customizes JoinRoom.
type JoinOption func(*joinOptions)

// WithPassword sets the password of a private room.
func WithPassword(password string) JoinOption {
	return func(o *joinOptions) { o.password = password }
}

// AsSpectator joins a game room as a spectator.
func AsSpectator() JoinOption {
	return func(o *joinOptions) { o.spectator = true }
}

// DontLeave keeps the current room joined.
func DontLeave() JoinOption {
	return func(o *joinOptions) { o.dontLeave = true }
}

// LeavingRoom sets the room to leave when it is not the active one.
func LeavingRoom(roomID int) JoinOption {
	return func(o *joinOptions) { o.leaveRoom = roomID }
}

func (c *Client) requireRoomList(op string) error {
	c.mu.RLock()
	empty := len(c.rooms) == 0
	c.mu.RUnlock()

	if empty {
		c.logger.Warn().Str("op", op).Msg("room list is empty")
		return ErrRoomListEmpty
	}
	return nil
}

func (c *Client) requireJoin(op string) error {
	if err := c.requireRoomList(op); err != nil {
		return err
	}
	if c.ActiveRoomID() < 0 {
		c.logger.Warn().Str("op", op).Msg("no active room")
		return ErrNoActiveRoom
	}
	return nil
}

// resolveRoom maps ActiveRoom to the active room id.
func (c *Client) resolveRoom(roomID int) int {
	if roomID == ActiveRoom {
		return c.ActiveRoomID()
	}
	return roomID
}

func (c *Client) room(id int) *Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[id]
}

// GetRoom returns the room with the given id from the directory, or nil.
func (c *Client) GetRoom(id int) *Room {
	return c.room(id)
}

// GetRoomByName returns the room with the given name, or nil.
func (c *Client) GetRoomByName(name string) *Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rooms {
		if r.Name() == name {
			return r
		}
	}
	return nil
}

// GetActiveRoom returns the last joined room, or nil.
func (c *Client) GetActiveRoom() *Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[c.activeRoomID]
}

// Rooms returns the room directory ordered by id.
func (c *Client) Rooms() []*Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedRooms(c.rooms)
}

// Login logs into zone. An empty zone uses Config.Zone.
// The result arrives as a LoginEvent.
func (c *Client) Login(zone, name, password string) error {
	if zone == "" {
		zone = c.settings().Zone
	}
	body := "<login z='" + wire.EncodeEntities(zone) + "'>" +
		"<nick>" + wire.CDATA(name) + "</nick>" +
		"<pword>" + wire.CDATA(password) + "</pword>" +
		"</login>"
	return c.sendXML(wire.HandlerSys, "login", 0, body)
}

// Logout leaves the zone and keeps the connection open.
func (c *Client) Logout() error {
	return c.sendXML(wire.HandlerSys, "logout", wire.DefaultInt, "")
}

// GetRoomList requests the room directory. It is sent automatically after
// a successful login.
func (c *Client) GetRoomList() error {
	return c.sendXML(wire.HandlerSys, "getRmList", c.ActiveRoomID(), "")
}

// AutoJoin asks the server to join the default room of the zone.
func (c *Client) AutoJoin() error {
	if err := c.requireRoomList("autoJoin"); err != nil {
		return err
	}
	return c.sendXML(wire.HandlerSys, "autoJoin", c.ActiveRoomID(), "")
}

// JoinRoom joins the room with the given id. Only one join can be pending
// at a time.
func (c *Client) JoinRoom(roomID int, opts ...JoinOption) error {
	if err := c.requireRoomList("joinRoom"); err != nil {
		return err
	}

	o := joinOptions{leaveRoom: wire.DefaultInt}
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	if c.changingRoom {
		c.mu.Unlock()
		return ErrChangingRoom
	}
	if _, ok := c.rooms[roomID]; !ok {
		c.mu.Unlock()
		c.logger.Warn().Int("room_id", roomID).Msg("requested room to join does not exist")
		return ErrUnknownRoom
	}

	active := c.activeRoomID
	leave := !o.dontLeave
	old := active
	if o.leaveRoom > wire.DefaultInt {
		old = o.leaveRoom
	}
	if active == wire.DefaultInt {
		leave = false
		old = wire.DefaultInt
	}
	c.changingRoom = true
	c.mu.Unlock()

	body := fmt.Sprintf("<room id='%d' pwd='%s' spec='%s' leave='%s' old='%d' />",
		roomID, wire.EncodeEntities(o.password), flag(o.spectator), flag(leave), old)

	if err := c.sendXML(wire.HandlerSys, "joinRoom", active, body); err != nil {
		c.mu.Lock()
		c.changingRoom = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// JoinRoomByName joins the room with the given name.
func (c *Client) JoinRoomByName(name string, opts ...JoinOption) error {
	if err := c.requireRoomList("joinRoom"); err != nil {
		return err
	}
	room := c.GetRoomByName(name)
	if room == nil {
		c.logger.Warn().Str("room", name).Msg("requested room to join does not exist")
		return ErrUnknownRoom
	}
	return c.JoinRoom(room.ID(), opts...)
}

// LeaveRoom leaves a room joined with DontLeave.
func (c *Client) LeaveRoom(roomID int) error {
	if err := c.requireJoin("leaveRoom"); err != nil {
		return err
	}
	return c.sendXML(wire.HandlerSys, "leaveRoom", roomID, "<rm id='"+strconv.Itoa(roomID)+"' />")
}

// CreateRoom asks the server to create a room. roomID is the room the
// request is sent from, ActiveRoom for the active one.
func (c *Client) CreateRoom(d RoomDescriptor, roomID int) error {
	if err := c.requireJoin("createRoom"); err != nil {
		return err
	}
	roomID = c.resolveRoom(roomID)

	var sb strings.Builder
	fmt.Fprintf(&sb, "<room tmp='1' gam='%s' spec='%d' exit='%s'>", flag(d.IsGame), d.MaxSpectators, flag(d.ExitCurrentRoom))
	sb.WriteString("<name>" + wire.CDATA(d.Name) + "</name>")
	sb.WriteString("<pwd>" + wire.CDATA(d.Password) + "</pwd>")
	sb.WriteString("<max>" + strconv.Itoa(d.MaxUsers) + "</max>")
	sb.WriteString("<uCnt>" + flag(d.ReceiveUserCount) + "</uCnt>")
	if d.Extension != nil {
		sb.WriteString("<xt n='" + wire.EncodeEntities(d.Extension.Name) + "' s='" + wire.EncodeEntities(d.Extension.Script) + "' />")
	}
	sb.WriteString("<vars>")
	for _, rv := range d.Variables {
		writeRoomVariable(&sb, rv)
	}
	sb.WriteString("</vars></room>")

	return c.sendXML(wire.HandlerSys, "createRoom", roomID, sb.String())
}

// SetRoomVariables sets variables of a room. With setOwnership the local
// user becomes the owner of the variables.
func (c *Client) SetRoomVariables(vars []RoomVariable, roomID int, setOwnership bool) error {
	if err := c.requireJoin("setRvars"); err != nil {
		return err
	}
	roomID = c.resolveRoom(roomID)

	var sb strings.Builder
	if setOwnership {
		sb.WriteString("<vars>")
	} else {
		sb.WriteString("<vars so='0'>")
	}
	for _, rv := range vars {
		writeRoomVariable(&sb, rv)
	}
	sb.WriteString("</vars>")

	return c.sendXML(wire.HandlerSys, "setRvars", roomID, sb.String())
}

// SetUserVariables sets variables of the local user and applies them
// locally to the active room. A Null value deletes the variable.
func (c *Client) SetUserVariables(vars map[string]object.Value, roomID int) error {
	if err := c.requireJoin("setUvars"); err != nil {
		return err
	}
	roomID = c.resolveRoom(roomID)

	if room := c.GetActiveRoom(); room != nil {
		if me := room.User(c.MyUserID()); me != nil {
			me.SetVariables(vars)
		}
	}
	return c.sendXML(wire.HandlerSys, "setUvars", roomID, userVariablesXML(vars))
}

// SendPublicMessage sends a chat message to every user of a room.
func (c *Client) SendPublicMessage(message string, roomID int) error {
	if err := c.requireJoin("pubMsg"); err != nil {
		return err
	}
	body := "<txt>" + wire.CDATA(wire.EncodeEntities(message)) + "</txt>"
	return c.sendXML(wire.HandlerSys, "pubMsg", c.resolveRoom(roomID), body)
}

// SendPrivateMessage sends a chat message to one user.
func (c *Client) SendPrivateMessage(message string, recipientID, roomID int) error {
	if err := c.requireJoin("prvMsg"); err != nil {
		return err
	}
	body := "<txt rcp='" + strconv.Itoa(recipientID) + "'>" + wire.CDATA(wire.EncodeEntities(message)) + "</txt>"
	return c.sendXML(wire.HandlerSys, "prvMsg", c.resolveRoom(roomID), body)
}

// SendModeratorMessage sends a moderator message to a user, a room or the
// whole zone. id is the user or room id, ignored for the zone.
func (c *Client) SendModeratorMessage(message string, target ModMsgTarget, id int) error {
	if err := c.requireJoin("modMsg"); err != nil {
		return err
	}
	switch target {
	case ModMsgToUser, ModMsgToRoom, ModMsgToZone:
	default:
		return fmt.Errorf("%w: moderator message target %q", ErrInvalidParams, target)
	}
	body := "<txt t='" + string(target) + "' id='" + strconv.Itoa(id) + "'>" + wire.CDATA(wire.EncodeEntities(message)) + "</txt>"
	return c.sendXML(wire.HandlerSys, "modMsg", c.ActiveRoomID(), body)
}

// SendObject sends a structured object to the other users of a room.
func (c *Client) SendObject(obj object.Value, roomID int) error {
	if err := c.requireJoin("asObj"); err != nil {
		return err
	}
	payload, err := object.Encode(obj)
	if err != nil {
		return err
	}
	return c.sendXML(wire.HandlerSys, "asObj", c.resolveRoom(roomID), wire.CDATA(payload))
}

// SendObjectToGroup sends a structured object to a set of users of a room.
// obj must be a map and is not modified.
func (c *Client) SendObjectToGroup(obj object.Value, userIDs []int, roomID int) error {
	if err := c.requireJoin("asObjG"); err != nil {
		return err
	}
	if !obj.IsMap() || len(userIDs) == 0 {
		return ErrInvalidParams
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = strconv.Itoa(id)
	}
	withGroup := object.MapOf(obj.Entries())
	withGroup.Set(groupKey, object.String(strings.Join(ids, ",")))

	payload, err := object.Encode(withGroup)
	if err != nil {
		return err
	}
	return c.sendXML(wire.HandlerSys, "asObjG", c.resolveRoom(roomID), wire.CDATA(payload))
}

// SendXtMessage calls a server extension command with an XML encoded map
// of parameters. A Null params sends an empty map.
func (c *Client) SendXtMessage(extension, cmd string, params object.Value, roomID int) error {
	if err := c.requireRoomList("xtReq"); err != nil {
		return err
	}
	if params.IsNull() {
		params = object.NewMap()
	}
	if !params.IsMap() {
		return fmt.Errorf("%w: xml extension parameters must be a map", ErrInvalidParams)
	}

	req := object.NewMap()
	req.Set("name", object.String(extension))
	req.Set("cmd", object.String(cmd))
	req.Set("param", params)

	payload, err := object.Encode(req)
	if err != nil {
		return err
	}
	return c.sendXML(wire.HandlerExt, "xtReq", c.resolveRoom(roomID), wire.CDATA(payload))
}

// SendXtJSON calls a server extension command with JSON parameters.
func (c *Client) SendXtJSON(extension, cmd string, params object.Value, roomID int) error {
	if err := c.requireRoomList("xtReq"); err != nil {
		return err
	}
	if params.IsNull() {
		params = object.NewMap()
	}
	if !params.IsMap() {
		return fmt.Errorf("%w: json extension parameters must be a map", ErrInvalidParams)
	}

	msg, err := wire.BuildJSON(wire.HandlerExt, map[string]any{
		"x": extension,
		"c": cmd,
		"r": c.resolveRoom(roomID),
		"p": object.ToAny(params),
	})
	if err != nil {
		return err
	}
	return c.send(msg)
}

// SendXtString calls a server extension command with the raw string
// protocol, the most compact of the three.
func (c *Client) SendXtString(extension, cmd string, params []string, roomID int) error {
	if err := c.requireRoomList("xtReq"); err != nil {
		return err
	}

	sep := byte(c.separator.Load())
	for _, p := range params {
		if strings.IndexByte(p, sep) >= 0 {
			return fmt.Errorf("%w: parameter %q contains the separator", ErrInvalidParams, p)
		}
	}

	fields := append([]string{wire.HandlerExt, extension, cmd, strconv.Itoa(c.resolveRoom(roomID))}, params...)
	return c.send(wire.BuildString(sep, fields...))
}

// GetRandomKey requests a key for secure login. The key arrives as a
// RandomKeyEvent.
func (c *Client) GetRandomKey() error {
	return c.sendXML(wire.HandlerSys, "rndK", wire.DefaultInt, "")
}

// RoundTripBench measures the round trip time to the server. The result
// arrives as a RoundTripResponseEvent.
func (c *Client) RoundTripBench() error {
	c.mu.Lock()
	c.benchStart = time.Now()
	c.mu.Unlock()

	return c.sendXML(wire.HandlerSys, "roundTrip", c.ActiveRoomID(), "")
}

// SwitchSpectator asks to turn the local spectator into a player.
func (c *Client) SwitchSpectator(roomID int) error {
	if err := c.requireJoin("swSpec"); err != nil {
		return err
	}
	return c.sendXML(wire.HandlerSys, "swSpec", c.resolveRoom(roomID), "")
}

// SwitchPlayer asks to turn the local player into a spectator.
func (c *Client) SwitchPlayer(roomID int) error {
	if err := c.requireJoin("swPl"); err != nil {
		return err
	}
	return c.sendXML(wire.HandlerSys, "swPl", c.resolveRoom(roomID), "")
}
