package sfs

import (
	"sort"
	"sync"

	"github.com/pior/sfs/object"
	"github.com/pior/sfs/wire"
	"github.com/rs/zerolog"
)

// Room is an entry of the room directory. Its members are only known once
// the room has been joined.
type Room struct {
	mu sync.RWMutex

	id            int
	name          string
	maxUsers      int
	maxSpectators int
	temp          bool
	game          bool
	private       bool
	limbo         bool

	userCount      int
	spectatorCount int
	myPlayerIndex  int

	users map[int]*User
	vars  map[string]object.Value
}

// NewRoom returns an empty room.
func NewRoom(id int, name string) *Room {
	return &Room{
		id:            id,
		name:          name,
		myPlayerIndex: wire.DefaultInt,
		users:         make(map[int]*User),
		vars:          make(map[string]object.Value),
	}
}

func (r *Room) ID() int { return r.id }
func (r *Room) Name() string { return r.name }
func (r *Room) MaxUsers() int { return r.maxUsers }
func (r *Room) MaxSpectators() int { return r.maxSpectators }
func (r *Room) IsTemp() bool { return r.temp }
func (r *Room) IsGame() bool { return r.game }
func (r *Room) IsPrivate() bool { return r.private }
func (r *Room) IsLimbo() bool { return r.limbo }

func (r *Room) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userCount
}

func (r *Room) SpectatorCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.spectatorCount
}

// MyPlayerIndex returns the player slot of the local user in this room,
// -1 when spectating or not joined.
func (r *Room) MyPlayerIndex() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.myPlayerIndex
}

// User returns the member with the given id, or nil.
func (r *Room) User(id int) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[id]
}

// UserByName returns the first member with the given name, or nil.
func (r *Room) UserByName(name string) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Name() == name {
			return u
		}
	}
	return nil
}

// Users returns the members ordered by id.
func (r *Room) Users() []*User {
	r.mu.RLock()
	users := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID() < users[j].ID() })
	return users
}

// Variable returns the named variable, Null when unset.
func (r *Room) Variable(name string) object.Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vars[name]
}

// Variables returns a copy of the room variables.
func (r *Room) Variables() map[string]object.Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyValues(r.vars)
}

// AddUser adds u to the members and counts it as a player, or as a
// spectator in game rooms. Adding an id twice replaces the member.
func (r *Room) AddUser(u *User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.users[u.ID()]; ok {
		r.uncount(old)
	}
	r.users[u.ID()] = u
	if r.game && u.IsSpectator() {
		r.spectatorCount++
	} else {
		r.userCount++
	}
}

// RemoveUser removes the member with the given id. It reports whether the
// member was present.
func (r *Room) RemoveUser(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return false
	}
	delete(r.users, id)
	r.uncount(u)
	return true
}

func (r *Room) uncount(u *User) {
	if r.game && u.IsSpectator() {
		r.spectatorCount = max(r.spectatorCount-1, 0)
	} else {
		r.userCount = max(r.userCount-1, 0)
	}
}

// ClearUsers removes every member and zeroes both counts.
func (r *Room) ClearUsers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[int]*User)
	r.userCount = 0
	r.spectatorCount = 0
}

// SetCounts sets the player and spectator counts, clamped at zero.
func (r *Room) SetCounts(users, spectators int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userCount = max(users, 0)
	r.spectatorCount = max(spectators, 0)
}

func (r *Room) shiftCounts(users, spectators int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userCount = max(r.userCount+users, 0)
	r.spectatorCount = max(r.spectatorCount+spectators, 0)
}

func (r *Room) setMyPlayerIndex(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.myPlayerIndex = i
}

func (r *Room) updateVariables(node *wire.Node, logger zerolog.Logger) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return applyVariables(r.vars, node, logger)
}

func (r *Room) resetVariables(node *wire.Node, logger zerolog.Logger) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vars = make(map[string]object.Value)
	return applyVariables(r.vars, node, logger)
}

// parseListedRoom reads a room entry of the rmList action:
//
//	<rm id='1' priv='0' temp='0' game='0' ucnt='2' scnt='0' maxu='50' maxs='0' lmb='0'><n>Lobby</n><vars/></rm>
func parseListedRoom(n *wire.Node, logger zerolog.Logger) *Room {
	r := NewRoom(n.AttrInt("id", wire.DefaultInt), n.Child("n").TextOr(wire.DefaultString))
	r.maxUsers = n.AttrInt("maxu", wire.DefaultInt)
	r.maxSpectators = n.AttrInt("maxs", wire.DefaultInt)
	r.temp = n.AttrBool("temp")
	r.game = n.AttrBool("game")
	r.private = n.AttrBool("priv")
	r.limbo = n.AttrBool("lmb")
	r.userCount = max(n.AttrInt("ucnt", 0), 0)
	r.spectatorCount = max(n.AttrInt("scnt", 0), 0)
	applyVariables(r.vars, n.Child("vars"), logger)
	return r
}

// parseAddedRoom reads the room element of the roomAdd action, which uses
// different attribute names than rmList.
func parseAddedRoom(n *wire.Node, logger zerolog.Logger) *Room {
	r := NewRoom(n.AttrInt("id", wire.DefaultInt), n.Child("name").TextOr(wire.DefaultString))
	r.maxUsers = n.AttrInt("max", wire.DefaultInt)
	r.maxSpectators = n.AttrInt("spec", wire.DefaultInt)
	r.temp = n.AttrBool("temp")
	r.game = n.AttrBool("game")
	r.private = n.AttrBool("priv")
	r.limbo = n.AttrBool("limbo")
	applyVariables(r.vars, n.Child("vars"), logger)
	return r
}
