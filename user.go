package sfs

import (
	"sync"

	"github.com/pior/sfs/object"
	"github.com/pior/sfs/wire"
	"github.com/rs/zerolog"
)

// User is a member of a room. The same person joined to two rooms is
// represented by two User values.
type User struct {
	mu sync.RWMutex

	id        int
	name      string
	moderator bool
	spectator bool
	playerID  int
	vars      map[string]object.Value
}

// NewUser returns a non-spectator user with no player slot.
func NewUser(id int, name string) *User {
	return &User{
		id:       id,
		name:     name,
		playerID: wire.DefaultInt,
		vars:     make(map[string]object.Value),
	}
}

func (u *User) ID() int {
	return u.id
}

func (u *User) Name() string {
	return u.name
}

func (u *User) IsModerator() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.moderator
}

func (u *User) IsSpectator() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.spectator
}

// PlayerID returns the player slot in a game room, or -1 for spectators.
func (u *User) PlayerID() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.playerID
}

// Variable returns the named variable, Null when unset.
func (u *User) Variable(name string) object.Value {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.vars[name]
}

// Variables returns a copy of the user variables.
func (u *User) Variables() map[string]object.Value {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return copyValues(u.vars)
}

// SetVariables merges vars into the user variables. A Null value deletes
// the key.
func (u *User) SetVariables(vars map[string]object.Value) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for name, v := range vars {
		if v.IsNull() {
			delete(u.vars, name)
			continue
		}
		u.vars[name] = v
	}
}

func (u *User) setSlot(spectator bool, playerID int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.spectator = spectator
	u.playerID = playerID
}

func (u *User) updateVariables(node *wire.Node, logger zerolog.Logger) []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return applyVariables(u.vars, node, logger)
}

// parseUser reads a <u i='' m='' s='' p=''><n>name</n><vars/></u> element.
func parseUser(n *wire.Node, logger zerolog.Logger) *User {
	u := NewUser(n.AttrInt("i", wire.DefaultInt), n.Child("n").TextOr(wire.DefaultString))
	u.moderator = n.AttrBool("m")
	u.spectator = n.AttrBool("s")
	u.playerID = n.AttrInt("p", wire.DefaultInt)
	applyVariables(u.vars, n.Child("vars"), logger)
	return u
}
