package sfs

import (
	"sync"

	"github.com/pior/sfs/wire"
)

// Buddy is an entry of the buddy list.
type Buddy struct {
	mu sync.RWMutex

	id      int
	name    string
	online  bool
	blocked bool
	vars    map[string]string
}

// NewBuddy returns an offline buddy.
func NewBuddy(id int, name string) *Buddy {
	return &Buddy{
		id:   id,
		name: name,
		vars: make(map[string]string),
	}
}

func (b *Buddy) ID() int {
	return b.id
}

func (b *Buddy) Name() string {
	return b.name
}

func (b *Buddy) IsOnline() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.online
}

func (b *Buddy) IsBlocked() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.blocked
}

// Variable returns the named buddy variable and whether it is set.
func (b *Buddy) Variable(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.vars[name]
	return v, ok
}

// Variables returns a copy of the buddy variables.
func (b *Buddy) Variables() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyStrings(b.vars)
}

func (b *Buddy) setBlocked(blocked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked = blocked
}

// parseBuddy reads <b s='1' i='3' x='0'><n>name</n><vs><v n='k'>v</v></vs></b>.
func parseBuddy(n *wire.Node) *Buddy {
	b := NewBuddy(n.AttrInt("i", wire.DefaultInt), n.Child("n").TextOr(wire.DefaultString))
	b.online = n.AttrBool("s")
	b.blocked = n.AttrBool("x")
	applyBuddyVariables(b.vars, n.Child("vs"))
	return b
}
