package sfs

import (
	"strconv"
	"strings"

	"github.com/pior/sfs/wire"
)

// LoadBuddyList requests the buddy list of the local user. It arrives as a
// BuddyListEvent, or a BuddyListErrorEvent.
func (c *Client) LoadBuddyList() error {
	return c.sendXML(wire.HandlerSys, "loadB", wire.DefaultInt, "")
}

// AddBuddy asks the server to add name to the buddy list. The local user
// and names already in the list are refused.
func (c *Client) AddBuddy(name string) error {
	c.mu.RLock()
	refused := name == c.myUserName || buddyIndex(c.buddies, name) >= 0
	c.mu.RUnlock()

	if refused {
		return ErrInvalidParams
	}
	return c.sendXML(wire.HandlerSys, "addB", wire.DefaultInt, "<n>"+wire.EncodeEntities(name)+"</n>")
}

// RemoveBuddy removes name from the buddy list and notifies the server.
func (c *Client) RemoveBuddy(name string) error {
	c.mu.Lock()
	i := buddyIndex(c.buddies, name)
	if i < 0 {
		c.mu.Unlock()
		return ErrUnknownBuddy
	}
	c.buddies = append(c.buddies[:i], c.buddies[i+1:]...)
	buddies := append([]*Buddy(nil), c.buddies...)
	c.mu.Unlock()

	if err := c.sendXML(wire.HandlerSys, "remB", wire.DefaultInt, "<n>"+wire.EncodeEntities(name)+"</n>"); err != nil {
		return err
	}
	c.dispatch(&BuddyListEvent{Buddies: buddies})
	return nil
}

// ClearBuddyList empties the buddy list locally and on the server.
func (c *Client) ClearBuddyList() error {
	c.mu.Lock()
	c.buddies = nil
	c.mu.Unlock()

	if err := c.sendXML(wire.HandlerSys, "clearB", wire.DefaultInt, ""); err != nil {
		return err
	}
	c.dispatch(&BuddyListEvent{Buddies: []*Buddy{}})
	return nil
}

// SetBuddyBlockStatus blocks or unblocks a buddy. Private messages from a
// blocked buddy are not delivered by the server.
func (c *Client) SetBuddyBlockStatus(name string, blocked bool) error {
	b := c.BuddyByName(name)
	if b == nil {
		return ErrUnknownBuddy
	}
	if b.IsBlocked() == blocked {
		return nil
	}
	b.setBlocked(blocked)

	body := "<n x='" + flag(blocked) + "'>" + wire.EncodeEntities(name) + "</n>"
	if err := c.sendXML(wire.HandlerSys, "setB", wire.DefaultInt, body); err != nil {
		return err
	}
	c.dispatch(&BuddyListUpdateEvent{Buddy: b})
	return nil
}

// SendBuddyPermissionResponse grants or refuses the request of requester
// to add the local user to their buddy list.
func (c *Client) SendBuddyPermissionResponse(allow bool, requester string) error {
	res := "r"
	if allow {
		res = "g"
	}
	body := "<n res='" + res + "'>" + wire.EncodeEntities(requester) + "</n>"
	return c.sendXML(wire.HandlerSys, "bPrm", wire.DefaultInt, body)
}

// SetBuddyVariables sets variables of the local user seen by the users
// having them as buddy. Only new or changed values are sent.
func (c *Client) SetBuddyVariables(vars map[string]string) error {
	var sb strings.Builder
	sb.WriteString("<vars>")

	c.mu.Lock()
	for _, name := range sortedKeys(vars) {
		value := vars[name]
		if old, ok := c.myBuddyVars[name]; ok && old == value {
			continue
		}
		c.myBuddyVars[name] = value
		sb.WriteString("<var n='" + wire.EncodeEntities(name) + "'>" + wire.CDATA(value) + "</var>")
	}
	c.mu.Unlock()

	sb.WriteString("</vars>")
	return c.sendXML(wire.HandlerSys, "setBvars", wire.DefaultInt, sb.String())
}

// GetBuddyRoom asks in which rooms an online buddy is. The answer arrives
// as a BuddyRoomEvent. Nothing is sent for a buddy without an id.
func (c *Client) GetBuddyRoom(b *Buddy) error {
	if b == nil {
		return ErrInvalidParams
	}
	if b.ID() == wire.DefaultInt {
		return nil
	}
	return c.sendXML(wire.HandlerSys, "roomB", wire.DefaultInt, "<b id='"+strconv.Itoa(b.ID())+"' />")
}

// BuddyByName returns the buddy with the given name, or nil.
func (c *Client) BuddyByName(name string) *Buddy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := buddyIndex(c.buddies, name); i >= 0 {
		return c.buddies[i]
	}
	return nil
}

// BuddyByID returns the buddy with the given id, or nil.
func (c *Client) BuddyByID(id int) *Buddy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.buddies {
		if b.ID() == id {
			return b
		}
	}
	return nil
}

// Buddies returns the buddy list in server order.
func (c *Client) Buddies() []*Buddy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Buddy(nil), c.buddies...)
}

// MyBuddyVariables returns a copy of the local user's buddy variables.
func (c *Client) MyBuddyVariables() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyStrings(c.myBuddyVars)
}
