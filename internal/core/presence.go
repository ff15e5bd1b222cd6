package core

import (
	"sort"
	"time"
)

// Member is one presence entry of a room.
type Member struct {
	ConnID   string
	UserID   string
	Email    string
	JoinedAt time.Time

	seq uint64
}

// presence is the member set of a room. It is owned by the room goroutine.
type presence struct {
	members map[string]*Member
	seq     uint64
}

func newPresence() *presence {
	return &presence{members: make(map[string]*Member)}
}

// add inserts a member or refreshes the identity of an existing one.
func (p *presence) add(connID string, id Identity, now time.Time) (added, changed bool) {
	if m, ok := p.members[connID]; ok {
		if m.UserID == id.UserID && m.Email == id.Email {
			return false, false
		}
		m.UserID = id.UserID
		m.Email = id.Email
		return false, true
	}
	p.seq++
	p.members[connID] = &Member{
		ConnID:   connID,
		UserID:   id.UserID,
		Email:    id.Email,
		JoinedAt: now,
		seq:      p.seq,
	}
	return true, true
}

func (p *presence) remove(connID string) bool {
	if _, ok := p.members[connID]; !ok {
		return false
	}
	delete(p.members, connID)
	return true
}

func (p *presence) get(connID string) (*Member, bool) {
	m, ok := p.members[connID]
	return m, ok
}

func (p *presence) len() int {
	return len(p.members)
}

// list returns a copy of the members in join order.
func (p *presence) list() []Member {
	out := make([]Member, 0, len(p.members))
	for _, m := range p.members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
