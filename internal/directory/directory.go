// Package directory keeps the latest known contact and group records,
// updated incrementally from transport events and wholesale from bulk
// fetches.
package directory

import (
	"sort"
	"sync"

	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/internal/transport"
)

// Directory is the contact/group read model.
type Directory struct {
	mu       sync.RWMutex
	contacts map[string]*store.Contact
	groups   map[string]*store.Group
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		contacts: make(map[string]*store.Contact),
		groups:   make(map[string]*store.Group),
	}
}

// MergeContact upserts a contact by JID, shallow-merging the non-empty
// fields of the partial record over the existing one.
func (d *Directory) MergeContact(partial store.Contact) {
	if partial.JID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.contacts[partial.JID]
	if !ok {
		c := partial
		if c.Number == "" {
			c.Number = transport.BareNumber(c.JID)
		}
		d.contacts[partial.JID] = &c
		return
	}
	if partial.Name != "" {
		existing.Name = partial.Name
	}
	if partial.Notify != "" {
		existing.Notify = partial.Notify
	}
	if partial.Verified != "" {
		existing.Verified = partial.Verified
	}
	if partial.Number != "" {
		existing.Number = partial.Number
	}
}

// MergeContacts applies MergeContact over a batch.
func (d *Directory) MergeContacts(batch []store.Contact) {
	for _, c := range batch {
		d.MergeContact(c)
	}
}

// Contact returns a copy of the record for a JID.
func (d *Directory) Contact(jid string) (store.Contact, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.contacts[jid]
	if !ok {
		return store.Contact{}, false
	}
	return *c, true
}

// ListContacts returns all individual (non-group) contacts projected to
// {id, name, number}, sorted by JID for stable output.
func (d *Directory) ListContacts() []store.ContactSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]store.ContactSummary, 0, len(d.contacts))
	for jid, c := range d.contacts {
		if transport.IsGroupJID(jid) {
			continue
		}
		out = append(out, store.ContactSummary{
			JID:    jid,
			Name:   c.DisplayName(),
			Number: c.Number,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JID < out[j].JID })
	return out
}

// ReplaceAllGroups swaps in the result of a full metadata fetch.
func (d *Directory) ReplaceAllGroups(list []store.Group) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.groups = make(map[string]*store.Group, len(list))
	for i := range list {
		g := list[i]
		d.groups[g.JID] = &g
	}
}

// MergeGroup upserts a single group's metadata, used when a name is
// resolved opportunistically during message parsing.
func (d *Directory) MergeGroup(g store.Group) {
	if g.JID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[g.JID] = &g
}

// GroupName looks up the cached display name for a group.
func (d *Directory) GroupName(jid string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[jid]
	if !ok || g.Name == "" {
		return "", false
	}
	return g.Name, true
}

// Groups returns all known groups sorted by JID.
func (d *Directory) Groups() []store.Group {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]store.Group, 0, len(d.groups))
	for _, g := range d.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JID < out[j].JID })
	return out
}
