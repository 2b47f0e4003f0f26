package directory

import (
	"testing"

	"github.com/wagate/wagate/internal/store"
)

func TestMergeContactUpserts(t *testing.T) {
	d := New()

	d.MergeContact(store.Contact{JID: "5511999999999@s.whatsapp.net", Notify: "Ali"})
	d.MergeContact(store.Contact{JID: "5511999999999@s.whatsapp.net", Name: "Alice"})

	c, ok := d.Contact("5511999999999@s.whatsapp.net")
	if !ok {
		t.Fatal("contact missing")
	}
	if c.Name != "Alice" || c.Notify != "Ali" {
		t.Errorf("merge lost fields: %+v", c)
	}
	if c.Number != "5511999999999" {
		t.Errorf("Number = %q, want derived number", c.Number)
	}
}

func TestMergeContactEmptyFieldsDoNotClobber(t *testing.T) {
	d := New()
	d.MergeContact(store.Contact{JID: "a@s.whatsapp.net", Name: "Anna", Verified: "Anna Inc"})
	d.MergeContact(store.Contact{JID: "a@s.whatsapp.net", Notify: "An"})

	c, _ := d.Contact("a@s.whatsapp.net")
	if c.Name != "Anna" || c.Verified != "Anna Inc" || c.Notify != "An" {
		t.Errorf("unexpected merge result: %+v", c)
	}
}

func TestListContactsExcludesGroupsAndResolvesNames(t *testing.T) {
	d := New()
	d.MergeContact(store.Contact{JID: "1@s.whatsapp.net", Name: "Named"})
	d.MergeContact(store.Contact{JID: "2@s.whatsapp.net", Notify: "Pushed"})
	d.MergeContact(store.Contact{JID: "3@s.whatsapp.net"})
	d.MergeContact(store.Contact{JID: "120363000@g.us", Name: "A Group"})

	got := d.ListContacts()
	if len(got) != 3 {
		t.Fatalf("got %d contacts, want 3", len(got))
	}
	want := map[string]string{
		"1@s.whatsapp.net": "Named",
		"2@s.whatsapp.net": "Pushed",
		"3@s.whatsapp.net": "3",
	}
	for _, c := range got {
		if c.Name != want[c.JID] {
			t.Errorf("%s: name = %q, want %q", c.JID, c.Name, want[c.JID])
		}
	}
}

func TestReplaceAllGroups(t *testing.T) {
	d := New()
	d.MergeGroup(store.Group{JID: "old@g.us", Name: "Old"})

	d.ReplaceAllGroups([]store.Group{
		{JID: "a@g.us", Name: "Alpha"},
		{JID: "b@g.us", Name: "Beta"},
	})

	if _, ok := d.GroupName("old@g.us"); ok {
		t.Error("wholesale replace kept stale group")
	}
	if name, ok := d.GroupName("a@g.us"); !ok || name != "Alpha" {
		t.Errorf("GroupName(a) = %q, %v", name, ok)
	}
	if len(d.Groups()) != 2 {
		t.Errorf("got %d groups, want 2", len(d.Groups()))
	}
}

func TestMergeGroupOpportunistic(t *testing.T) {
	d := New()
	d.ReplaceAllGroups(nil)
	d.MergeGroup(store.Group{JID: "g@g.us", Name: "Lazy"})

	if name, ok := d.GroupName("g@g.us"); !ok || name != "Lazy" {
		t.Errorf("GroupName = %q, %v", name, ok)
	}
}
