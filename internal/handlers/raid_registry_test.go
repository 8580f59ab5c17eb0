package handlers

import "testing"

func TestRaidRegistryMembershipAndLocalPlayer(t *testing.T) {
	r := NewRaidRegistry()
	r.SetLocalPlayer(1)
	r.NoteMember(1, "Me", 10)
	r.NoteMember(2, "Tank", 11)
	r.NoteMember(3, "Healer", 12)

	if !r.IsLocalPlayer(1) || r.IsLocalPlayer(2) {
		t.Fatal("IsLocalPlayer mismatch")
	}
	if !r.IsMember(2) || r.IsMember(99) {
		t.Fatal("IsMember mismatch")
	}
	if r.Name(3) != "Healer" {
		t.Fatalf("Name(3) = %q, want Healer", r.Name(3))
	}
	if got := r.Members(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Members() = %v, want sorted [1 2 3]", got)
	}

	r.Forget(2)
	if r.IsMember(2) {
		t.Fatal("expected Forget to remove membership")
	}
	if len(r.Members()) != 2 {
		t.Fatalf("expected 2 members after Forget, got %d", len(r.Members()))
	}
}

func TestRaidRegistryUnknownLocalPlayerMatchesNothing(t *testing.T) {
	r := NewRaidRegistry()
	r.NoteMember(5, "Stray", 1)
	if r.IsLocalPlayer(0) {
		t.Fatal("a zero logID must never satisfy IsLocalPlayer before SetLocalPlayer is called")
	}
}
