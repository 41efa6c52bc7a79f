package planets

import "testing"

func TestSeedReturnsDetachedCopy(t *testing.T) {
	first := Seed()
	second := Seed()
	if len(first) == 0 {
		t.Fatal("seed list is empty")
	}

	first[0].ID = "tampered"
	if second[0].ID == "tampered" {
		t.Fatal("mutating one copy leaked into another")
	}
}

func TestSeedEntriesAreComplete(t *testing.T) {
	ids := make(map[string]bool)
	for _, stub := range Seed() {
		if stub.ID == "" || stub.Type == "" || stub.Size <= 0 {
			t.Fatalf("incomplete stub: %+v", stub)
		}
		if ids[stub.ID] {
			t.Fatalf("duplicate stub id %q", stub.ID)
		}
		ids[stub.ID] = true
	}
}
