package corpus

import "testing"

func TestPointID_StableAndPositive(t *testing.T) {
	t.Parallel()
	texts := []string{"", "What is a goroutine?", "Explain CAP theorem"}
	seen := map[int64]string{}
	for _, text := range texts {
		id := pointID(text)
		if id <= 0 {
			t.Errorf("pointID(%q) = %d, want positive", text, id)
		}
		if again := pointID(text); again != id {
			t.Errorf("pointID(%q) not stable: %d vs %d", text, id, again)
		}
		if prev, dup := seen[id]; dup {
			t.Errorf("pointID collision between %q and %q", prev, text)
		}
		seen[id] = text
	}
}
