package narrative

import "testing"

func TestSelfCheck(t *testing.T) {
	t.Parallel()

	if err := SelfCheck(); err != nil {
		t.Fatalf("selfcheck failed: %v", err)
	}
}
