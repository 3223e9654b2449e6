package attribution

import (
	"os"
	"testing"
)

func TestDetectOperatorFromAtticOperator(t *testing.T) {
	t.Setenv("ATTIC_OPERATOR", "nightly-bot")
	got := detectOperatorUncached()
	if got != "nightly-bot" {
		t.Errorf("expected nightly-bot, got %s", got)
	}
}

func TestDetectOperatorFromAtticUser(t *testing.T) {
	_ = os.Unsetenv("ATTIC_OPERATOR")
	t.Setenv("ATTIC_USER", "alice")
	got := detectOperatorUncached()
	if got != "alice" {
		t.Errorf("expected alice, got %s", got)
	}
}

func TestDetectOperatorFallback(t *testing.T) {
	_ = os.Unsetenv("ATTIC_OPERATOR")
	_ = os.Unsetenv("ATTIC_USER")
	got := detectOperatorUncached()
	// Either a real git name or "unknown", never empty
	if got == "" {
		t.Error("expected non-empty result")
	}
}
