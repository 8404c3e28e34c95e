package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("creating task: %w", Store("could not save task", cause))

	if got := KindOf(err); got != KindStore {
		t.Fatalf("expected KindStore, got %v", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to remain reachable")
	}
	if got := MessageOf(err); got != "could not save task" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("expected KindInternal, got %v", got)
	}
	if got := MessageOf(errors.New("boom")); got != "internal server error" {
		t.Fatalf("unexpected fallback message: %q", got)
	}
}

func TestIsKind(t *testing.T) {
	err := NotFound("no task found with this id")
	if !IsKind(err, KindNotFound) {
		t.Fatalf("expected KindNotFound match")
	}
	if IsKind(err, KindForbidden) {
		t.Fatalf("unexpected KindForbidden match")
	}
}
