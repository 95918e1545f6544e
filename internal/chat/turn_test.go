package chat

import (
	"context"
	"testing"
)

func TestTurn_BeginCancelsPrevious(t *testing.T) {
	var turn Turn
	first, releaseFirst := turn.Begin(context.Background())
	second, releaseSecond := turn.Begin(context.Background())
	defer releaseSecond()

	if first.Err() == nil {
		t.Error("beginning a new turn should cancel the previous one")
	}
	if second.Err() != nil {
		t.Error("the new turn should be live")
	}

	// A stale release must not free the slot held by the newer turn.
	releaseFirst()
	if !turn.Active() {
		t.Error("stale release cleared the active turn")
	}
}

func TestTurn_Cancel(t *testing.T) {
	var turn Turn
	if turn.Cancel() {
		t.Error("cancel with nothing running should report false")
	}

	ctx, release := turn.Begin(context.Background())
	if !turn.Cancel() {
		t.Error("cancel should report a running turn")
	}
	if ctx.Err() == nil {
		t.Error("context should be cancelled")
	}
	if turn.Active() {
		t.Error("no turn should be active after cancel")
	}
	release()
	if turn.Cancel() {
		t.Error("cancelling after completion is a no-op")
	}
}

func TestTurn_ReleaseFreesSlot(t *testing.T) {
	var turn Turn
	ctx, release := turn.Begin(context.Background())
	if !turn.Active() {
		t.Fatal("turn should be active")
	}
	release()
	if turn.Active() {
		t.Error("release should free the slot")
	}
	if ctx.Err() == nil {
		t.Error("release should cancel the turn context")
	}
}
