package session

import (
	"errors"
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestCommandQueue_Submit(t *testing.T) {
	q := NewCommandQueue()
	q.Open(3, []string{"p1", "p2"})

	if err := q.Submit("p1", 3, "open the door"); err != nil {
		t.Fatalf("submitting: %v", err)
	}
	if err := q.Submit("p1", 2, "late"); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("expected ErrStaleTurn, got %v", err)
	}
	if err := q.Submit("ghost", 3, "boo"); !errors.Is(err, ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}
}

func TestCommandQueue_LastWriteWins(t *testing.T) {
	q := NewCommandQueue()
	q.Open(1, []string{"p1"})

	if err := q.Submit("p1", 1, "first"); err != nil {
		t.Fatalf("submitting: %v", err)
	}
	if err := q.Submit("p1", 1, "second"); err != nil {
		t.Fatalf("resubmitting: %v", err)
	}

	actions, idle := q.Close(map[string]string{"p1": "Alice"})
	testutil.AssertEqual(t, "action count", len(actions), 1)
	testutil.AssertEqual(t, "text", actions[0].Text, "second")
	testutil.AssertEqual(t, "idle count", len(idle), 0)
}

func TestCommandQueue_ReadyWhenAllSubmitted(t *testing.T) {
	q := NewCommandQueue()
	ready := q.Open(1, []string{"p1", "p2"})

	q.Submit("p1", 1, "a")
	select {
	case <-ready:
		t.Fatal("ready before all submitted")
	default:
	}

	q.Submit("p2", 1, "b")
	select {
	case <-ready:
	default:
		t.Fatal("expected ready after all submitted")
	}
}

func TestCommandQueue_DropCompletesWindow(t *testing.T) {
	q := NewCommandQueue()
	ready := q.Open(1, []string{"p1", "p2"})

	if err := q.Submit("p2", 1, "stay"); err != nil {
		t.Fatalf("submitting: %v", err)
	}
	q.Drop("p1")

	select {
	case <-ready:
	default:
		t.Fatal("expected ready after the only holdout dropped")
	}

	actions, idle := q.Close(map[string]string{"p2": "Bob"})
	testutil.AssertEqual(t, "action count", len(actions), 1)
	testutil.AssertEqual(t, "name", actions[0].Name, "Bob")
	testutil.AssertEqual(t, "idle count", len(idle), 0)
}

func TestCommandQueue_DropDiscardsSubmission(t *testing.T) {
	q := NewCommandQueue()
	q.Open(1, []string{"p1", "p2"})

	q.Submit("p1", 1, "doomed")
	q.Drop("p1")
	q.Submit("p2", 1, "kept")

	actions, _ := q.Close(map[string]string{"p1": "Alice", "p2": "Bob"})
	testutil.AssertEqual(t, "action count", len(actions), 1)
	testutil.AssertEqual(t, "name", actions[0].Name, "Bob")
}

func TestCommandQueue_CloseReportsIdle(t *testing.T) {
	q := NewCommandQueue()
	q.Open(1, []string{"p1", "p2", "p3"})

	q.Submit("p2", 1, "act")

	actions, idle := q.Close(map[string]string{"p1": "Alice", "p2": "Bob", "p3": "Carol"})
	testutil.AssertEqual(t, "action count", len(actions), 1)
	testutil.AssertEqual(t, "idle count", len(idle), 2)
	testutil.AssertEqual(t, "idle first", idle[0], "p1")
	testutil.AssertEqual(t, "idle second", idle[1], "p3")
}

func TestCommandQueue_ClosedRejectsSubmissions(t *testing.T) {
	q := NewCommandQueue()
	q.Open(1, []string{"p1"})
	q.Close(map[string]string{"p1": "Alice"})

	if err := q.Submit("p1", 1, "too late"); !errors.Is(err, ErrStaleTurn) {
		t.Fatalf("expected ErrStaleTurn after close, got %v", err)
	}
}
