package notifications

import (
	"testing"
)

func TestPublishDeliversInOrder(t *testing.T) {
	hub := NewHub()
	_, ch, cancel := hub.Subscribe("run-1")
	defer cancel()

	hub.Publish(Event{RunID: "run-1", Type: EventRunStarted})
	hub.Publish(Event{RunID: "run-1", Type: EventStage, Stage: "fetching"})
	hub.Publish(Event{RunID: "run-1", Type: EventRunComplete})

	var got []Event
	for i := 0; i < 3; i++ {
		got = append(got, <-ch)
	}
	if got[0].Type != EventRunStarted || got[1].Stage != "fetching" || got[2].Type != EventRunComplete {
		t.Errorf("events out of order: %+v", got)
	}
	if got[0].Seq >= got[1].Seq || got[1].Seq >= got[2].Seq {
		t.Errorf("sequence numbers not increasing: %d %d %d", got[0].Seq, got[1].Seq, got[2].Seq)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("timestamp should be stamped on publish")
	}
}

func TestSubscribeFiltersByRun(t *testing.T) {
	hub := NewHub()
	_, ch, cancel := hub.Subscribe("run-a")
	defer cancel()

	hub.Publish(Event{RunID: "run-b", Type: EventRunStarted})
	hub.Publish(Event{RunID: "run-a", Type: EventRunStarted})

	event := <-ch
	if event.RunID != "run-a" {
		t.Errorf("received event for wrong run: %+v", event)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra event: %+v", extra)
	default:
	}
}

func TestLateSubscriberReplaysBacklog(t *testing.T) {
	hub := NewHub()
	hub.Publish(Event{RunID: "run-1", Type: EventRunStarted})
	hub.Publish(Event{RunID: "run-1", Type: EventStage, Stage: "combining"})

	replay, _, cancel := hub.Subscribe("run-1")
	defer cancel()

	if len(replay) != 2 {
		t.Fatalf("replay = %d events, want 2", len(replay))
	}
	if replay[0].Type != EventRunStarted || replay[1].Stage != "combining" {
		t.Errorf("replay out of order: %+v", replay)
	}
}

func TestWildcardSubscriberSeesAllRuns(t *testing.T) {
	hub := NewHub()
	_, ch, cancel := hub.Subscribe("")
	defer cancel()

	hub.Publish(Event{RunID: "run-a", Type: EventRunStarted})
	hub.Publish(Event{RunID: "run-b", Type: EventRunStarted})

	first := <-ch
	second := <-ch
	if first.RunID != "run-a" || second.RunID != "run-b" {
		t.Errorf("wildcard delivery wrong: %+v, %+v", first, second)
	}
}

func TestTerminal(t *testing.T) {
	if !(Event{Type: EventRunComplete}).Terminal() || !(Event{Type: EventRunFailed}).Terminal() {
		t.Error("complete and failed must be terminal")
	}
	if (Event{Type: EventStage}).Terminal() {
		t.Error("stage events are not terminal")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	hub := NewHub()
	_, _, cancel := hub.Subscribe("run-1")
	cancel()
	cancel()
	// Publishing after cancel must not panic on the closed channel.
	hub.Publish(Event{RunID: "run-1", Type: EventRunStarted})
}
