package bus

import "testing"

func TestPublishExecution_FanOutInOrder(t *testing.T) {
	b := New()
	var order []int
	b.SubscribeExecution(func(ev ExecutionEvent) { order = append(order, 1) })
	b.SubscribeExecution(func(ev ExecutionEvent) { order = append(order, 2) })

	b.PublishExecution(ExecutionEvent{ExecutionID: "e1"})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("dispatch order = %v", order)
	}
}

func TestPublish_StampsTimestamp(t *testing.T) {
	b := New()
	var got TranscriptEvent
	b.SubscribeTranscript(func(ev TranscriptEvent) { got = ev })

	b.PublishTranscript(TranscriptEvent{Role: "user", Content: "hi"})
	if got.Timestamp.IsZero() {
		t.Fatalf("published event has zero timestamp")
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	b := New()
	// Must not panic or block.
	b.PublishExecution(ExecutionEvent{ExecutionID: "e1"})
	b.PublishTranscript(TranscriptEvent{Content: "x"})
}
