package bridge

import (
	"sync"
	"testing"
)

func TestQueuePreservesOrder(t *testing.T) {
	b := New()
	main, render := b.Main(), b.Render()

	main.Send(RefreshList{})
	main.Send(Connect{ID: "A"})
	main.Send(Disconnect{ID: "A"})

	got := render.Commands()
	if len(got) != 3 {
		t.Fatalf("Commands() returned %d, want 3", len(got))
	}
	if _, ok := got[0].(RefreshList); !ok {
		t.Errorf("got[0] = %T, want RefreshList", got[0])
	}
	if c, ok := got[1].(Connect); !ok || c.ID != "A" {
		t.Errorf("got[1] = %#v, want Connect{A}", got[1])
	}
	if c, ok := got[2].(Disconnect); !ok || c.ID != "A" {
		t.Errorf("got[2] = %#v, want Disconnect{A}", got[2])
	}

	if again := render.Commands(); len(again) != 0 {
		t.Errorf("second drain returned %d commands, want 0", len(again))
	}
}

func TestEventsAtMostOnce(t *testing.T) {
	b := New()
	b.Render().Emit(Connected{ID: "A"})

	if got := b.Main().Events(); len(got) != 1 {
		t.Fatalf("Events() returned %d, want 1", len(got))
	}
	if got := b.Main().Events(); len(got) != 0 {
		t.Fatalf("Events() redelivered %d events", len(got))
	}
}

func TestQueueConcurrentSendersKeepPerSenderOrder(t *testing.T) {
	var q Queue[int]
	const senders, perSender = 8, 500

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				q.Send(s*perSender + i)
			}
		}(s)
	}

	var got []int
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
		}
		got = append(got, q.Drain()...)
	}

	if len(got) != senders*perSender {
		t.Fatalf("drained %d items, want %d", len(got), senders*perSender)
	}
	last := make(map[int]int)
	for _, v := range got {
		s := v / perSender
		if prev, ok := last[s]; ok && v <= prev {
			t.Fatalf("sender %d out of order: %d after %d", s, v, prev)
		}
		last[s] = v
	}
}
