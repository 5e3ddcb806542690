package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	commits []int64
	drained chan struct{}
	closed  bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	select {
	case r.drained <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits = append(r.commits, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

type memInbox struct {
	mu        sync.Mutex
	seen      map[string]bool
	forgotten []string
}

func (i *memInbox) Record(_ context.Context, id, _ string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.seen[id] {
		return false, nil
	}
	i.seen[id] = true
	return true, nil
}

func (i *memInbox) Forget(_ context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.seen, id)
	i.forgotten = append(i.forgotten, id)
	return nil
}

func msg(offset int64, eventID string) kafka.Message {
	return kafka.Message{
		Topic:   "booking.notification.requested.v1",
		Offset:  offset,
		Headers: []kafka.Header{{Key: "event_id", Value: []byte(eventID)}},
	}
}

func run(t *testing.T, r *fakeReader, in *memInbox, h Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewWithReader(r, logger, in, Config{MaxTries: 2, RetryInterval: time.Millisecond}, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	<-done
}

func TestConsumerSkipsDuplicates(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{msg(1, "e1"), msg(2, "e1"), msg(3, "e2")}, drained: make(chan struct{}, 1)}
	in := &memInbox{seen: map[string]bool{}}
	var handled []int64
	run(t, r, in, func(_ context.Context, m kafka.Message) error {
		handled = append(handled, m.Offset)
		return nil
	})

	if len(handled) != 2 || handled[0] != 1 || handled[1] != 3 {
		t.Fatalf("expected offsets 1 and 3 handled, got %v", handled)
	}
	if len(r.commits) != 3 {
		t.Fatalf("expected all offsets committed, got %v", r.commits)
	}
	if !r.closed {
		t.Fatal("expected reader closed on shutdown")
	}
}

func TestConsumerRetriesThenForgets(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{msg(7, "e9")}, drained: make(chan struct{}, 1)}
	in := &memInbox{seen: map[string]bool{}}
	calls := 0
	run(t, r, in, func(context.Context, kafka.Message) error {
		calls++
		return errors.New("smtp down")
	})

	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if len(in.forgotten) != 1 || in.forgotten[0] != "e9" {
		t.Fatalf("expected e9 forgotten, got %v", in.forgotten)
	}
	if len(r.commits) != 1 {
		t.Fatalf("expected offset committed after giving up, got %v", r.commits)
	}
}

func TestConsumerRecoversAfterTransientError(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{msg(1, "e1")}, drained: make(chan struct{}, 1)}
	in := &memInbox{seen: map[string]bool{}}
	calls := 0
	run(t, r, in, func(context.Context, kafka.Message) error {
		calls++
		if calls == 1 {
			return errors.New("timeout")
		}
		return nil
	})

	if calls != 2 {
		t.Fatalf("expected a retry, got %d calls", calls)
	}
	if len(in.forgotten) != 0 {
		t.Fatalf("expected nothing forgotten, got %v", in.forgotten)
	}
}
