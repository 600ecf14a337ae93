package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/expense-whatsapp/internal/auth"
)

type recordingProcessor struct {
	mu        sync.Mutex
	processed []string
	block     chan struct{}
	err       error
}

func (p *recordingProcessor) Process(ctx context.Context, waMessageID string) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	p.processed = append(p.processed, waMessageID)
	p.mu.Unlock()
	return p.err
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func TestQueueProcessesDispatchedMessages(t *testing.T) {
	proc := &recordingProcessor{}
	q := NewQueue(proc, 8, 2, zap.NewNop())

	for _, id := range []string{"wamid.a", "wamid.b", "wamid.c"} {
		if err := q.Dispatch(context.Background(), id); err != nil {
			t.Fatalf("Dispatch(%s): %v", id, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if proc.count() != 3 {
		t.Fatalf("processed %d messages, want 3", proc.count())
	}
}

func TestQueueProcessorErrorDoesNotStopConsumers(t *testing.T) {
	proc := &recordingProcessor{err: errors.New("transient")}
	q := NewQueue(proc, 8, 1, zap.NewNop())

	_ = q.Dispatch(context.Background(), "wamid.a")
	_ = q.Dispatch(context.Background(), "wamid.b")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if proc.count() != 2 {
		t.Fatalf("processed %d messages, want 2", proc.count())
	}
}

func TestQueueFullReturnsError(t *testing.T) {
	proc := &recordingProcessor{block: make(chan struct{})}
	q := NewQueue(proc, 1, 1, zap.NewNop())

	// First job occupies the single consumer, second fills the buffer. Give
	// the consumer a moment to pick up the first job.
	_ = q.Dispatch(context.Background(), "wamid.a")
	time.Sleep(20 * time.Millisecond)
	_ = q.Dispatch(context.Background(), "wamid.b")

	if err := q.Dispatch(context.Background(), "wamid.c"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Dispatch = %v, want ErrQueueFull", err)
	}

	close(proc.block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = q.Shutdown(ctx)
}

func TestQueueDispatchAfterShutdown(t *testing.T) {
	q := NewQueue(&recordingProcessor{}, 4, 1, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := q.Dispatch(context.Background(), "wamid.a"); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Dispatch = %v, want ErrQueueClosed", err)
	}
}

func TestQueueConcurrentDispatchAndShutdown(t *testing.T) {
	for i := 0; i < 100; i++ {
		q := NewQueue(&recordingProcessor{}, 4, 2, zap.NewNop())

		var wg sync.WaitGroup
		start := make(chan struct{})
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 10; j++ {
					// Must return ErrQueueClosed or ErrQueueFull once
					// shutdown begins, never panic on a closed channel.
					_ = q.Dispatch(context.Background(), "wamid.race")
				}
			}()
		}

		close(start)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := q.Shutdown(ctx); err != nil {
			cancel()
			t.Fatalf("Shutdown: %v", err)
		}
		cancel()
		wg.Wait()
	}
}

func TestHTTPTriggerPostsSignedRequest(t *testing.T) {
	tokens := auth.NewTokenManager("trigger-secret", time.Minute)

	received := make(chan *http.Request, 1)
	bodies := make(chan map[string]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- r
		bodies <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	trigger := NewHTTPTrigger(server.URL, tokens, zap.NewNop())
	if err := trigger.Dispatch(context.Background(), "wamid.42"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case req := <-received:
		if req.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", req.Method)
		}
		authz := req.Header.Get("Authorization")
		if len(authz) < 8 || authz[:7] != "Bearer " {
			t.Fatalf("missing bearer token: %q", authz)
		}
		claims, err := tokens.ParseServiceToken(authz[7:])
		if err != nil {
			t.Fatalf("trigger token invalid: %v", err)
		}
		if claims.WaMessageID != "wamid.42" {
			t.Fatalf("token scoped to %q, want wamid.42", claims.WaMessageID)
		}
		body := <-bodies
		if body["wa_message_id"] != "wamid.42" {
			t.Fatalf("unexpected body: %v", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trigger request never arrived")
	}
}
