package watcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/consul-client/pkg/httpclient"
	"github.com/samvad-hq/consul-client/pkg/publishers"
	"github.com/samvad-hq/consul-client/pkg/transport"
	"github.com/samvad-hq/consul-client/pkg/watches"
)

// fakePublisher records published events and can inject errors.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
	notify chan publishers.Event
}

func (f *fakePublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.events = append(f.events, evt)
	if f.notify != nil {
		select {
		case f.notify <- evt:
		default:
		}
	}
	return 1, nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeStore keeps checkpoints in memory.
type fakeStore struct {
	mu      sync.Mutex
	indexes map[string]uint64
}

func (f *fakeStore) LastIndex(id string) (uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.indexes[id]
	return idx, ok, nil
}

func (f *fakeStore) SaveIndex(id string, idx uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexes == nil {
		f.indexes = make(map[string]uint64)
	}
	f.indexes[id] = idx
	return nil
}

// agentStub answers every call with the configured index and body.
type agentStub struct {
	mu       sync.Mutex
	index    string
	status   int
	body     string
	lastURL  string
	lastHdrs http.Header
}

func (a *agentStub) set(index string, status int, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.index, a.status, a.body = index, status, body
}

func (a *agentStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.lastURL = r.URL.String()
	a.lastHdrs = r.Header.Clone()
	index, status, body := a.index, a.status, a.body
	a.mu.Unlock()

	if index != "" {
		w.Header().Set(transport.HeaderIndex, index)
	}
	w.Header().Set(transport.HeaderKnownLeader, "true")
	w.Header().Set(transport.HeaderLastContact, "3")
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newService(t *testing.T, addr string, pub EventPublisher, store IndexStore) *Service {
	t.Helper()
	tr, err := transport.New(httpclient.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	return NewService(tr, Options{Address: addr, Wait: time.Second, Retry: 10 * time.Millisecond}, pub, store, nil)
}

func TestPollPublishesOnIndexChange(t *testing.T) {
	agent := &agentStub{}
	agent.set("10", http.StatusOK, `[{"Key":"app/config"}]`)
	srv := httptest.NewServer(agent)
	defer srv.Close()

	pub := &fakePublisher{}
	store := &fakeStore{}
	svc := newService(t, srv.URL, pub, store)
	w := watches.Watch{ID: "kv", Name: "app config", Path: "/v1/kv/app?recurse", Token: "secret"}

	next, err := svc.Poll(context.Background(), w, 0)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if next != 10 {
		t.Fatalf("next index = %d", next)
	}
	if pub.count() != 1 {
		t.Fatalf("expected 1 event, got %d", pub.count())
	}
	evt := pub.events[0]
	if evt.WatchID != "kv" || evt.Index != 10 || string(evt.Payload) != `[{"Key":"app/config"}]` {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.KnownLeader == nil || !*evt.KnownLeader || evt.LastContactMs == nil || *evt.LastContactMs != 3 {
		t.Fatalf("metadata not carried into event %+v", evt)
	}
	if idx, _, _ := store.LastIndex("kv"); idx != 10 {
		t.Fatalf("checkpoint = %d", idx)
	}
	if agent.lastHdrs.Get("X-Consul-Token") != "secret" {
		t.Fatalf("token header not sent")
	}
	if agent.lastURL != "/v1/kv/app?recurse&wait=1s" {
		t.Fatalf("first query url = %q", agent.lastURL)
	}

	// Same index again: nothing to publish.
	next, err = svc.Poll(context.Background(), w, next)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if next != 10 || pub.count() != 1 {
		t.Fatalf("unchanged index must not publish, next=%d events=%d", next, pub.count())
	}
	if agent.lastURL != "/v1/kv/app?recurse&index=10&wait=1s" {
		t.Fatalf("blocking query url = %q", agent.lastURL)
	}
}

func TestPollResetsWhenIndexGoesBackwards(t *testing.T) {
	agent := &agentStub{}
	agent.set("4", http.StatusOK, `[]`)
	srv := httptest.NewServer(agent)
	defer srv.Close()

	pub := &fakePublisher{}
	svc := newService(t, srv.URL, pub, &fakeStore{})

	next, err := svc.Poll(context.Background(), watches.Watch{ID: "nodes", Path: "/v1/catalog/nodes"}, 10)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if next != 0 {
		t.Fatalf("expected reset to 0, got %d", next)
	}
	if pub.count() != 1 {
		t.Fatalf("reset should publish, got %d events", pub.count())
	}
}

func TestPollReportsProtocolFailure(t *testing.T) {
	agent := &agentStub{}
	agent.set("", http.StatusForbidden, "Permission denied")
	srv := httptest.NewServer(agent)
	defer srv.Close()

	pub := &fakePublisher{}
	svc := newService(t, srv.URL, pub, &fakeStore{})

	next, err := svc.Poll(context.Background(), watches.Watch{ID: "kv", Path: "/v1/kv/a"}, 7)
	var opErr *transport.OperationError
	if !errors.As(err, &opErr) || opErr.StatusCode != http.StatusForbidden || opErr.Body != "Permission denied" {
		t.Fatalf("expected operation error, got %v", err)
	}
	if next != 7 || pub.count() != 0 {
		t.Fatalf("failure must keep index and not publish, next=%d events=%d", next, pub.count())
	}
}

func TestPollRequiresIndexHeader(t *testing.T) {
	agent := &agentStub{}
	agent.set("", http.StatusOK, `"10.0.0.1:8300"`)
	srv := httptest.NewServer(agent)
	defer srv.Close()

	svc := newService(t, srv.URL, &fakePublisher{}, &fakeStore{})
	_, err := svc.Poll(context.Background(), watches.Watch{ID: "leader", Path: "/v1/status/leader"}, 0)
	if !errors.Is(err, ErrNoIndex) {
		t.Fatalf("expected ErrNoIndex, got %v", err)
	}
}

func TestPollDoesNotCheckpointUndeliveredEvent(t *testing.T) {
	agent := &agentStub{}
	agent.set("20", http.StatusOK, `{}`)
	srv := httptest.NewServer(agent)
	defer srv.Close()

	store := &fakeStore{}
	svc := newService(t, srv.URL, &fakePublisher{err: errors.New("sink down")}, store)

	next, err := svc.Poll(context.Background(), watches.Watch{ID: "kv", Path: "/v1/kv/a"}, 5)
	if err == nil {
		t.Fatalf("expected publish error")
	}
	if next != 5 {
		t.Fatalf("expected index to stay at 5, got %d", next)
	}
	if _, found, _ := store.LastIndex("kv"); found {
		t.Fatalf("undelivered event must not be checkpointed")
	}
}

func TestRunFollowsIndexUntilCancelled(t *testing.T) {
	var (
		mu    sync.Mutex
		index = 1
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		index++
		current := index
		mu.Unlock()
		w.Header().Set(transport.HeaderIndex, strconv.Itoa(current))
		_, _ = io.WriteString(w, strconv.Itoa(current))
	}))
	defer srv.Close()

	pub := &fakePublisher{notify: make(chan publishers.Event, 16)}
	store := &fakeStore{}
	_ = store.SaveIndex("kv", 1)
	svc := newService(t, srv.URL, pub, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx, []watches.Watch{{ID: "kv", Path: "/v1/kv/a"}})
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-pub.notify:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}

	if idx, _, _ := store.LastIndex("kv"); idx < 4 {
		t.Fatalf("checkpoint did not advance, got %d", idx)
	}
}

func TestRunRejectsEmptyWatchList(t *testing.T) {
	svc := newService(t, "http://127.0.0.1:1", nil, nil)
	if err := svc.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error when no watches are configured")
	}
}

func TestNextIndex(t *testing.T) {
	cases := []struct {
		last, current, want uint64
		changed             bool
	}{
		{last: 0, current: 5, want: 5, changed: true},
		{last: 5, current: 5, want: 5, changed: false},
		{last: 5, current: 9, want: 9, changed: true},
		{last: 9, current: 3, want: 0, changed: true},
		{last: 0, current: 0, want: 1, changed: true},
		{last: 1, current: 0, want: 1, changed: false},
		{last: 7, current: 0, want: 0, changed: true},
	}
	for _, tc := range cases {
		got, changed := nextIndex(tc.last, tc.current)
		if got != tc.want || changed != tc.changed {
			t.Fatalf("nextIndex(%d, %d) = (%d, %v), want (%d, %v)", tc.last, tc.current, got, changed, tc.want, tc.changed)
		}
	}
}

func TestPollFallsBackToServiceToken(t *testing.T) {
	agent := &agentStub{}
	agent.set("4", http.StatusOK, `{}`)
	srv := httptest.NewServer(agent)
	defer srv.Close()

	tr, err := transport.New(httpclient.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	svc := NewService(tr, Options{Address: srv.URL, Token: "agent-default", Wait: time.Second}, &fakePublisher{}, &fakeStore{}, nil)

	if _, err := svc.Poll(context.Background(), watches.Watch{ID: "svc", Path: "/v1/catalog/services"}, 0); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := agent.lastHdrs.Get("X-Consul-Token"); got != "agent-default" {
		t.Fatalf("token = %q", got)
	}
}

func TestPollTreatsZeroIndexAsOne(t *testing.T) {
	agent := &agentStub{}
	agent.set("0", http.StatusOK, `[]`)
	srv := httptest.NewServer(agent)
	defer srv.Close()

	pub := &fakePublisher{}
	svc := newService(t, srv.URL, pub, &fakeStore{})
	w := watches.Watch{ID: "kv", Path: "/v1/kv/x"}

	next, err := svc.Poll(context.Background(), w, 0)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if next != 1 || pub.count() != 1 {
		t.Fatalf("first poll: next=%d events=%d", next, pub.count())
	}

	next, err = svc.Poll(context.Background(), w, next)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if next != 1 || pub.count() != 1 {
		t.Fatalf("second poll: next=%d events=%d", next, pub.count())
	}
	if agent.lastURL != "/v1/kv/x?index=1&wait=1s" {
		t.Fatalf("query after a zero index must block on index 1, got %q", agent.lastURL)
	}
}

func TestRunPacesAgentReportingZeroIndex(t *testing.T) {
	var (
		mu       sync.Mutex
		requests int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.Header().Set(transport.HeaderIndex, "0")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	tr, err := transport.New(httpclient.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("transport.New: %v", err)
	}
	svc := NewService(tr, Options{Address: srv.URL, Wait: time.Second, Retry: 50 * time.Millisecond}, &fakePublisher{}, &fakeStore{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := svc.Run(ctx, []watches.Watch{{ID: "kv", Path: "/v1/kv/x"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if requests == 0 || requests > 10 {
		t.Fatalf("expected a paced loop, agent saw %d requests in 300ms", requests)
	}
}
