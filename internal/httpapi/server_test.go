package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/nextlevelbuilder/chatclaw/internal/bot"
	"github.com/nextlevelbuilder/chatclaw/internal/bus"
	"github.com/nextlevelbuilder/chatclaw/internal/config"
	"github.com/nextlevelbuilder/chatclaw/internal/store"
	"github.com/nextlevelbuilder/chatclaw/internal/wechat"
)

type fakeBridge struct {
	groups  []wechat.Group
	sent    []string
	sendErr error
}

func (f *fakeBridge) ListGroups(_ context.Context) ([]wechat.Group, error) {
	return f.groups, nil
}

func (f *fakeBridge) SendTextTo(_ context.Context, group, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, group+"|"+text)
	return nil
}

type fakeTasks struct {
	store.TaskStore
	byID   map[int64]*store.ScheduledTask
	nextID int64
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{byID: map[int64]*store.ScheduledTask{}, nextID: 1}
}

func (f *fakeTasks) Create(_ context.Context, t *store.ScheduledTask) (int64, error) {
	id := f.nextID
	f.nextID++
	t.ID = id
	f.byID[id] = t
	return id, nil
}

func (f *fakeTasks) Get(_ context.Context, id int64) (*store.ScheduledTask, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("task %d not found", id)
	}
	return t, nil
}

func (f *fakeTasks) List(_ context.Context) ([]*store.ScheduledTask, error) {
	var out []*store.ScheduledTask
	for _, t := range f.byID {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTasks) Update(_ context.Context, t *store.ScheduledTask) error {
	f.byID[t.ID] = t
	return nil
}

func (f *fakeTasks) Delete(_ context.Context, id int64) error {
	delete(f.byID, id)
	return nil
}

type fakeSummaries struct {
	started []string
	err     error
	running bool
}

func (f *fakeSummaries) RunAsync(_ context.Context, date string) error {
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, date)
	return nil
}

func (f *fakeSummaries) Running() bool { return f.running }

func newTestServer(t *testing.T, bridge *fakeBridge, tasks store.TaskStore, summaries SummaryRunner) (*httptest.Server, *bus.Hub) {
	t.Helper()
	cfg := config.Default()
	cfg.Group.Name = "测试群"
	hub := bus.NewHub()
	s := NewServer(config.NewHolder(cfg), bridge, &bot.Gate{}, tasks, summaries, hub)
	srv := httptest.NewServer(s.BuildMux())
	t.Cleanup(srv.Close)
	return srv, hub
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBridge{}, nil, nil)
	out := getJSON(t, srv.URL+"/api/health", http.StatusOK)
	if out["status"] != "ok" || out["group"] != "测试群" {
		t.Errorf("health = %v", out)
	}
}

func TestGroups(t *testing.T) {
	bridge := &fakeBridge{groups: []wechat.Group{{Name: "群A", Active: true}, {Name: "群B"}}}
	srv, _ := newTestServer(t, bridge, nil, nil)

	out := getJSON(t, srv.URL+"/api/groups", http.StatusOK)
	groups, ok := out["groups"].([]any)
	if !ok || len(groups) != 2 {
		t.Fatalf("groups = %v", out)
	}
}

func TestSend(t *testing.T) {
	bridge := &fakeBridge{}
	srv, _ := newTestServer(t, bridge, nil, nil)

	resp := postJSON(t, srv.URL+"/api/send", sendRequest{Group: "群A", Message: "hello"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(bridge.sent) != 1 || bridge.sent[0] != "群A|hello" {
		t.Errorf("sent = %v", bridge.sent)
	}
}

func TestSendValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBridge{}, nil, nil)
	resp := postJSON(t, srv.URL+"/api/send", sendRequest{Group: "", Message: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

// blockingBridge parks inside SendTextTo until released, then records
// what the send context looked like at that point.
type blockingBridge struct {
	entered chan struct{}
	release chan struct{}
	ctxErr  error
}

func (b *blockingBridge) ListGroups(_ context.Context) ([]wechat.Group, error) {
	return nil, nil
}

func (b *blockingBridge) SendTextTo(ctx context.Context, _, _ string) error {
	close(b.entered)
	<-b.release
	b.ctxErr = ctx.Err()
	return b.ctxErr
}

func TestSendOutlivesClientDisconnect(t *testing.T) {
	bridge := &blockingBridge{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := NewServer(config.NewHolder(config.Default()), bridge, &bot.Gate{}, nil, nil, bus.NewHub())

	ctx, cancel := context.WithCancel(context.Background())
	body, _ := json.Marshal(sendRequest{Group: "群A", Message: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/send", bytes.NewReader(body)).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.handleSend(w, req)
		close(done)
	}()

	<-bridge.entered
	cancel() // client hangs up while the gated send is in flight
	close(bridge.release)
	<-done

	if bridge.ctxErr != nil {
		t.Fatalf("in-flight send saw cancellation: %v", bridge.ctxErr)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRateLimitPerClient(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.RateLimitRPM = 1 // burst of 5, negligible refill within the test
	s := NewServer(config.NewHolder(cfg), &fakeBridge{}, &bot.Gate{}, nil, nil, bus.NewHub())
	mux := s.BuildMux()

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w.Code
	}

	var last int
	for i := 0; i < 6; i++ {
		last = do("10.0.0.1:40001")
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("exhausted client status = %d, want 429", last)
	}
	// A different client is keyed separately and is unaffected.
	if code := do("10.0.0.2:40002"); code != http.StatusOK {
		t.Errorf("fresh client status = %d, want 200", code)
	}
	// Same host on a new port shares the key and stays limited.
	if code := do("10.0.0.1:40003"); code != http.StatusTooManyRequests {
		t.Errorf("same host new port status = %d, want 429", code)
	}
}

func TestSendFailure(t *testing.T) {
	bridge := &fakeBridge{sendErr: errors.New("ui gone")}
	srv, _ := newTestServer(t, bridge, nil, nil)
	resp := postJSON(t, srv.URL+"/api/send", sendRequest{Group: "g", Message: "m"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestTaskCRUD(t *testing.T) {
	tasks := newFakeTasks()
	srv, _ := newTestServer(t, &fakeBridge{}, tasks, nil)

	resp := postJSON(t, srv.URL+"/api/tasks", taskPayload{
		Name: "daily", CronExpr: "0 9 * * *", Message: "早", Targets: []string{"群A"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created taskPayload
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 || created.Enabled == nil || !*created.Enabled {
		t.Fatalf("created = %+v", created)
	}

	got := getJSON(t, fmt.Sprintf("%s/api/tasks/%d", srv.URL, created.ID), http.StatusOK)
	if got["name"] != "daily" {
		t.Errorf("get = %v", got)
	}

	list := getJSON(t, srv.URL+"/api/tasks", http.StatusOK)
	if items, _ := list["tasks"].([]any); len(items) != 1 {
		t.Errorf("list = %v", list)
	}

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/tasks/%d", srv.URL, created.ID), nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", delResp.StatusCode)
	}
	if len(tasks.byID) != 0 {
		t.Error("task not deleted")
	}
}

func TestTaskCreateRejectsBadCron(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBridge{}, newFakeTasks(), nil)
	resp := postJSON(t, srv.URL+"/api/tasks", taskPayload{
		Name: "bad", CronExpr: "whenever", Message: "m", Targets: []string{"g"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTasksUnconfigured(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBridge{}, nil, nil)
	resp, err := http.Get(srv.URL + "/api/tasks")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestSummaryTrigger(t *testing.T) {
	sum := &fakeSummaries{}
	srv, _ := newTestServer(t, &fakeBridge{}, nil, sum)

	resp := postJSON(t, srv.URL+"/api/summary", map[string]string{"date": "2026-08-25"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(sum.started) != 1 || sum.started[0] != "2026-08-25" {
		t.Errorf("started = %v", sum.started)
	}

	sum.err = errors.New("summary already running")
	resp = postJSON(t, srv.URL+"/api/summary", map[string]string{})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("busy status = %d, want 409", resp.StatusCode)
	}

	sum.running = true
	out := getJSON(t, srv.URL+"/api/summary/status", http.StatusOK)
	if out["running"] != true {
		t.Errorf("status = %v", out)
	}
}

func TestWebSocketFeed(t *testing.T) {
	srv, hub := newTestServer(t, &fakeBridge{}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[4:]+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Subscription happens inside the handler after the dial returns, so
	// keep broadcasting until the first frame arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				hub.Broadcast(bus.Event{Name: "trigger", Payload: map[string]string{"kind": "image"}})
			}
		}
	}()

	var frame struct {
		Event   string            `json:"event"`
		Payload map[string]string `json:"payload"`
	}
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Event != "trigger" || frame.Payload["kind"] != "image" {
		t.Fatalf("frame = %+v", frame)
	}
}
