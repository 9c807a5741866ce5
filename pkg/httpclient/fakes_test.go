package httpclient

import (
	"context"
	"sync"
)

// fakeTokenStore はテスト用のトークンストア。
type fakeTokenStore struct {
	mu          sync.Mutex
	token       string
	getErr      error
	removeErr   error
	removeCalls int
	getCalls    int
}

func (s *fakeTokenStore) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.token, nil
}

func (s *fakeTokenStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *fakeTokenStore) RemoveToken(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCalls++
	if s.removeErr != nil {
		return s.removeErr
	}
	s.token = ""
	return nil
}

func (s *fakeTokenStore) removed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeCalls
}

// fakeAlerts は表示されたアラートを記録する。
// autoDismissがtrueの場合は表示直後にOnCloseを呼ぶ。
type fakeAlerts struct {
	mu          sync.Mutex
	autoDismiss bool
	shown       []Alert
}

func (a *fakeAlerts) Show(alert Alert) {
	a.mu.Lock()
	a.shown = append(a.shown, alert)
	a.mu.Unlock()
	if a.autoDismiss && alert.OnClose != nil {
		alert.OnClose()
	}
}

func (a *fakeAlerts) all() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Alert(nil), a.shown...)
}

// fakeNavigator は遷移先を記録する。
type fakeNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *fakeNavigator) NavigateTo(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *fakeNavigator) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

// logEntry はfakeTelemetryが記録した1件のログ。
type logEntry struct {
	Level   string
	Message string
	Err     error
	Meta    map[string]any
}

// fakeTelemetry は送信されたログを記録する。
type fakeTelemetry struct {
	mu      sync.Mutex
	entries []logEntry
}

func (t *fakeTelemetry) Info(message string, meta map[string]any) {
	t.record(logEntry{Level: "info", Message: message, Meta: meta})
}

func (t *fakeTelemetry) Warn(message string, meta map[string]any) {
	t.record(logEntry{Level: "warn", Message: message, Meta: meta})
}

func (t *fakeTelemetry) Error(err error, meta map[string]any) {
	t.record(logEntry{Level: "error", Message: err.Error(), Err: err, Meta: meta})
}

func (t *fakeTelemetry) record(e logEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// byMessage は指定メッセージのログを返す。
func (t *fakeTelemetry) byMessage(message string) []logEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []logEntry
	for _, e := range t.entries {
		if e.Message == message {
			out = append(out, e)
		}
	}
	return out
}

// byLevel は指定レベルのログを返す。
func (t *fakeTelemetry) byLevel(level string) []logEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []logEntry
	for _, e := range t.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// collaborators はテストで使う協調者一式。
type collaborators struct {
	tokens    *fakeTokenStore
	alerts    *fakeAlerts
	navigator *fakeNavigator
	telemetry *fakeTelemetry
}

// newTestClient は協調者をすべてフェイクにしたクライアントを生成する。
func newTestClient(baseURL, token string, opts ...Option) (*Client, *collaborators) {
	co := &collaborators{
		tokens:    &fakeTokenStore{token: token},
		alerts:    &fakeAlerts{autoDismiss: true},
		navigator: &fakeNavigator{},
		telemetry: &fakeTelemetry{},
	}
	base := []Option{
		WithAlertSurface(co.alerts),
		WithNavigator(co.navigator),
		WithTelemetry(co.telemetry),
	}
	return New(baseURL, co.tokens, append(base, opts...)...), co
}
