package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/securecookie"
	"go.opentelemetry.io/otel"

	"PrettyChat/internal/backend"
	"PrettyChat/internal/cache"
	"PrettyChat/internal/chat"
	"PrettyChat/internal/session"
)

type stubBackend struct {
	reply string
	err   error
}

func (s *stubBackend) Generate(_ context.Context, _ string, _ []session.Turn) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestServer(t *testing.T, clients map[string]backend.Client, active string) (*httptest.Server, *http.Client) {
	t.Helper()

	registry, err := backend.NewRegistry(clients, active)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	svc := chat.NewService(
		session.NewMemoryStore(),
		registry,
		cache.New(),
		chat.Options{},
		otel.Tracer("test"),
		otel.Meter("test"),
	)

	handler, err := NewHandler(svc)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	codec := securecookie.New([]byte("test-secret-key"), nil)
	ts := httptest.NewServer(NewRouter(handler, codec))
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}

	return ts, &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, url string, payload any) (int, map[string]string) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Post(%s) error = %v", url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	return resp.StatusCode, decoded
}

func getPage(t *testing.T, client *http.Client, url string) string {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Get(%s) status = %d, want %d", url, resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading page: %v", err)
	}

	return string(body)
}

func TestRouter_IssuesSessionCookie(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, map[string]backend.Client{"mock": backend.NewMock()}, "mock")

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == "session" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a session cookie on the first response")
	}
}

func TestEnsureSession_TamperedCookieReplaced(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, map[string]backend.Client{"mock": backend.NewMock()}, "mock")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.AddCookie(&http.Cookie{Name: "session", Value: "not-a-signed-value"})

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var reissued bool
	for _, c := range resp.Cookies() {
		if c.Name == "session" && c.Value != "not-a-signed-value" && c.Value != "" {
			reissued = true
		}
	}
	if !reissued {
		t.Fatal("expected a fresh session cookie to replace the tampered one")
	}
}

func TestHandleSendMessage_RoundTrip(t *testing.T) {
	t.Parallel()

	ts, client := newTestServer(t, map[string]backend.Client{"mock": backend.NewMock()}, "mock")

	status, data := postJSON(t, client, ts.URL+"/send_message", map[string]string{"prompt": "hello"})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}
	if data["status"] != "ok" {
		t.Fatalf(`status field = %q, want "ok"`, data["status"])
	}
	if !strings.Contains(data["reply"], "[Mock] You said: hello") {
		t.Fatalf("reply = %q, want the mock echo", data["reply"])
	}

	page := getPage(t, client, ts.URL+"/")
	if !strings.Contains(page, "hello") {
		t.Fatal("expected the user prompt on the rendered page")
	}
	if !strings.Contains(page, "[Mock] You said: hello") {
		t.Fatal("expected the assistant reply on the rendered page")
	}
}

func TestHandleSendMessage_EmptyPrompt(t *testing.T) {
	t.Parallel()

	ts, client := newTestServer(t, map[string]backend.Client{"mock": backend.NewMock()}, "mock")

	status, data := postJSON(t, client, ts.URL+"/send_message", map[string]string{"prompt": "   \n\t "})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}
	if data["status"] != "empty" {
		t.Fatalf(`status field = %q, want "empty"`, data["status"])
	}

	page := getPage(t, client, ts.URL+"/")
	if strings.Contains(page, `<div class="message`) {
		t.Fatal("expected no messages after a whitespace-only prompt")
	}
}

func TestHandleSendMessage_BackendUnavailable(t *testing.T) {
	t.Parallel()

	failing := &stubBackend{err: fmt.Errorf("stub: %w: connection refused", backend.ErrUnavailable)}
	ts, client := newTestServer(t, map[string]backend.Client{"stub": failing}, "stub")

	status, data := postJSON(t, client, ts.URL+"/send_message", map[string]string{"prompt": "anyone there?"})
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", status, http.StatusServiceUnavailable)
	}
	if data["error"] == "" {
		t.Fatal("expected an error field in the response")
	}

	// The user turn stays in the transcript even though no reply arrived.
	page := getPage(t, client, ts.URL+"/")
	if !strings.Contains(page, "anyone there?") {
		t.Fatal("expected the user prompt to survive the backend failure")
	}
	if got := strings.Count(page, `<div class="message`); got != 1 {
		t.Fatalf("message count = %d, want 1", got)
	}
}

func TestHandleSendMessage_BackendError(t *testing.T) {
	t.Parallel()

	failing := &stubBackend{err: fmt.Errorf("stub: %w: status 500", backend.ErrBackend)}
	ts, client := newTestServer(t, map[string]backend.Client{"stub": failing}, "stub")

	status, data := postJSON(t, client, ts.URL+"/send_message", map[string]string{"prompt": "hi"})
	if status != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", status, http.StatusBadGateway)
	}
	if data["error"] == "" {
		t.Fatal("expected an error field in the response")
	}
}

func TestHandleSendMessage_MalformedBody(t *testing.T) {
	t.Parallel()

	ts, client := newTestServer(t, map[string]backend.Client{"mock": backend.NewMock()}, "mock")

	resp, err := client.Post(ts.URL+"/send_message", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleSetMode_SwitchesBackend(t *testing.T) {
	t.Parallel()

	clients := map[string]backend.Client{
		"mock": backend.NewMock(),
		"stub": &stubBackend{reply: "stub says hi"},
	}
	ts, client := newTestServer(t, clients, "mock")

	status, data := postJSON(t, client, ts.URL+"/set_mode", map[string]string{"mode": "stub"})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}
	if data["mode"] != "stub" {
		t.Fatalf(`mode = %q, want "stub"`, data["mode"])
	}

	_, reply := postJSON(t, client, ts.URL+"/send_message", map[string]string{"prompt": "hello"})
	if reply["reply"] != "stub says hi" {
		t.Fatalf("reply = %q, want the stub backend to answer", reply["reply"])
	}
}

func TestHandleSetMode_UnknownModeIgnored(t *testing.T) {
	t.Parallel()

	ts, client := newTestServer(t, map[string]backend.Client{"mock": backend.NewMock()}, "mock")

	status, data := postJSON(t, client, ts.URL+"/set_mode", map[string]string{"mode": "quantum"})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}
	if data["status"] != "ok" {
		t.Fatalf(`status field = %q, want "ok"`, data["status"])
	}
	if data["mode"] != "mock" {
		t.Fatalf(`mode = %q, want the active mode "mock"`, data["mode"])
	}
}

func TestHandleClearChat(t *testing.T) {
	t.Parallel()

	ts, client := newTestServer(t, map[string]backend.Client{"mock": backend.NewMock()}, "mock")

	postJSON(t, client, ts.URL+"/send_message", map[string]string{"prompt": "remember me"})

	status, data := postJSON(t, client, ts.URL+"/clear_chat", map[string]string{})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}
	if data["status"] != "cleared" {
		t.Fatalf(`status field = %q, want "cleared"`, data["status"])
	}

	page := getPage(t, client, ts.URL+"/")
	if strings.Contains(page, "remember me") {
		t.Fatal("expected the transcript to be empty after clearing")
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	ts, client := newTestServer(t, map[string]backend.Client{"mock": backend.NewMock()}, "mock")

	resp, err := client.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var data map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if data["status"] != "ok" {
		t.Fatalf(`status field = %q, want "ok"`, data["status"])
	}
}

func TestStaticAssetsServed(t *testing.T) {
	t.Parallel()

	ts, client := newTestServer(t, map[string]backend.Client{"mock": backend.NewMock()}, "mock")

	resp, err := client.Get(ts.URL + "/static/style.css")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/css") {
		t.Fatalf("Content-Type = %q, want text/css", ct)
	}
}

func TestSessions_IsolatedByCookie(t *testing.T) {
	t.Parallel()

	ts, alice := newTestServer(t, map[string]backend.Client{"mock": backend.NewMock()}, "mock")

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	bob := &http.Client{Jar: jar}

	postJSON(t, alice, ts.URL+"/send_message", map[string]string{"prompt": "alice secret"})

	page := getPage(t, bob, ts.URL+"/")
	if strings.Contains(page, "alice secret") {
		t.Fatal("expected bob's transcript to be empty")
	}
}
