package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/nearby/internal/handlers"
	"github.com/HammerMeetNail/nearby/internal/logging"
	"github.com/HammerMeetNail/nearby/internal/models"
)

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", line, err)
	}
	return entry
}

func TestRequestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRequestLogger(logging.New().SetOutput(&buf))

	userID := uuid.New()
	handler := rl.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/nearby?radius=500&token=secret", nil)
	req = req.WithContext(handlers.SetIdentityInContext(req.Context(), &models.Identity{UserID: userID}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if strings.Contains(buf.String(), "secret") {
		t.Fatalf("token leaked into log: %s", buf.String())
	}
	entry := decodeLogLine(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("expected WARN level, got %v", entry["level"])
	}
	fields, ok := entry["fields"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected fields in %v", entry)
	}
	if fields["user_id"] != userID.String() || fields["radius"] != "500" {
		t.Errorf("unexpected fields %v", fields)
	}
	if fields["status"] != float64(http.StatusNotFound) || fields["size"] != float64(len("missing")) {
		t.Errorf("unexpected status/size %v", fields)
	}
}

func TestRequestLogger_AllowsWebsocketUpgrade(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRequestLogger(logging.New().SetOutput(&buf))
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(rl.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade through logger failed: %v", err)
			return
		}
		conn.Close()
	})))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
}
