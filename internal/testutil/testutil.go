// Package testutil provides testing utilities and helpers.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// Eventually polls cond every tick until it returns true or timeout elapses.
func Eventually(t testing.TB, timeout, tick time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s: condition not met within %v", msg, timeout)
		}
		time.Sleep(tick)
	}
}

// AssertStatusCode checks if the response has the expected status code.
func AssertStatusCode(t testing.TB, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// DecodeJSON unmarshals a recorded response body into T.
func DecodeJSON[T any](t testing.TB, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse JSON response %q: %v", rr.Body.String(), err)
	}
	return out
}

// WithBearer sets an Authorization header on req.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
