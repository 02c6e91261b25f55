package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func okHandler(t *testing.T, wantUser uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserID(r)
		if !ok {
			t.Error("user id missing from context")
		}
		if id != wantUser {
			t.Errorf("unexpected user id: %s", id)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_ValidToken(t *testing.T) {
	userID := uuid.New()
	auth := NewAuth("secret")
	tok := signToken(t, "secret", jwt.MapClaims{
		"sub":   userID.String(),
		"email": "ada@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()

	auth.Authenticate(okHandler(t, userID)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", rec.Code, rec.Body.String())
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	userID := uuid.New()
	auth := NewAuth("secret")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", jwt.MapClaims{"sub": userID.String()})},
		{"expired", "Bearer " + signToken(t, "secret", jwt.MapClaims{
			"sub": userID.String(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"non-uuid subject", "Bearer " + signToken(t, "secret", jwt.MapClaims{"sub": "user-7"})},
		{"no subject", "Bearer " + signToken(t, "secret", jwt.MapClaims{"email": "x@example.com"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be reached")
			})).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

// captureLogs routes the default logger into a buffer for the duration of the
// test and returns the decoded records.
func captureLogs(t *testing.T, fn func()) []map[string]any {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	fn()

	var records []map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode log record: %v", err)
		}
		records = append(records, rec)
	}
	return records
}

func TestLogger_RecordsStatusAndBytes(t *testing.T) {
	records := captureLogs(t, func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/campaigns", nil)
		Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"abc"}`))
		})).ServeHTTP(rec, req)
	})

	if len(records) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(records))
	}
	entry := records[0]
	if entry["level"] != "INFO" {
		t.Errorf("expected INFO level, got %v", entry["level"])
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("unexpected status: %v", entry["status"])
	}
	if entry["bytes"] != float64(len(`{"id":"abc"}`)) {
		t.Errorf("unexpected bytes: %v", entry["bytes"])
	}
	if entry["path"] != "/api/campaigns" {
		t.Errorf("unexpected path: %v", entry["path"])
	}
}

func TestLogger_ServerErrorsLogAtErrorLevel(t *testing.T) {
	records := captureLogs(t, func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/scrape", nil)
		Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})).ServeHTTP(rec, req)
	})

	if len(records) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(records))
	}
	if records[0]["level"] != "ERROR" {
		t.Errorf("expected ERROR level for 500, got %v", records[0]["level"])
	}
}

func TestRecovery(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

// fakeCounters implements just enough of the queue interface for the rate
// limiter.
type fakeCounters struct {
	count int64
	err   error
}

func (f *fakeCounters) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.count++
	return f.count, nil
}

func TestRateLimit(t *testing.T) {
	counters := &fakeCounters{}
	rl := NewRateLimit(counters, 2)

	userID := uuid.New()
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(SetUserID(req.Context(), userID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(SetUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimit_FailsOpenOnCounterError(t *testing.T) {
	counters := &fakeCounters{err: errors.New("redis down")}
	rl := NewRateLimit(counters, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(SetUserID(req.Context(), uuid.New()))
	rec := httptest.NewRecorder()

	rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected fail-open 200, got %d", rec.Code)
	}
}
