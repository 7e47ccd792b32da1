package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"community-backend/internal/middleware"
	"community-backend/internal/services"
	"community-backend/internal/session"

	"github.com/go-chi/chi/v5"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind services.Kind
		want int
	}{
		{services.KindNotFound, http.StatusNotFound},
		{services.KindForbidden, http.StatusForbidden},
		{services.KindInvalidState, http.StatusConflict},
		{services.KindConflict, http.StatusConflict},
		{services.KindValidation, http.StatusBadRequest},
		{services.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := statusFor(tt.kind); got != tt.want {
				t.Fatalf("statusFor(%v) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func newSessionRequest(t *testing.T, store session.Store) (*http.Request, string) {
	t.Helper()
	sid, err := session.Start(context.Background(), store, 5)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	return req.WithContext(middleware.WithIdentity(req.Context(), 5, sid)), sid
}

func TestFailServiceErrorSetsFlash(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	f := flasher{sessions: store}
	req, sid := newSessionRequest(t, store)

	rec := httptest.NewRecorder()
	f.fail(rec, req, services.ErrDuplicatePending, "send connection request")

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != services.ErrDuplicatePending.Message {
		t.Fatalf("error = %q", body.Error)
	}

	flash, err := session.PopFlash(context.Background(), store, sid)
	if err != nil {
		t.Fatalf("pop flash: %v", err)
	}
	if flash != services.ErrDuplicatePending.Message {
		t.Fatalf("flash = %q", flash)
	}
}

func TestFailUnexpectedErrorIsInternal(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	f := flasher{sessions: store}
	req, _ := newSessionRequest(t, store)

	rec := httptest.NewRecorder()
	f.fail(rec, req, errors.New("connection reset"), "load feed")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Fatal("internal error details leaked to client")
	}
}

func TestOkSetsFlash(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	f := flasher{sessions: store}
	req, sid := newSessionRequest(t, store)

	rec := httptest.NewRecorder()
	f.ok(rec, req, http.StatusCreated, "Post published.", map[string]int{"id": 1})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	flash, _ := session.PopFlash(context.Background(), store, sid)
	if flash != "Post published." {
		t.Fatalf("flash = %q", flash)
	}
	if again, _ := session.PopFlash(context.Background(), store, sid); again != "" {
		t.Fatalf("flash shown twice: %q", again)
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		param string
		want  int64
		ok    bool
	}{
		{"42", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.param)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			got, ok := pathID(req, "id")
			if got != tt.want || ok != tt.ok {
				t.Fatalf("pathID(%q) = %d, %v", tt.param, got, ok)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var req contentRequest
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"hello"}`))
	if !decodeJSON(rec, r, &req) || req.Content != "hello" {
		t.Fatalf("decode failed: %+v", req)
	}

	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`))
	if decodeJSON(rec, r, &req) {
		t.Fatal("malformed body accepted")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestParseFormMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("text", "hi there")
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("attachment"))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	if !parseForm(rec, r, 1024) {
		t.Fatalf("parseForm rejected request: %d %s", rec.Code, rec.Body.String())
	}
	if r.FormValue("text") != "hi there" {
		t.Fatalf("text = %q", r.FormValue("text"))
	}
	file, name := formFile(r, "file")
	if file == nil || name != "notes.txt" {
		t.Fatalf("file = %v, name = %q", file, name)
	}
	file.Close()

	if missing, _ := formFile(r, "photo"); missing != nil {
		t.Fatal("absent field returned a file")
	}
}

func TestParseFormURLEncoded(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("name=Ana&baptized=on"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	if !parseForm(rec, r, 1024) {
		t.Fatalf("parseForm rejected request: %d", rec.Code)
	}
	if r.FormValue("name") != "Ana" || !formBool(r, "baptized") {
		t.Fatalf("form = %v", r.Form)
	}
	if file, _ := formFile(r, "photo"); file != nil {
		t.Fatal("urlencoded form returned a file")
	}
}

func TestFormBool(t *testing.T) {
	tests := map[string]bool{
		"on":    true,
		"yes":   true,
		"true":  true,
		"1":     true,
		"":      false,
		"false": false,
		"no":    false,
	}
	for value, want := range tests {
		r := httptest.NewRequest(http.MethodPost, "/?v="+value, nil)
		if got := formBool(r, "v"); got != want {
			t.Errorf("formBool(%q) = %v, want %v", value, got, want)
		}
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{"healthy", nil, http.StatusOK, "ok"},
		{"database down", errors.New("dial tcp: refused"), http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(fakePinger{err: tt.err})
			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body map[string]string
			json.NewDecoder(rec.Body).Decode(&body)
			if body["status"] != tt.want {
				t.Fatalf("body = %v", body)
			}
		})
	}
}

type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, token string) (int64, string, error) {
	if token == "good" {
		return 1, "s", nil
	}
	return 0, "", errors.New("invalid")
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	h := NewWebSocketHandler(services.NewWSHub(), fakeAuth{})

	for _, target := range []string{"/ws", "/ws?token=bad"} {
		rec := httptest.NewRecorder()
		h.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
	}
}
