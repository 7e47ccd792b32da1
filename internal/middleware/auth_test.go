package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, token string) (int64, string, error) {
	if token == "good" {
		return 17, "sess-1", nil
	}
	return 0, "", errors.New("bad token")
}

func TestAuthMiddleware(t *testing.T) {
	var gotUser int64
	var gotSession string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotSession = GetSessionID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := AuthMiddleware(fakeAuth{})(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"malformed", "Bearer", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser, gotSession = 0, ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && (gotUser != 17 || gotSession != "sess-1") {
				t.Fatalf("identity = %d/%q", gotUser, gotSession)
			}
			if tt.want != http.StatusNoContent && gotUser != 0 {
				t.Fatal("next handler ran for rejected request")
			}
		})
	}
}

func TestIdentityDefaults(t *testing.T) {
	if GetUserID(context.Background()) != 0 || GetSessionID(context.Background()) != "" {
		t.Fatal("empty context should yield zero identity")
	}
}
