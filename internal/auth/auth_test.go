package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestParseToken(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{"client_id": "42", "is_admin": true})

	caller, err := ParseToken(raw, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error: %v", err)
	}
	if caller.ClientID != "42" || !caller.IsAdmin {
		t.Errorf("caller = %+v", caller)
	}
	if caller.CallerID() != "42" || !caller.Admin() {
		t.Errorf("caller contract = %q/%v", caller.CallerID(), caller.Admin())
	}
}

func TestParseTokenRejectsBadSignature(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{"client_id": "42"})
	if _, err := ParseToken(raw, []byte("other-secret")); err == nil {
		t.Fatal("ParseToken() accepted a token signed with another secret")
	}
}

func TestMiddleware(t *testing.T) {
	var got *Caller
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})
	h := Middleware(testSecret)(next)

	tests := []struct {
		name   string
		header string
		want   Caller
	}{
		{
			name:   "valid bearer token",
			header: "Bearer " + signToken(t, jwt.MapClaims{"client_id": "7"}),
			want:   Caller{ClientID: "7"},
		},
		{
			name: "missing header falls back to anonymous",
			want: Caller{},
		},
		{
			name:   "garbage token falls back to anonymous",
			header: "Bearer not-a-token",
			want:   Caller{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), r)
			if got == nil || *got != tt.want {
				t.Errorf("caller = %+v, want %+v", got, tt.want)
			}
		})
	}
}
