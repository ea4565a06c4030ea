package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/procurement/internal/auth"
	"github.com/kiwari-pos/procurement/internal/middleware"
	"go.uber.org/zap"
)

const testJWTSecret = "test-secret-key"

var (
	testRestaurantID = uuid.MustParse("0b8f7a52-3a4f-4e3b-9f0a-1c2d3e4f5a60")
	testSupplierID   = uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3dab12")
)

func ownerClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), RestaurantID: testRestaurantID, Role: "OWNER"}
}

func staffClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), RestaurantID: testRestaurantID, Role: "STAFF"}
}

func supplierClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), SupplierID: testSupplierID, Role: "STAFF"}
}

// mount wires routes behind the real JWT middleware.
func mount(pattern string, register func(chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route(pattern, register)
	return r
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.RestaurantID, claims.SupplierID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, rr.Body.String())
	}
	return resp
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	if got := decodeMap(t, rr)["error"]; got != want {
		t.Errorf("error: got %v, want %q", got, want)
	}
}

func numeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(s)
	return n
}

func nopLogger() *zap.Logger { return zap.NewNop() }

func doRequestNoAuth(router http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func uuidValue(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
