package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/middleware"
	"github.com/persistorai/auditlog/internal/models"
)

const testTenantID = "00000000-0000-0000-0000-000000000001"

var (
	testUser    = models.Identity{TenantID: testTenantID, ActorID: "user-1", Name: "Ada", Kind: models.IdentityUser}
	testService = models.Identity{TenantID: testTenantID, Kind: models.IdentityService}
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)

	return l
}

// newTestRouter creates a gin engine that authenticates every request as id.
func newTestRouter(id models.Identity) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.IdentityKey, id)
		c.Set(middleware.TenantIDKey, id.TenantID)
		c.Next()
	})

	return r
}

// doRequest performs an HTTP request against the test router and returns the recorder.
func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	return doAuthRequest(r, method, path, body, "")
}

// doAuthRequest is doRequest with a bearer credential.
func doAuthRequest(r http.Handler, method, path, body, credential string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}

	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

// envelope is the common response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}

	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()

	env := decode(t, w)
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("invalid data %s: %v", env.Data, err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	if w.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, w.Code, w.Body.String())
	}

	if env := decode(t, w); env.Success || env.Code != code {
		t.Errorf("error envelope = %+v, want code %q", env, code)
	}
}
