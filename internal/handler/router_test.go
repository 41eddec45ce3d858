package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/tasktracker/internal/events"
	"github.com/aryan0dhankhar/tasktracker/internal/repository/memory"
	"github.com/aryan0dhankhar/tasktracker/internal/security"
	"github.com/aryan0dhankhar/tasktracker/internal/security/auth"
	"github.com/aryan0dhankhar/tasktracker/internal/security/ratelimit"
	"github.com/aryan0dhankhar/tasktracker/internal/service"
	"github.com/aryan0dhankhar/tasktracker/pkg/cache"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	hub    *events.Hub
}

func newTestAPI(t *testing.T, limiter *ratelimit.Limiter, loginAttempts int) *apiClient {
	t.Helper()
	store := memory.NewStore()
	gate := security.NewGate(nil)
	dashboard := service.NewDashboardService(store.Tasks(), store.Employees(), gate, cache.NewBytes(), 0, nil)
	registry := service.NewTenantRegistry(store.Users(), nil)
	tokens := auth.NewTokenManager("handler-test-secret", "tasktracker", 0)
	hub := events.NewHub(8)

	router := NewRouter(RouterDeps{
		Auth: service.NewAuthService(store.Users(), store.Employees(), registry,
			auth.NewBcryptHasher(bcrypt.MinCost), tokens, gate, dashboard, nil),
		Employees:     service.NewEmployeeService(store.Employees(), gate, dashboard, nil),
		Tasks:         service.NewTaskService(store.Tasks(), store.Employees(), gate, hub, dashboard, nil),
		Dashboard:     dashboard,
		Limiter:       limiter,
		LoginAttempts: loginAttempts,
		Hub:           hub,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiClient{t: t, server: srv, hub: hub}
}

// do sends a JSON request and decodes the JSON answer into a generic value
func (c *apiClient) do(method, path, token string, body any) (int, map[string]any) {
	c.t.Helper()
	status, raw := c.raw(method, path, token, body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(c.t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func (c *apiClient) list(path, token string) (int, []map[string]any) {
	c.t.Helper()
	status, raw := c.raw(http.MethodGet, path, token, nil)
	var out []map[string]any
	if status == http.StatusOK {
		require.NoError(c.t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func (c *apiClient) raw(method, path, token string, body any) (int, []byte) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.server.URL+path, r)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

func (c *apiClient) register(username, role, code string) map[string]any {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":  username,
		"email":     username + "@example.com",
		"password":  "password123",
		"role":      role,
		"adminCode": code,
	})
	require.Equal(c.t, http.StatusCreated, status, body)
	return body
}

func (c *apiClient) login(username string) string {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.Equal(c.t, http.StatusOK, status, body)
	return body["token"].(string)
}

func TestEndToEndTenantFlow(t *testing.T) {
	api := newTestAPI(t, nil, 0)

	a1 := api.register("a1", "admin", "")
	code, ok := a1["adminCode"].(string)
	require.True(t, ok, "admin must receive a code")
	require.Len(t, code, 8)
	a1Token := a1["token"].(string)

	u1 := api.register("u1", "employee", code)
	assert.Nil(t, u1["adminCode"])
	u1Token := u1["token"].(string)

	// unlinked employees can still read their profile and an empty dashboard
	status, me := api.do(http.MethodGet, "/api/auth/me", u1Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, me["employee"])
	status, dash := api.do(http.MethodGet, "/api/dashboard", u1Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, dash["total_tasks"])
	assert.Equal(t, "u1", dash["employee_name"])

	status, emp := api.do(http.MethodPost, "/api/employees", a1Token, map[string]string{
		"email": "u1@example.com", "department": "Engineering", "position": "Developer",
	})
	require.Equal(t, http.StatusCreated, status, emp)
	assert.Equal(t, u1["id"], emp["user_id"])
	assert.Equal(t, "u1", emp["name"])
	empID := emp["id"].(string)

	status, task := api.do(http.MethodPost, "/api/tasks", a1Token, map[string]any{
		"title": "Ship it", "status": "pending", "priority": "high", "employee_id": empID,
	})
	require.Equal(t, http.StatusCreated, status, task)
	taskID := task["id"].(string)

	u1Token = api.login("u1")
	status, task = api.do(http.MethodPatch, "/api/tasks/"+taskID+"/status", u1Token, map[string]string{"status": "in-progress"})
	require.Equal(t, http.StatusOK, status, task)
	assert.Equal(t, "in-progress", task["status"])

	a2 := api.register("a2", "admin", "")
	assert.NotEqual(t, code, a2["adminCode"])
	a2Token := a2["token"].(string)

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/tasks/" + taskID, nil},
		{http.MethodPut, "/api/tasks/" + taskID, map[string]any{"title": "x", "status": "pending", "priority": "low", "employee_id": empID}},
		{http.MethodDelete, "/api/tasks/" + taskID, nil},
		{http.MethodGet, "/api/employees/" + empID, nil},
		{http.MethodPut, "/api/employees/" + empID, map[string]string{"department": "x", "position": "y"}},
		{http.MethodDelete, "/api/employees/" + empID, nil},
	} {
		status, _ := api.do(tc.method, tc.path, a2Token, tc.body)
		assert.Contains(t, []int{http.StatusNotFound, http.StatusForbidden}, status, "%s %s", tc.method, tc.path)
	}

	status, body := api.do(http.MethodPost, "/api/tasks", a2Token, map[string]any{
		"title": "Steal", "status": "pending", "priority": "low", "employee_id": empID,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "you can only assign tasks to your own employees", body["error"])

	// the task survived a2's attempts
	status, tasks := api.list("/api/tasks", a1Token)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, tasks, 1)
	assert.Equal(t, "in-progress", tasks[0]["status"])

	status, tasks = api.list("/api/tasks", a2Token)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, tasks)

	status, dash = api.do(http.MethodGet, "/api/dashboard", a1Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, dash["total_tasks"])
	assert.EqualValues(t, 1, dash["in_progress_tasks"])
	assert.EqualValues(t, 1, dash["total_employees"])
}

func TestAuthErrors(t *testing.T) {
	api := newTestAPI(t, nil, 0)

	status, body := api.do(http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "authentication required", body["error"])

	status, _ = api.do(http.MethodGet, "/api/tasks", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "u1", "email": "u1@example.com", "password": "password123", "role": "employee", "adminCode": "FFFFFFFF",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid admin code", body["error"])

	api.register("a1", "admin", "")
	status, body = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "a1", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status2, body2 := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "ghost", "password": "wrong-password"})
	assert.Equal(t, status, status2)
	assert.Equal(t, body["error"], body2["error"])

	status, body = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "a1", "email": "other@example.com", "password": "password123", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])
}

func TestEmployeeRoleLimits(t *testing.T) {
	api := newTestAPI(t, nil, 0)
	a1 := api.register("a1", "admin", "")
	adminToken := a1["token"].(string)
	u1 := api.register("u1", "employee", a1["adminCode"].(string))
	empToken := u1["token"].(string)

	status, body := api.do(http.MethodPost, "/api/tasks", empToken, map[string]any{
		"title": "x", "status": "pending", "priority": "low", "employee_id": "whatever",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.NotEmpty(t, body["error"])

	status, _ = api.do(http.MethodGet, "/api/users", empToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, users := api.list("/api/users", adminToken)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, users, 1)
	assert.Equal(t, false, users[0]["linked"])
	assert.Nil(t, users[0]["employee_id"])

	status, list := api.list("/api/employees", empToken)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, list)
}

func TestRequestShapeErrors(t *testing.T) {
	api := newTestAPI(t, nil, 0)
	a1 := api.register("a1", "admin", "")
	token := a1["token"].(string)

	status, body := api.do(http.MethodGet, "/api/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "route not found", body["error"])

	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/api/tasks", bytes.NewBufferString("title=x"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := api.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	status, body = api.do(http.MethodPost, "/api/tasks", token, map[string]any{
		"title": "x", "status": "done", "priority": "low", "employee_id": "e1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid status", body["error"])

	status, body = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "a9", "email": "a9@example.com", "password": strings.Repeat("p", 80), "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "password must be at most 72 bytes", body["error"])

	status, body = api.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body["status"])
}

func TestLoginThrottle(t *testing.T) {
	limiter := ratelimit.NewLimiter(0, 0)
	t.Cleanup(limiter.Stop)
	api := newTestAPI(t, limiter, 2)
	api.register("a1", "admin", "")

	for i := 0; i < 2; i++ {
		status, _ := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "a1", "password": "bad"})
		require.Equal(t, http.StatusUnauthorized, status)
	}
	status, _ := api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "A1", "password": "password123"})
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestSessionCookie(t *testing.T) {
	api := newTestAPI(t, nil, 0)
	a1 := api.register("a1", "admin", "")
	_ = a1

	body, _ := json.Marshal(map[string]string{"username": "a1", "password": "password123"})
	resp, err := api.server.Client().Post(api.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "token" {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req, err := http.NewRequest(http.MethodGet, api.server.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(session)
	resp, err = api.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
