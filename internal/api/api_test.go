package api_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/kidfeed/internal/api"
	"github.com/mcoot/kidfeed/internal/api/apierr"
	"github.com/mcoot/kidfeed/internal/api/response"
	"github.com/mcoot/kidfeed/internal/factory"
)

// testServer wires the router to a test application with a mock clock
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Controller: app.Controller,
		Hub:        app.Hub,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, rr.Body.String())
	resp := decodeBody[apierr.ErrorResponse](t, rr)
	assert.Equal(t, code, resp.Error.Code)
}

// signupFamily creates a parent with PIN 1234 and a linked child, returning both tokens
func (ts *testServer) signupFamily(t *testing.T) (parentToken, childToken string) {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/accounts", map[string]string{
		"username":     "mum",
		"password":     "parentpw",
		"display_name": "Mum",
		"account_type": "parent",
		"pin":          "1234",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	parent := decodeBody[response.AuthResponse](t, rr)

	rr = ts.request(http.MethodPost, "/api/v1/accounts", map[string]string{
		"username":        "kid",
		"password":        "kidpw",
		"display_name":    "Kid",
		"account_type":    "child",
		"parent_username": "mum",
		"parent_pin":      "1234",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	child := decodeBody[response.AuthResponse](t, rr)

	return parent.SessionToken, child.SessionToken
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestSignupAndLogin(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/accounts", map[string]string{
		"username":     "mum",
		"password":     "parentpw",
		"display_name": "Mum",
		"account_type": "parent",
		"pin":          "1234",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	signup := decodeBody[response.AuthResponse](t, rr)
	assert.Equal(t, "mum", signup.Account.Username)
	assert.Equal(t, "parent", signup.Account.AccountType)
	assert.Equal(t, "default", signup.Account.ProfilePicture)
	assert.False(t, signup.Session.Limited)
	assert.NotEmpty(t, signup.SessionToken)
	assert.NotContains(t, rr.Body.String(), "$2a$")

	rr = ts.request(http.MethodPost, "/api/v1/sessions", map[string]string{
		"username": "mum",
		"password": "parentpw",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	login := decodeBody[response.AuthResponse](t, rr)
	assert.NotEqual(t, signup.SessionToken, login.SessionToken)

	rr = ts.request(http.MethodGet, "/api/v1/me", nil, login.SessionToken)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decodeBody[response.Profile](t, rr)
	assert.Equal(t, "Mum", me.Account.DisplayName)
	assert.Nil(t, me.Policy)
}

func TestSignupValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		body    map[string]string
		message string
	}{
		{"missing password", map[string]string{"username": "a", "display_name": "A", "account_type": "parent", "pin": "1234"}, "Username and password are required"},
		{"missing display name", map[string]string{"username": "a", "password": "p", "account_type": "parent", "pin": "1234"}, "Display name is required"},
		{"missing parent pin", map[string]string{"username": "a", "password": "p", "display_name": "A", "account_type": "parent"}, "Parent PIN is required for parent accounts"},
		{"bad pin", map[string]string{"username": "a", "password": "p", "display_name": "A", "account_type": "parent", "pin": "12ab"}, "PIN must be 4 digits"},
		{"unknown parent", map[string]string{"username": "a", "password": "p", "display_name": "A", "account_type": "child", "parent_username": "ghost", "parent_pin": "1234"}, "Parent account not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/api/v1/accounts", tt.body, "")
			assertError(t, rr, http.StatusBadRequest, apierr.CodeValidationFailed)
			assert.Contains(t, rr.Body.String(), tt.message)
		})
	}
}

func TestInvalidBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assertError(t, rr, http.StatusBadRequest, apierr.CodeInvalidRequest)
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.signupFamily(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", map[string]string{
		"username": "kid",
		"password": "guess",
	}, "")
	assertError(t, rr, http.StatusUnauthorized, apierr.CodeInvalidCredentials)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/me", "/api/v1/feed", "/api/v1/session"} {
		rr := ts.request(http.MethodGet, path, nil, "")
		assertError(t, rr, http.StatusUnauthorized, apierr.CodeUnauthorized)

		rr = ts.request(http.MethodGet, path, nil, "tok_bogus")
		assertError(t, rr, http.StatusUnauthorized, apierr.CodeUnauthorized)
	}
}

func TestSessionCookieAccepted(t *testing.T) {
	ts := newTestServer(t)
	parentToken, _ := ts.signupFamily(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: parentToken})
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestChildPostApprovalFlow(t *testing.T) {
	ts := newTestServer(t)
	parentToken, childToken := ts.signupFamily(t)

	rr := ts.request(http.MethodPost, "/api/v1/posts", map[string]string{"content": "my first post"}, childToken)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	submitted := decodeBody[response.SubmitResponse](t, rr)
	assert.Equal(t, response.StatusPendingApproval, submitted.Status)
	assert.Nil(t, submitted.Post)

	rr = ts.request(http.MethodGet, "/api/v1/me", nil, childToken)
	me := decodeBody[response.Profile](t, rr)
	require.NotNil(t, me.PendingPost)
	assert.Equal(t, "my first post", me.PendingPost.Content)

	rr = ts.request(http.MethodPost, "/api/v1/posts", map[string]string{"content": "another"}, childToken)
	assertError(t, rr, http.StatusConflict, apierr.CodeApprovalAlreadyPending)

	rr = ts.request(http.MethodPost, "/api/v1/posts/pending/approve", map[string]string{"pin": "0000"}, childToken)
	assertError(t, rr, http.StatusForbidden, apierr.CodeIncorrectPin)

	rr = ts.request(http.MethodPost, "/api/v1/posts/pending/approve", map[string]string{"pin": "1234"}, childToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	approved := decodeBody[response.SubmitResponse](t, rr)
	require.NotNil(t, approved.Post)
	assert.Equal(t, "kid", approved.Post.AuthorUsername)
	assert.Equal(t, "cat", approved.Post.Avatar)

	rr = ts.request(http.MethodPost, "/api/v1/posts/pending/approve", map[string]string{"pin": "1234"}, childToken)
	assertError(t, rr, http.StatusConflict, apierr.CodeNoPendingApproval)

	rr = ts.request(http.MethodGet, "/api/v1/feed", nil, parentToken)
	require.Equal(t, http.StatusOK, rr.Code)
	feed := decodeBody[response.Feed](t, rr)
	require.Len(t, feed.Posts, 1)
	assert.Equal(t, "my first post", feed.Posts[0].Content)
	assert.Equal(t, "Just now", feed.Posts[0].Age)
}

func TestCancelPendingPost(t *testing.T) {
	ts := newTestServer(t)
	_, childToken := ts.signupFamily(t)

	rr := ts.request(http.MethodDelete, "/api/v1/posts/pending", nil, childToken)
	assertError(t, rr, http.StatusConflict, apierr.CodeNoPendingApproval)

	ts.request(http.MethodPost, "/api/v1/posts", map[string]string{"content": "oops"}, childToken)
	rr = ts.request(http.MethodDelete, "/api/v1/posts/pending", nil, childToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestParentPostAndLike(t *testing.T) {
	ts := newTestServer(t)
	parentToken, childToken := ts.signupFamily(t)

	rr := ts.request(http.MethodPost, "/api/v1/posts", map[string]string{"content": "dinner at six"}, parentToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decodeBody[response.SubmitResponse](t, rr)
	require.NotNil(t, created.Post)

	likePath := "/api/v1/posts/" + created.Post.ID + "/like"
	rr = ts.request(http.MethodPost, likePath, nil, childToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, response.Like{Liked: true, Likes: 1}, decodeBody[response.Like](t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/feed", nil, childToken)
	feed := decodeBody[response.Feed](t, rr)
	require.Len(t, feed.Posts, 1)
	assert.True(t, feed.Posts[0].LikedByMe)

	rr = ts.request(http.MethodPost, likePath, nil, childToken)
	assert.Equal(t, response.Like{Liked: false, Likes: 0}, decodeBody[response.Like](t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/posts/nope/like", nil, childToken)
	assertError(t, rr, http.StatusNotFound, apierr.CodePostNotFound)
}

func TestEmptyPostRejected(t *testing.T) {
	ts := newTestServer(t)
	parentToken, _ := ts.signupFamily(t)

	rr := ts.request(http.MethodPost, "/api/v1/posts", map[string]string{"content": "   "}, parentToken)
	assertError(t, rr, http.StatusBadRequest, apierr.CodeValidationFailed)
	assert.Contains(t, rr.Body.String(), "Post cannot be empty")
}

func TestPolicyEndpoints(t *testing.T) {
	ts := newTestServer(t)
	parentToken, childToken := ts.signupFamily(t)

	rr := ts.request(http.MethodGet, "/api/v1/children/kid/policy", nil, childToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, response.Policy{
		SessionBudgetMinutes: 60,
		ContentFilterEnabled: true,
		PostApprovalRequired: true,
		ViewOnly:             false,
	}, decodeBody[response.Policy](t, rr))

	rr = ts.request(http.MethodPatch, "/api/v1/children/kid/policy", map[string]any{"view_only": true}, childToken)
	assertError(t, rr, http.StatusForbidden, apierr.CodeNotParent)

	rr = ts.request(http.MethodPatch, "/api/v1/children/kid/policy", map[string]any{"session_budget_minutes": 5}, parentToken)
	assertError(t, rr, http.StatusBadRequest, apierr.CodeValidationFailed)
	assert.Contains(t, rr.Body.String(), "Time limit must be between 15 and 480 minutes")

	rr = ts.request(http.MethodPatch, "/api/v1/children/kid/policy", map[string]any{}, parentToken)
	assertError(t, rr, http.StatusBadRequest, apierr.CodeValidationFailed)

	rr = ts.request(http.MethodPatch, "/api/v1/children/kid/policy", map[string]any{
		"view_only":              true,
		"session_budget_minutes": 90,
	}, parentToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decodeBody[response.Policy](t, rr)
	assert.True(t, updated.ViewOnly)
	assert.Equal(t, 90, updated.SessionBudgetMinutes)
	assert.True(t, updated.ContentFilterEnabled)

	rr = ts.request(http.MethodPost, "/api/v1/posts", map[string]string{"content": "hi"}, childToken)
	assertError(t, rr, http.StatusForbidden, apierr.CodeViewOnly)

	rr = ts.request(http.MethodGet, "/api/v1/children/mum/policy", nil, parentToken)
	assertError(t, rr, http.StatusConflict, apierr.CodeNotApplicable)

	rr = ts.request(http.MethodGet, "/api/v1/children/ghost/policy", nil, parentToken)
	assertError(t, rr, http.StatusNotFound, apierr.CodeAccountNotFound)
}

func TestSessionStatusAndExpiry(t *testing.T) {
	ts := newTestServer(t)
	parentToken, childToken := ts.signupFamily(t)

	rr := ts.request(http.MethodGet, "/api/v1/session", nil, parentToken)
	assertError(t, rr, http.StatusConflict, apierr.CodeNotApplicable)

	ts.app.MockClock.Advance(25 * time.Minute)
	rr = ts.request(http.MethodGet, "/api/v1/session", nil, childToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, response.SessionStatus{State: "active", RemainingMinutes: 35, Limited: true},
		decodeBody[response.SessionStatus](t, rr))

	ts.app.MockClock.Advance(35 * time.Minute)
	rr = ts.request(http.MethodGet, "/api/v1/feed", nil, childToken)
	assertError(t, rr, http.StatusUnauthorized, apierr.CodeSessionExpired)

	rr = ts.request(http.MethodGet, "/api/v1/me", nil, childToken)
	assertError(t, rr, http.StatusUnauthorized, apierr.CodeSessionExpired)

	rr = ts.request(http.MethodGet, "/api/v1/feed", nil, parentToken)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLogoutReportsAbandonedPost(t *testing.T) {
	ts := newTestServer(t)
	_, childToken := ts.signupFamily(t)

	ts.request(http.MethodPost, "/api/v1/posts", map[string]string{"content": "unsent"}, childToken)

	rr := ts.request(http.MethodDelete, "/api/v1/sessions/current", nil, childToken)
	require.Equal(t, http.StatusOK, rr.Code)
	logout := decodeBody[response.LogoutResponse](t, rr)
	require.NotNil(t, logout.AbandonedPost)
	assert.Equal(t, "unsent", logout.AbandonedPost.Content)

	rr = ts.request(http.MethodGet, "/api/v1/me", nil, childToken)
	assertError(t, rr, http.StatusUnauthorized, apierr.CodeUnauthorized)
}

func TestAvatars(t *testing.T) {
	ts := newTestServer(t)
	parentToken, childToken := ts.signupFamily(t)

	rr := ts.request(http.MethodGet, "/api/v1/avatars", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	avatars := decodeBody[[]response.Avatar](t, rr)
	assert.NotEmpty(t, avatars)

	rr = ts.request(http.MethodPut, "/api/v1/me/avatar", map[string]string{"avatar": "dragon"}, childToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "dragon", decodeBody[response.Profile](t, rr).Account.ProfilePicture)

	rr = ts.request(http.MethodPut, "/api/v1/me/avatar", map[string]string{"avatar": "kraken"}, childToken)
	assertError(t, rr, http.StatusBadRequest, apierr.CodeValidationFailed)

	rr = ts.request(http.MethodPut, "/api/v1/me/avatar", map[string]string{"avatar": "dragon"}, parentToken)
	assertError(t, rr, http.StatusConflict, apierr.CodeNotApplicable)
}

func TestEventStreamDeliversSessionExpiry(t *testing.T) {
	ts := newTestServer(t)
	_, childToken := ts.signupFamily(t)

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+childToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 32)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	waitFor := func(want string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed before %q", want)
				if line == want {
					return
				}
			case <-timeout:
				t.Fatalf("did not see %q", want)
			}
		}
	}

	waitFor("event: connected")
	require.Eventually(t, func() bool { return ts.app.Hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ts.app.MockClock.Advance(61 * time.Minute)
	ts.app.Controller.TickAll(t.Context())

	waitFor("event: session-expired")
}
