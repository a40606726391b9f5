package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/kidfeed/internal/api"
	"github.com/mcoot/kidfeed/internal/api/response"
	"github.com/mcoot/kidfeed/internal/cli"
	"github.com/mcoot/kidfeed/internal/factory"
)

// cliRunner runs CLI commands in-process as one user with their own token file
type cliRunner struct {
	serverURL string
	tokenFile string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()
	return &cliRunner{
		serverURL: serverURL,
		tokenFile: filepath.Join(t.TempDir(), "token"),
	}
}

func (r *cliRunner) runContext(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	var out bytes.Buffer
	cmd := cli.NewRootCmd()
	cmd.SetArgs(fullArgs)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (r *cliRunner) run(args ...string) (string, error) {
	return r.runContext(context.Background(), args...)
}

func (r *cliRunner) hasToken() bool {
	_, err := os.Stat(r.tokenFile)
	return err == nil
}

// testServer runs the API on a real listener backed by a mock clock
type testServer struct {
	url string
	app *factory.TestApp
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Controller: app.Controller,
		Hub:        app.Hub,
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		app.Hub.Close()
		server.Close()
		_ = app.Close()
	})

	return &testServer{url: server.URL, app: app}
}

func decodeOutput[T any](t *testing.T, output string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(output), &v), "output: %s", output)
	return v
}

// signupFamily creates parent "mum" with PIN 2468 and child "kid"
func signupFamily(t *testing.T, ts *testServer) (parent, child *cliRunner) {
	t.Helper()

	parent = newCLIRunner(t, ts.url)
	output, err := parent.run("account", "signup",
		"--type", "parent", "--user", "mum", "--pass", "parentpw", "--name", "Mum", "--pin", "2468")
	require.NoError(t, err, "output: %s", output)

	child = newCLIRunner(t, ts.url)
	output, err = child.run("account", "signup",
		"--type", "child", "--user", "kid", "--pass", "kidpw", "--name", "Kid",
		"--parent", "mum", "--parent-pin", "2468")
	require.NoError(t, err, "output: %s", output)

	auth := decodeOutput[response.AuthResponse](t, output)
	require.Equal(t, "child", auth.Account.AccountType)
	require.Equal(t, 60, auth.Session.RemainingMinutes)

	return parent, child
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	runner := newCLIRunner(t, ts.url)

	output, err := runner.run("health")
	require.NoError(t, err, "output: %s", output)

	assert.Equal(t, "ok", decodeOutput[response.Health](t, output).Status)
}

func TestCLI_LoginAndLogout(t *testing.T) {
	ts := startTestServer(t)
	signupFamily(t, ts)

	runner := newCLIRunner(t, ts.url)
	_, err := runner.run("account", "login", "--user", "kid", "--pass", "wrong")
	require.Error(t, err)
	assert.True(t, cli.IsCode(err, "INVALID_CREDENTIALS"), "got %v", err)
	assert.False(t, runner.hasToken())

	output, err := runner.run("account", "login", "--user", "kid", "--pass", "kidpw")
	require.NoError(t, err, "output: %s", output)
	assert.True(t, runner.hasToken())

	output, err = runner.run("account", "me")
	require.NoError(t, err, "output: %s", output)
	me := decodeOutput[response.Profile](t, output)
	assert.Equal(t, "kid", me.Account.Username)
	assert.Equal(t, "mum", me.Account.ParentUsername)
	require.NotNil(t, me.Policy)
	assert.True(t, me.Policy.PostApprovalRequired)

	output, err = runner.run("account", "logout")
	require.NoError(t, err, "output: %s", output)
	assert.False(t, runner.hasToken())

	_, err = runner.run("feed")
	assert.True(t, cli.IsCode(err, "UNAUTHORIZED"), "got %v", err)
}

func TestCLI_PostApprovalAndLikes(t *testing.T) {
	ts := startTestServer(t)
	parent, child := signupFamily(t, ts)

	output, err := child.run("post", "submit", "I", "built", "a", "fort")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, response.StatusPendingApproval, decodeOutput[response.SubmitResponse](t, output).Status)

	_, err = child.run("post", "approve", "--pin", "1111")
	assert.True(t, cli.IsCode(err, "INCORRECT_PIN"), "got %v", err)

	output, err = child.run("post", "approve", "--pin", "2468")
	require.NoError(t, err, "output: %s", output)
	approved := decodeOutput[response.SubmitResponse](t, output)
	require.NotNil(t, approved.Post)
	assert.Equal(t, "I built a fort", approved.Post.Content)

	output, err = parent.run("post", "like", approved.Post.ID)
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, response.Like{Liked: true, Likes: 1}, decodeOutput[response.Like](t, output))

	ts.app.MockClock.Advance(5 * time.Minute)
	output, err = child.run("feed")
	require.NoError(t, err, "output: %s", output)
	feed := decodeOutput[response.Feed](t, output)
	require.Len(t, feed.Posts, 1)
	assert.Equal(t, 1, feed.Posts[0].Likes)
	assert.False(t, feed.Posts[0].LikedByMe)
	assert.Equal(t, "5m ago", feed.Posts[0].Age)
}

func TestCLI_CancelPendingPost(t *testing.T) {
	ts := startTestServer(t)
	_, child := signupFamily(t, ts)

	_, err := child.run("post", "submit", "never mind")
	require.NoError(t, err)

	output, err := child.run("post", "cancel")
	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, output, "Post discarded")

	_, err = child.run("post", "approve", "--pin", "2468")
	assert.True(t, cli.IsCode(err, "NO_PENDING_APPROVAL"), "got %v", err)
}

func TestCLI_PolicyCommands(t *testing.T) {
	ts := startTestServer(t)
	parent, child := signupFamily(t, ts)

	_, err := parent.run("policy", "set", "kid")
	require.Error(t, err)

	_, err = child.run("policy", "set", "kid", "--view-only")
	assert.True(t, cli.IsCode(err, "NOT_PARENT"), "got %v", err)

	output, err := parent.run("policy", "set", "kid", "--view-only", "--time-limit", "30")
	require.NoError(t, err, "output: %s", output)
	updated := decodeOutput[response.Policy](t, output)
	assert.True(t, updated.ViewOnly)
	assert.Equal(t, 30, updated.SessionBudgetMinutes)
	assert.True(t, updated.PostApprovalRequired)

	output, err = child.run("policy", "get", "kid")
	require.NoError(t, err, "output: %s", output)
	assert.True(t, decodeOutput[response.Policy](t, output).ViewOnly)

	_, err = child.run("post", "submit", "hello")
	assert.True(t, cli.IsCode(err, "VIEW_ONLY"), "got %v", err)

	// The running session keeps the limit it started with
	output, err = child.run("session", "status")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, 60, decodeOutput[response.SessionStatus](t, output).RemainingMinutes)

	_, err = parent.run("session", "status")
	assert.True(t, cli.IsCode(err, "NOT_APPLICABLE"), "got %v", err)
}

func TestCLI_AvatarCommands(t *testing.T) {
	ts := startTestServer(t)
	_, child := signupFamily(t, ts)

	output, err := child.run("account", "avatars")
	require.NoError(t, err, "output: %s", output)
	avatars := decodeOutput[[]response.Avatar](t, output)
	require.NotEmpty(t, avatars)

	output, err = child.run("account", "avatar", "owl")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, "owl", decodeOutput[response.Profile](t, output).Account.ProfilePicture)
}

func TestCLI_EventsEndOnSessionExpiry(t *testing.T) {
	ts := startTestServer(t)
	_, child := signupFamily(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		output string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		output, err := child.runContext(ctx, "events", "--json")
		done <- result{output, err}
	}()

	require.Eventually(t, func() bool { return ts.app.Hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	ts.app.MockClock.Advance(61 * time.Minute)
	ts.app.Controller.TickAll(context.Background())

	select {
	case res := <-done:
		require.NoError(t, res.err, "output: %s", res.output)
		assert.Contains(t, res.output, `"event":"connected"`)
		assert.Contains(t, res.output, `"event":"session-expired"`)
	case <-ctx.Done():
		t.Fatal("events command did not finish")
	}

	assert.False(t, child.hasToken())
}
