// Package app is the top-level controller. Every client action resolves the
// caller's State, ticks the child's session, consults the policy and the
// action gate, and only then performs the mutation.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"codeberg.org/gruf/go-mutexes"
	"github.com/google/uuid"

	"github.com/mcoot/kidfeed/internal/dependencies/clock"
	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/approval"
	"github.com/mcoot/kidfeed/internal/services/auth"
	"github.com/mcoot/kidfeed/internal/services/classifier"
	"github.com/mcoot/kidfeed/internal/services/credential"
	"github.com/mcoot/kidfeed/internal/services/gate"
	"github.com/mcoot/kidfeed/internal/services/policy"
	"github.com/mcoot/kidfeed/internal/services/session"
	"github.com/mcoot/kidfeed/internal/storage"
)

// Config holds controller settings
type Config struct {
	// TokenTTL bounds how long a login token is accepted
	TokenTTL time.Duration
	// TickInterval is how often RunTicker checks session budgets
	TickInterval time.Duration
}

// DefaultConfig returns default controller configuration
func DefaultConfig() Config {
	return Config{
		TokenTTL:     24 * time.Hour,
		TickInterval: time.Second,
	}
}

// Controller owns every live login
type Controller struct {
	storage    storage.Storage
	auth       *auth.Service
	policies   *policy.Store
	tracker    *session.Tracker
	classifier *classifier.Classifier
	verifier   credential.Verifier
	clock      clock.Clock
	logger     *slog.Logger
	cfg        Config

	// locks serialises all work on one token
	locks mutexes.MutexMap

	mu         sync.RWMutex
	states     map[string]*State
	tombstones map[string]tombstone
}

// NewController creates a Controller
func NewController(
	storage storage.Storage,
	authService *auth.Service,
	policies *policy.Store,
	tracker *session.Tracker,
	classifier *classifier.Classifier,
	verifier credential.Verifier,
	clock clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Controller {
	defaults := DefaultConfig()
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	return &Controller{
		storage:    storage,
		auth:       authService,
		policies:   policies,
		tracker:    tracker,
		classifier: classifier,
		verifier:   verifier,
		clock:      clock,
		logger:     logger,
		cfg:        cfg,
		states:     make(map[string]*State),
		tombstones: make(map[string]tombstone),
	}
}

// Signup registers an account and logs it in
func (c *Controller) Signup(ctx context.Context, reg auth.Registration) (*LoginResult, error) {
	account, err := c.auth.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	return c.login(ctx, account)
}

// Login authenticates and starts a login. A child gets a session whose budget
// is the policy's at this moment. If the child already has a running session,
// the previous login is replaced and the session carries over unchanged.
func (c *Controller) Login(ctx context.Context, handle, password string) (*LoginResult, error) {
	account, err := c.auth.Authenticate(ctx, handle, password)
	if err != nil {
		return nil, err
	}
	return c.login(ctx, account)
}

func (c *Controller) login(ctx context.Context, account *model.Account) (*LoginResult, error) {
	now := c.clock.Now()
	st := &State{
		Token:     generateToken(),
		Account:   *account,
		CreatedAt: now,
		ExpiresAt: now.Add(c.cfg.TokenTTL),
	}

	if account.IsChild() {
		// One live login per child: adopting the session, replacing older logins
		// and registering this token happen under the child's login lock.
		unlock := c.locks.Lock(loginLockKey(account.Handle))
		defer unlock()

		sess, err := c.childSession(ctx, account)
		if err != nil {
			return nil, err
		}
		st.Session = sess
		st.Approval = approval.NewWorkflow(c.verifier)
		c.replaceLogins(ctx, account.Handle)
	}

	c.mu.Lock()
	c.states[st.Token] = st
	c.mu.Unlock()

	c.logger.Info("logged in",
		slog.String("handle", string(account.Handle)),
		slog.String("role", string(account.Role)),
	)

	return &LoginResult{
		Token:   st.Token,
		Account: st.Account,
		Status:  c.status(st, now),
	}, nil
}

// loginLockKey cannot collide with a token, which never contains ':'
func loginLockKey(handle model.Handle) string {
	return "login:" + string(handle)
}

// childSession adopts the child's running session or starts a fresh one
func (c *Controller) childSession(ctx context.Context, account *model.Account) (*session.Session, error) {
	if running, ok := c.tracker.Get(account.Handle); ok {
		if !running.IsExpired(c.clock.Now()) {
			return running, nil
		}
		// Budget ran out between ticks; expire the old login before starting over
		c.expireLogins(ctx, account.Handle)
		c.tracker.End(running)
	}

	p, err := c.policies.Get(ctx, account.Handle)
	if err != nil {
		return nil, err
	}
	sess, err := c.tracker.Start(account, p.SessionBudgetMinutes)
	if errors.Is(err, model.ErrSessionActive) {
		// lost a race with a concurrent login; share its session
		if running, ok := c.tracker.Get(account.Handle); ok {
			return running, nil
		}
	}
	return sess, err
}

// replaceLogins ends every existing login for handle, keeping its session running
func (c *Controller) replaceLogins(ctx context.Context, handle model.Handle) {
	for _, token := range c.tokensFor(handle) {
		unlock := c.locks.Lock(token)
		if st := c.lookup(token); st != nil {
			c.end(ctx, st, EndReplaced)
		}
		unlock()
	}
}

// expireLogins ticks every login for handle so a spent budget forces logout
func (c *Controller) expireLogins(ctx context.Context, handle model.Handle) {
	for _, token := range c.tokensFor(handle) {
		unlock := c.locks.Lock(token)
		if st := c.lookup(token); st != nil {
			c.tick(ctx, st)
		}
		unlock()
	}
}

func (c *Controller) tokensFor(handle model.Handle) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var tokens []string
	for token, st := range c.states {
		if st.Account.Handle == handle {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func (c *Controller) lookup(token string) *State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.states[token]
}

// end removes a login and discards any pending post. Callers hold the token lock.
func (c *Controller) end(ctx context.Context, st *State, reason EndReason) *approval.PendingPost {
	var lost *approval.PendingPost
	if st.Approval != nil {
		lost = st.Approval.Abandon()
	}

	c.mu.Lock()
	delete(c.states, st.Token)
	c.tombstones[st.Token] = tombstone{reason: reason, expiresAt: st.ExpiresAt}
	c.mu.Unlock()

	attrs := []any{
		slog.String("handle", string(st.Account.Handle)),
		slog.String("reason", string(reason)),
	}
	if lost != nil {
		c.logger.Warn("pending post abandoned", append(attrs, slog.Int("content_length", len(lost.Content)))...)
	}
	c.logger.Info("login ended", attrs...)
	return lost
}

// forceLogout ends a child's login when its budget is spent. Session.Tick reports
// expiry only once per session, so this runs once per expiry.
func (c *Controller) forceLogout(ctx context.Context, st *State) {
	c.end(ctx, st, EndExpired)
	c.tracker.End(st.Session)

	event := model.ChangeEvent{Type: model.ChangeForcedLogout, Handle: st.Account.Handle, At: c.clock.Now()}
	if err := c.storage.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish forced logout",
			slog.String("handle", string(st.Account.Handle)),
			slog.String("error", err.Error()),
		)
	}
	c.logger.Info("session expired, forced logout",
		slog.String("handle", string(st.Account.Handle)),
		slog.Int("budget_minutes", st.Session.BudgetMinutes),
	)
}

// Tick reports the session status of the login behind token, forcing logout the
// first time expiry is seen. Once the login has ended it returns ErrSessionExpired.
func (c *Controller) Tick(ctx context.Context, token string) (Status, error) {
	unlock := c.locks.Lock(token)
	defer unlock()

	st, err := c.resolve(token)
	if err != nil {
		return Status{}, err
	}
	return c.tick(ctx, st), nil
}

// tick is Tick for a resolved login. Callers hold the token lock.
func (c *Controller) tick(ctx context.Context, st *State) Status {
	now := c.clock.Now()
	if st.Session == nil {
		return c.status(st, now)
	}
	status, fired := st.Session.Tick(now)
	if fired {
		c.forceLogout(ctx, st)
	} else if status.State == session.StateExpired && c.lookup(st.Token) == st {
		// the session expired under an earlier login; this one goes quietly
		c.end(ctx, st, EndExpired)
	}
	return Status{State: status.State, RemainingMinutes: status.RemainingMinutes, Limited: true}
}

func (c *Controller) status(st *State, now time.Time) Status {
	if st.Session == nil {
		return Status{State: session.StateActive}
	}
	remaining := st.Session.Remaining(now)
	if remaining <= 0 {
		return Status{State: session.StateExpired, Limited: true}
	}
	return Status{State: session.StateActive, RemainingMinutes: remaining, Limited: true}
}

// withState runs fn for the login behind token while holding its lock.
// A child whose budget is spent is logged out and gets ErrSessionExpired.
func (c *Controller) withState(ctx context.Context, token string, fn func(st *State) error) error {
	unlock := c.locks.Lock(token)
	defer unlock()

	st, err := c.resolve(token)
	if err != nil {
		return err
	}
	if status := c.tick(ctx, st); status.State == session.StateExpired {
		return model.ErrSessionExpired
	}
	return fn(st)
}

func (c *Controller) resolve(token string) (*State, error) {
	c.mu.RLock()
	st, ok := c.states[token]
	tomb, ended := c.tombstones[token]
	c.mu.RUnlock()

	if !ok {
		if ended && tomb.reason == EndExpired {
			return nil, model.ErrSessionExpired
		}
		return nil, model.ErrUnauthenticated
	}

	if c.clock.Now().After(st.ExpiresAt) {
		c.end(context.Background(), st, EndLogout)
		return nil, model.ErrUnauthenticated
	}
	return st, nil
}

// Account returns the account behind token without ticking the session
func (c *Controller) Account(token string) (*model.Account, error) {
	unlock := c.locks.Lock(token)
	defer unlock()
	st, err := c.resolve(token)
	if err != nil {
		return nil, err
	}
	account := st.Account
	return &account, nil
}

// Logout ends the login. A child's session ends with it and any pending post is lost.
func (c *Controller) Logout(ctx context.Context, token string) (*LogoutResult, error) {
	unlock := c.locks.Lock(token)
	defer unlock()

	st, err := c.resolve(token)
	if err != nil {
		return nil, err
	}
	lost := c.end(ctx, st, EndLogout)
	if st.Session != nil {
		c.tracker.End(st.Session)
	}
	return &LogoutResult{AbandonedPost: lost}, nil
}

// SessionStatus ticks and reports the caller's session. Parents have no session.
func (c *Controller) SessionStatus(ctx context.Context, token string) (Status, error) {
	var status Status
	err := c.withState(ctx, token, func(st *State) error {
		verdict := gate.Evaluate(gate.ActionRefreshSession, &st.Account, model.Policy{}, st.Session, c.clock.Now())
		if err := verdict.Err(); err != nil {
			return err
		}
		status = c.status(st, c.clock.Now())
		return nil
	})
	return status, err
}

// Me returns the caller's profile with a fresh read of the account and policy
func (c *Controller) Me(ctx context.Context, token string) (*Profile, error) {
	var profile *Profile
	err := c.withState(ctx, token, func(st *State) error {
		account, err := c.storage.GetAccount(ctx, st.Account.Handle)
		if err != nil {
			return model.WrapStoreError("get account", err)
		}
		profile = &Profile{
			Account: *account,
			Status:  c.status(st, c.clock.Now()),
		}
		if account.IsChild() {
			p, err := c.policies.Get(ctx, account.Handle)
			if err != nil {
				return err
			}
			profile.Policy = &p
			profile.Pending = st.Approval.Pending()
		}
		return nil
	})
	return profile, err
}

// Feed returns every post, newest first. Filtered children do not see posts the
// classifier hides. The policy is re-read on every call.
func (c *Controller) Feed(ctx context.Context, token string) ([]FeedItem, error) {
	var items []FeedItem
	err := c.withState(ctx, token, func(st *State) error {
		p, err := c.policyFor(ctx, st)
		if err != nil {
			return err
		}
		now := c.clock.Now()
		if err := gate.Evaluate(gate.ActionViewFeed, &st.Account, p, st.Session, now).Err(); err != nil {
			return err
		}

		posts, err := c.storage.ListPosts(ctx)
		if err != nil {
			return model.WrapStoreError("list posts", err)
		}
		liked, err := c.storage.LikedPosts(ctx, st.Account.Handle)
		if err != nil {
			return model.WrapStoreError("list likes", err)
		}

		filter := st.Account.IsChild() && p.ContentFilterEnabled
		items = make([]FeedItem, 0, len(posts))
		for _, post := range posts {
			if filter && c.classifier.Classify(post.Content) == classifier.Hidden {
				continue
			}
			items = append(items, FeedItem{
				Post:      *post,
				LikedByMe: liked[post.ID],
				Age:       RelativeAge(now, post.CreatedAt),
			})
		}
		return nil
	})
	return items, err
}

// policyFor returns the child's current policy; parents are unrestricted
func (c *Controller) policyFor(ctx context.Context, st *State) (model.Policy, error) {
	if !st.Account.IsChild() {
		return model.Policy{}, nil
	}
	return c.policies.Get(ctx, st.Account.Handle)
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", &model.ValidationError{Field: "content", Message: "Post cannot be empty"}
	}
	if utf8.RuneCountInString(content) > model.MaxPostLength {
		return "", &model.ValidationError{Field: "content", Message: "Post is too long"}
	}
	return content, nil
}

// SubmitPost publishes content, or holds it for the parent's PIN when the
// child's policy requires approval. The classifier is never consulted here.
func (c *Controller) SubmitPost(ctx context.Context, token, content string) (*SubmitResult, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	var result *SubmitResult
	err = c.withState(ctx, token, func(st *State) error {
		p, err := c.policyFor(ctx, st)
		if err != nil {
			return err
		}
		now := c.clock.Now()
		verdict := gate.Evaluate(gate.ActionCreatePost, &st.Account, p, st.Session, now)
		if err := verdict.Err(); err != nil {
			return err
		}

		var published *model.Post
		publish := c.publisher(st, &published)

		// parents have no approval workflow
		if st.Approval == nil {
			if err := publish(ctx, content); err != nil {
				return err
			}
			result = &SubmitResult{State: approval.StateApproved, Post: published}
			return nil
		}

		state, err := st.Approval.Submit(ctx, content, verdict.Kind == gate.Defer, now, publish)
		if err != nil {
			return err
		}
		if state == approval.StatePendingApproval {
			c.logger.Info("post awaiting approval", slog.String("handle", string(st.Account.Handle)))
		}
		result = &SubmitResult{State: state, Post: published}
		return nil
	})
	return result, err
}

// ApprovePost verifies the linked parent's PIN and publishes the pending post.
// The gate is evaluated again so a post cannot be approved once the child is view-only.
func (c *Controller) ApprovePost(ctx context.Context, token, pin string) (*model.Post, error) {
	var published *model.Post
	err := c.withState(ctx, token, func(st *State) error {
		if st.Approval == nil {
			return model.ErrNotApplicable
		}
		if st.Approval.State() != approval.StatePendingApproval {
			return model.ErrNoPendingApproval
		}

		p, err := c.policyFor(ctx, st)
		if err != nil {
			return err
		}
		verdict := gate.Evaluate(gate.ActionCreatePost, &st.Account, p, st.Session, c.clock.Now())
		if err := verdict.Err(); err != nil {
			return err
		}

		parent, err := c.storage.GetAccount(ctx, st.Account.ParentHandle)
		if err != nil {
			return model.WrapStoreError("get parent", err)
		}

		if _, err := st.Approval.Verify(ctx, pin, parent.PinHash, c.publisher(st, &published)); err != nil {
			if errors.Is(err, model.ErrIncorrectPin) {
				c.logger.Warn("incorrect approval PIN", slog.String("handle", string(st.Account.Handle)))
			}
			return err
		}
		return nil
	})
	return published, err
}

// CancelPost discards the pending post
func (c *Controller) CancelPost(ctx context.Context, token string) error {
	return c.withState(ctx, token, func(st *State) error {
		if st.Approval == nil {
			return model.ErrNotApplicable
		}
		return st.Approval.Cancel()
	})
}

// publisher creates the post record, storing the result in out
func (c *Controller) publisher(st *State, out **model.Post) approval.PublishFunc {
	return func(ctx context.Context, content string) error {
		author, err := c.storage.GetAccount(ctx, st.Account.Handle)
		if err != nil {
			return model.WrapStoreError("get account", err)
		}

		post := &model.Post{
			ID:                model.PostID(uuid.NewString()),
			AuthorHandle:      author.Handle,
			AuthorDisplayName: author.DisplayName,
			Content:           content,
			AvatarSnapshot:    author.ProfilePicture,
			CreatedAt:         c.clock.Now(),
		}
		if err := c.storage.CreatePost(ctx, post); err != nil {
			return model.WrapStoreError("create post", err)
		}

		c.notify(ctx, model.ChangeEvent{Type: model.ChangePostCreated, Handle: author.Handle, PostID: post.ID, At: post.CreatedAt})
		c.logger.Info("post published",
			slog.String("handle", string(author.Handle)),
			slog.String("post_id", string(post.ID)),
		)
		*out = post
		return nil
	}
}

// ToggleLike likes the post, or unlikes it if the caller already liked it
func (c *Controller) ToggleLike(ctx context.Context, token string, id model.PostID) (*LikeResult, error) {
	var result *LikeResult
	err := c.withState(ctx, token, func(st *State) error {
		p, err := c.policyFor(ctx, st)
		if err != nil {
			return err
		}
		if err := gate.Evaluate(gate.ActionLike, &st.Account, p, st.Session, c.clock.Now()).Err(); err != nil {
			return err
		}

		liked, err := c.storage.LikedPosts(ctx, st.Account.Handle)
		if err != nil {
			return model.WrapStoreError("list likes", err)
		}
		like := !liked[id]
		if err := c.storage.SetLike(ctx, id, st.Account.Handle, like); err != nil {
			return model.WrapStoreError("set like", err)
		}
		post, err := c.storage.GetPost(ctx, id)
		if err != nil {
			return model.WrapStoreError("get post", err)
		}

		c.notify(ctx, model.ChangeEvent{Type: model.ChangeLikeChanged, Handle: st.Account.Handle, PostID: id, At: c.clock.Now()})
		result = &LikeResult{Liked: like, Likes: post.Likes}
		return nil
	})
	return result, err
}

// Policy returns a child's policy to the child or its linked parent
func (c *Controller) Policy(ctx context.Context, token string, child model.Handle) (model.Policy, error) {
	var p model.Policy
	err := c.withState(ctx, token, func(st *State) error {
		if st.Account.Handle == child {
			if !st.Account.IsChild() {
				return model.ErrNotApplicable
			}
		} else {
			if !st.Account.IsParent() {
				return model.ErrNotParent
			}
			target, err := c.storage.GetAccount(ctx, child)
			if err != nil {
				return model.WrapStoreError("get account", err)
			}
			if !target.IsChild() {
				return model.ErrNotApplicable
			}
			if target.ParentHandle != st.Account.Handle {
				return model.ErrNotLinkedParent
			}
		}
		var err error
		p, err = c.policies.Get(ctx, child)
		return err
	})
	return p, err
}

// UpdatePolicy changes a child's policy on behalf of the caller. A running
// session keeps the budget it started with.
func (c *Controller) UpdatePolicy(ctx context.Context, token string, child model.Handle, patch model.PolicyPatch) (model.Policy, error) {
	var p model.Policy
	err := c.withState(ctx, token, func(st *State) error {
		var err error
		p, err = c.policies.Update(ctx, child, patch, &st.Account)
		return err
	})
	return p, err
}

// UpdateAvatar changes a child's own profile picture
func (c *Controller) UpdateAvatar(ctx context.Context, token string, avatar model.AvatarID) error {
	return c.withState(ctx, token, func(st *State) error {
		if !st.Account.IsChild() {
			return model.ErrNotApplicable
		}
		if !model.ValidAvatar(avatar) {
			return &model.ValidationError{Field: "avatar", Message: "Unknown avatar"}
		}
		if err := c.storage.UpdateProfilePicture(ctx, st.Account.Handle, avatar); err != nil {
			return model.WrapStoreError("update avatar", err)
		}
		st.Account.ProfilePicture = avatar
		return nil
	})
}

func (c *Controller) notify(ctx context.Context, event model.ChangeEvent) {
	if err := c.storage.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish change",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// generateToken generates a random login token
func generateToken() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return "tok_" + base64.RawURLEncoding.EncodeToString(b)
}
