package app

import (
	"time"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/approval"
	"github.com/mcoot/kidfeed/internal/services/session"
)

// EndReason records why a login ended
type EndReason string

const (
	EndLogout   EndReason = "logout"
	EndExpired  EndReason = "expired"
	EndReplaced EndReason = "replaced"
)

// State is everything the server holds for one login. Handlers receive it
// explicitly from the Controller while holding that login's lock.
type State struct {
	Token     string
	Account   model.Account
	CreatedAt time.Time
	ExpiresAt time.Time

	// Child logins only
	Session  *session.Session
	Approval *approval.Workflow
}

// Status is the session status reported to clients.
// Limited is false for parents, whose logins have no time budget.
type Status struct {
	State            session.State
	RemainingMinutes int
	Limited          bool
}

// LoginResult is returned by Login and Signup
type LoginResult struct {
	Token   string
	Account model.Account
	Status  Status
}

// LogoutResult reports content lost when a login ended
type LogoutResult struct {
	AbandonedPost *approval.PendingPost
}

// Profile is the caller's own view of their account
type Profile struct {
	Account model.Account
	Policy  *model.Policy // children only
	Status  Status
	Pending *approval.PendingPost
}

// FeedItem is a post as seen by one account
type FeedItem struct {
	Post      model.Post
	LikedByMe bool
	Age       string
}

// SubmitResult is the outcome of submitting a post
type SubmitResult struct {
	State approval.State
	Post  *model.Post // set when published
}

// LikeResult is the outcome of toggling a like
type LikeResult struct {
	Liked bool
	Likes int
}

type tombstone struct {
	reason    EndReason
	expiresAt time.Time
}
