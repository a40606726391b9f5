package response

import (
	"time"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/app"
	"github.com/mcoot/kidfeed/internal/services/approval"
)

// Health is the response for the health check
type Health struct {
	Status string `json:"status"`
}

// Account represents an account in API responses
type Account struct {
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	Bio            string    `json:"bio"`
	AccountType    string    `json:"account_type"`
	ProfilePicture string    `json:"profile_picture"`
	PostCount      int       `json:"post_count"`
	ParentUsername string    `json:"parent_username,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// AccountFromModel converts a model.Account. Credential hashes never leave the server.
func AccountFromModel(a *model.Account) Account {
	return Account{
		Username:       string(a.Handle),
		DisplayName:    a.DisplayName,
		Bio:            a.Bio,
		AccountType:    string(a.Role),
		ProfilePicture: string(a.ProfilePicture),
		PostCount:      a.PostCount,
		ParentUsername: string(a.ParentHandle),
		CreatedAt:      a.CreatedAt,
	}
}

// Policy represents a child's parental controls
type Policy struct {
	SessionBudgetMinutes int  `json:"session_budget_minutes"`
	ContentFilterEnabled bool `json:"content_filter_enabled"`
	PostApprovalRequired bool `json:"post_approval_required"`
	ViewOnly             bool `json:"view_only"`
}

// PolicyFromModel converts a model.Policy
func PolicyFromModel(p model.Policy) Policy {
	return Policy{
		SessionBudgetMinutes: p.SessionBudgetMinutes,
		ContentFilterEnabled: p.ContentFilterEnabled,
		PostApprovalRequired: p.PostApprovalRequired,
		ViewOnly:             p.ViewOnly,
	}
}

// SessionStatus reports a child's remaining time
type SessionStatus struct {
	State            string `json:"state"`
	RemainingMinutes int    `json:"remaining_minutes"`
	Limited          bool   `json:"limited"`
}

// SessionStatusFromApp converts an app.Status
func SessionStatusFromApp(s app.Status) SessionStatus {
	return SessionStatus{
		State:            string(s.State),
		RemainingMinutes: s.RemainingMinutes,
		Limited:          s.Limited,
	}
}

// AuthResponse is the response for signup and login
type AuthResponse struct {
	Account      Account       `json:"account"`
	SessionToken string        `json:"session_token"`
	Session      SessionStatus `json:"session"`
}

// AuthResponseFromLogin creates an AuthResponse from a login result
func AuthResponseFromLogin(l *app.LoginResult) AuthResponse {
	return AuthResponse{
		Account:      AccountFromModel(&l.Account),
		SessionToken: l.Token,
		Session:      SessionStatusFromApp(l.Status),
	}
}

// PendingPost is a post waiting for the parent's PIN
type PendingPost struct {
	Content     string    `json:"content"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func pendingFromApproval(p *approval.PendingPost) *PendingPost {
	if p == nil {
		return nil
	}
	return &PendingPost{Content: p.Content, SubmittedAt: p.SubmittedAt}
}

// LogoutResponse reports what was lost on logout
type LogoutResponse struct {
	AbandonedPost *PendingPost `json:"abandoned_post,omitempty"`
}

// LogoutResponseFromApp converts an app.LogoutResult
func LogoutResponseFromApp(l *app.LogoutResult) LogoutResponse {
	return LogoutResponse{AbandonedPost: pendingFromApproval(l.AbandonedPost)}
}

// Profile is the response for GET /me
type Profile struct {
	Account     Account       `json:"account"`
	Policy      *Policy       `json:"policy,omitempty"`
	Session     SessionStatus `json:"session"`
	PendingPost *PendingPost  `json:"pending_post,omitempty"`
}

// ProfileFromApp converts an app.Profile
func ProfileFromApp(p *app.Profile) Profile {
	out := Profile{
		Account:     AccountFromModel(&p.Account),
		Session:     SessionStatusFromApp(p.Status),
		PendingPost: pendingFromApproval(p.Pending),
	}
	if p.Policy != nil {
		pol := PolicyFromModel(*p.Policy)
		out.Policy = &pol
	}
	return out
}

// Avatar is one entry of the avatar catalogue
type Avatar struct {
	ID    string `json:"id"`
	Emoji string `json:"emoji"`
	Name  string `json:"name"`
}

// AvatarsFromModel converts the catalogue
func AvatarsFromModel(avatars []model.Avatar) []Avatar {
	out := make([]Avatar, len(avatars))
	for i, a := range avatars {
		out[i] = Avatar{ID: string(a.ID), Emoji: a.Emoji, Name: a.Name}
	}
	return out
}

// Post represents a published post
type Post struct {
	ID                string    `json:"id"`
	AuthorUsername    string    `json:"author_username"`
	AuthorDisplayName string    `json:"author_display_name"`
	Content           string    `json:"content"`
	Avatar            string    `json:"avatar"`
	Likes             int       `json:"likes"`
	CreatedAt         time.Time `json:"created_at"`
}

// PostFromModel converts a model.Post
func PostFromModel(p *model.Post) Post {
	return Post{
		ID:                string(p.ID),
		AuthorUsername:    string(p.AuthorHandle),
		AuthorDisplayName: p.AuthorDisplayName,
		Content:           p.Content,
		Avatar:            string(p.AvatarSnapshot),
		Likes:             p.Likes,
		CreatedAt:         p.CreatedAt,
	}
}

// FeedItem is a post as seen by one viewer
type FeedItem struct {
	Post
	LikedByMe bool   `json:"liked_by_me"`
	Age       string `json:"age"`
}

// Feed is the response for GET /feed
type Feed struct {
	Posts []FeedItem `json:"posts"`
}

// FeedFromApp converts feed items
func FeedFromApp(items []app.FeedItem) Feed {
	out := Feed{Posts: make([]FeedItem, len(items))}
	for i := range items {
		out.Posts[i] = FeedItem{
			Post:      PostFromModel(&items[i].Post),
			LikedByMe: items[i].LikedByMe,
			Age:       items[i].Age,
		}
	}
	return out
}

// Submission statuses
const (
	StatusPublished       = "published"
	StatusPendingApproval = "pending_approval"
)

// SubmitResponse reports whether a post was published or is awaiting approval
type SubmitResponse struct {
	Status string `json:"status"`
	Post   *Post  `json:"post,omitempty"`
}

// SubmitResponseFromApp converts an app.SubmitResult
func SubmitResponseFromApp(s *app.SubmitResult) SubmitResponse {
	if s.Post == nil {
		return SubmitResponse{Status: StatusPendingApproval}
	}
	p := PostFromModel(s.Post)
	return SubmitResponse{Status: StatusPublished, Post: &p}
}

// Like is the response for toggling a like
type Like struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}
