package storage

import (
	"context"

	"github.com/mcoot/kidfeed/internal/model"
)

// Storage defines the interface for the record store
type Storage interface {
	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, handle model.Handle) (*model.Account, error)
	UpdateProfilePicture(ctx context.Context, handle model.Handle, avatar model.AvatarID) error

	// Policy operations
	SavePolicy(ctx context.Context, child model.Handle, policy model.Policy) error
	GetPolicy(ctx context.Context, child model.Handle) (*model.Policy, error)
	// UpdatePolicy replaces the provided fields, starting from defaults if no policy is stored
	UpdatePolicy(ctx context.Context, child model.Handle, patch model.PolicyPatch) (*model.Policy, error)

	// Post operations
	// CreatePost also increments the author's post count
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id model.PostID) (*model.Post, error)
	// ListPosts returns every post, newest first
	ListPosts(ctx context.Context) ([]*model.Post, error)

	// Like operations
	// SetLike is idempotent: liking twice or unliking a post never liked changes nothing
	SetLike(ctx context.Context, id model.PostID, handle model.Handle, like bool) error
	LikedPosts(ctx context.Context, handle model.Handle) (map[model.PostID]bool, error)

	Notifier
}

// Notifier delivers change events to subscribers
type Notifier interface {
	Publish(ctx context.Context, event model.ChangeEvent) error
	// Subscribe registers fn for every subsequent event and returns a function that removes it
	Subscribe(fn func(model.ChangeEvent)) (unsubscribe func())
}
