package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/storage"
	"github.com/mcoot/kidfeed/internal/storage/notify"
)

// Storage is an in-memory implementation of the storage interface.
// Records are copied in and out so callers never share state with the store.
type Storage struct {
	*notify.Notifier

	mu sync.RWMutex

	accounts map[model.Handle]model.Account
	policies map[model.Handle]model.Policy
	posts    map[model.PostID]model.Post
	likes    map[model.PostID]map[model.Handle]bool
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		Notifier: notify.New(),
		accounts: make(map[model.Handle]model.Account),
		policies: make(map[model.Handle]model.Policy),
		posts:    make(map[model.PostID]model.Post),
		likes:    make(map[model.PostID]map[model.Handle]bool),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Handle]; ok {
		return model.ErrDuplicateHandle
	}
	s.accounts[account.Handle] = *account
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, handle model.Handle) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[handle]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return &account, nil
}

func (s *Storage) UpdateProfilePicture(ctx context.Context, handle model.Handle, avatar model.AvatarID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[handle]
	if !ok {
		return model.ErrAccountNotFound
	}
	account.ProfilePicture = avatar
	s.accounts[handle] = account
	return nil
}

// Policy operations

func (s *Storage) SavePolicy(ctx context.Context, child model.Handle, policy model.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[child] = policy
	return nil
}

func (s *Storage) GetPolicy(ctx context.Context, child model.Handle) (*model.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[child]
	if !ok {
		return nil, model.ErrPolicyNotFound
	}
	return &policy, nil
}

func (s *Storage) UpdatePolicy(ctx context.Context, child model.Handle, patch model.PolicyPatch) (*model.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.policies[child]
	if !ok {
		current = model.DefaultPolicy()
	}
	updated := patch.Apply(current)
	s.policies[child] = updated
	return &updated, nil
}

// Post operations

func (s *Storage) CreatePost(ctx context.Context, post *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	author, ok := s.accounts[post.AuthorHandle]
	if !ok {
		return model.ErrAccountNotFound
	}
	author.PostCount++
	s.accounts[post.AuthorHandle] = author
	s.posts[post.ID] = *post
	return nil
}

func (s *Storage) GetPost(ctx context.Context, id model.PostID) (*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.posts[id]
	if !ok {
		return nil, model.ErrPostNotFound
	}
	post.Likes = len(s.likes[id])
	return &post, nil
}

func (s *Storage) ListPosts(ctx context.Context) ([]*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	posts := make([]*model.Post, 0, len(s.posts))
	for id, p := range s.posts {
		p.Likes = len(s.likes[id])
		posts = append(posts, &p)
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// Like operations

func (s *Storage) SetLike(ctx context.Context, id model.PostID, handle model.Handle, like bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return model.ErrPostNotFound
	}
	if like {
		if s.likes[id] == nil {
			s.likes[id] = make(map[model.Handle]bool)
		}
		s.likes[id][handle] = true
	} else {
		delete(s.likes[id], handle)
	}
	return nil
}

func (s *Storage) LikedPosts(ctx context.Context, handle model.Handle) (map[model.PostID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	liked := make(map[model.PostID]bool)
	for id, likers := range s.likes {
		if likers[handle] {
			liked[id] = true
		}
	}
	return liked, nil
}
