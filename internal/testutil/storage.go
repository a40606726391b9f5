package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/storage"
)

// MockStorage is a testify mock of storage.Storage, used to simulate store failures
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) CreateAccount(ctx context.Context, account *model.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockStorage) GetAccount(ctx context.Context, handle model.Handle) (*model.Account, error) {
	args := m.Called(ctx, handle)
	account, _ := args.Get(0).(*model.Account)
	return account, args.Error(1)
}

func (m *MockStorage) UpdateProfilePicture(ctx context.Context, handle model.Handle, avatar model.AvatarID) error {
	args := m.Called(ctx, handle, avatar)
	return args.Error(0)
}

func (m *MockStorage) SavePolicy(ctx context.Context, child model.Handle, policy model.Policy) error {
	args := m.Called(ctx, child, policy)
	return args.Error(0)
}

func (m *MockStorage) GetPolicy(ctx context.Context, child model.Handle) (*model.Policy, error) {
	args := m.Called(ctx, child)
	policy, _ := args.Get(0).(*model.Policy)
	return policy, args.Error(1)
}

func (m *MockStorage) UpdatePolicy(ctx context.Context, child model.Handle, patch model.PolicyPatch) (*model.Policy, error) {
	args := m.Called(ctx, child, patch)
	policy, _ := args.Get(0).(*model.Policy)
	return policy, args.Error(1)
}

func (m *MockStorage) CreatePost(ctx context.Context, post *model.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockStorage) GetPost(ctx context.Context, id model.PostID) (*model.Post, error) {
	args := m.Called(ctx, id)
	post, _ := args.Get(0).(*model.Post)
	return post, args.Error(1)
}

func (m *MockStorage) ListPosts(ctx context.Context) ([]*model.Post, error) {
	args := m.Called(ctx)
	posts, _ := args.Get(0).([]*model.Post)
	return posts, args.Error(1)
}

func (m *MockStorage) SetLike(ctx context.Context, id model.PostID, handle model.Handle, like bool) error {
	args := m.Called(ctx, id, handle, like)
	return args.Error(0)
}

func (m *MockStorage) LikedPosts(ctx context.Context, handle model.Handle) (map[model.PostID]bool, error) {
	args := m.Called(ctx, handle)
	liked, _ := args.Get(0).(map[model.PostID]bool)
	return liked, args.Error(1)
}

func (m *MockStorage) Publish(ctx context.Context, event model.ChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStorage) Subscribe(fn func(model.ChangeEvent)) func() {
	m.Called(fn)
	return func() {}
}
