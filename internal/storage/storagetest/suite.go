// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/storage"
)

// Suite is embedded by backend test suites, which set Storage in their SetupTest
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func (s *Suite) createAccount(handle model.Handle, role model.Role) *model.Account {
	account := &model.Account{
		Handle:         handle,
		DisplayName:    "Name " + string(handle),
		Bio:            model.DefaultBio,
		Role:           role,
		ProfilePicture: model.AvatarChildDefault,
		PasswordHash:   "hash",
		CreatedAt:      baseTime,
	}
	if role == model.RoleParent {
		account.PinHash = "pinhash"
		account.ProfilePicture = model.AvatarDefault
	}
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))
	return account
}

func (s *Suite) createPost(id model.PostID, author model.Handle, at time.Time) {
	s.Require().NoError(s.Storage.CreatePost(s.Ctx, &model.Post{
		ID:                id,
		AuthorHandle:      author,
		AuthorDisplayName: "Name " + string(author),
		Content:           "content " + string(id),
		AvatarSnapshot:    "fox",
		CreatedAt:         at,
	}))
}

// Account tests

func (s *Suite) TestCreateAndGetAccount() {
	created := s.createAccount("alice", model.RoleParent)

	account, err := s.Storage.GetAccount(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(created.Handle, account.Handle)
	s.Equal(created.DisplayName, account.DisplayName)
	s.Equal(model.RoleParent, account.Role)
	s.Equal("pinhash", account.PinHash)
	s.Equal(model.DefaultBio, account.Bio)
	s.True(baseTime.Equal(account.CreatedAt))
}

func (s *Suite) TestGetAccountNotFound() {
	_, err := s.Storage.GetAccount(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestCreateAccountDuplicateHandle() {
	s.createAccount("alice", model.RoleParent)

	err := s.Storage.CreateAccount(s.Ctx, &model.Account{
		Handle:      "alice",
		DisplayName: "Imposter",
		Role:        model.RoleChild,
		CreatedAt:   baseTime,
	})
	s.ErrorIs(err, model.ErrDuplicateHandle)

	account, err := s.Storage.GetAccount(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.RoleParent, account.Role)
}

func (s *Suite) TestUpdateProfilePicture() {
	s.createAccount("kid", model.RoleChild)

	s.Require().NoError(s.Storage.UpdateProfilePicture(s.Ctx, "kid", "dragon"))

	account, err := s.Storage.GetAccount(s.Ctx, "kid")
	s.Require().NoError(err)
	s.Equal(model.AvatarID("dragon"), account.ProfilePicture)
	s.Equal(model.RoleChild, account.Role)
}

func (s *Suite) TestUpdateProfilePictureNotFound() {
	err := s.Storage.UpdateProfilePicture(s.Ctx, "nobody", "dragon")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

// Policy tests

func (s *Suite) TestSaveAndGetPolicy() {
	s.createAccount("kid", model.RoleChild)
	policy := model.Policy{
		SessionBudgetMinutes: 90,
		ContentFilterEnabled: false,
		PostApprovalRequired: true,
		ViewOnly:             true,
	}

	s.Require().NoError(s.Storage.SavePolicy(s.Ctx, "kid", policy))

	got, err := s.Storage.GetPolicy(s.Ctx, "kid")
	s.Require().NoError(err)
	s.Equal(policy, *got)
}

func (s *Suite) TestGetPolicyNotFound() {
	_, err := s.Storage.GetPolicy(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrPolicyNotFound)
}

func (s *Suite) TestUpdatePolicyKeepsUnpatchedFields() {
	s.createAccount("kid", model.RoleChild)
	s.Require().NoError(s.Storage.SavePolicy(s.Ctx, "kid", model.Policy{
		SessionBudgetMinutes: 120,
		ContentFilterEnabled: false,
		PostApprovalRequired: false,
		ViewOnly:             false,
	}))

	viewOnly := true
	updated, err := s.Storage.UpdatePolicy(s.Ctx, "kid", model.PolicyPatch{ViewOnly: &viewOnly})
	s.Require().NoError(err)

	expected := model.Policy{
		SessionBudgetMinutes: 120,
		ContentFilterEnabled: false,
		PostApprovalRequired: false,
		ViewOnly:             true,
	}
	s.Equal(expected, *updated)

	got, err := s.Storage.GetPolicy(s.Ctx, "kid")
	s.Require().NoError(err)
	s.Equal(expected, *got)
}

func (s *Suite) TestUpdatePolicyStartsFromDefaults() {
	s.createAccount("kid", model.RoleChild)

	budget := 30
	updated, err := s.Storage.UpdatePolicy(s.Ctx, "kid", model.PolicyPatch{SessionBudgetMinutes: &budget})
	s.Require().NoError(err)

	expected := model.DefaultPolicy()
	expected.SessionBudgetMinutes = 30
	s.Equal(expected, *updated)
}

// Post tests

func (s *Suite) TestCreatePostIncrementsPostCount() {
	s.createAccount("kid", model.RoleChild)

	s.createPost("p1", "kid", baseTime)
	s.createPost("p2", "kid", baseTime.Add(time.Minute))

	account, err := s.Storage.GetAccount(s.Ctx, "kid")
	s.Require().NoError(err)
	s.Equal(2, account.PostCount)
}

func (s *Suite) TestCreatePostUnknownAuthor() {
	err := s.Storage.CreatePost(s.Ctx, &model.Post{
		ID:           "p1",
		AuthorHandle: "nobody",
		Content:      "hi",
		CreatedAt:    baseTime,
	})
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestGetPost() {
	s.createAccount("kid", model.RoleChild)
	s.createPost("p1", "kid", baseTime)

	post, err := s.Storage.GetPost(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(model.Handle("kid"), post.AuthorHandle)
	s.Equal("content p1", post.Content)
	s.Equal(model.AvatarID("fox"), post.AvatarSnapshot)
	s.Equal(0, post.Likes)
	s.True(baseTime.Equal(post.CreatedAt))
}

func (s *Suite) TestGetPostNotFound() {
	_, err := s.Storage.GetPost(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrPostNotFound)
}

func (s *Suite) TestListPostsNewestFirst() {
	s.createAccount("kid", model.RoleChild)
	s.createPost("old", "kid", baseTime)
	s.createPost("new", "kid", baseTime.Add(2*time.Hour))
	s.createPost("mid", "kid", baseTime.Add(time.Hour))

	posts, err := s.Storage.ListPosts(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(posts, 3)
	s.Equal(model.PostID("new"), posts[0].ID)
	s.Equal(model.PostID("mid"), posts[1].ID)
	s.Equal(model.PostID("old"), posts[2].ID)
}

func (s *Suite) TestListPostsEmpty() {
	posts, err := s.Storage.ListPosts(s.Ctx)
	s.Require().NoError(err)
	s.Empty(posts)
}

// Like tests

func (s *Suite) TestSetLikeIsIdempotent() {
	s.createAccount("kid", model.RoleChild)
	s.createAccount("pal", model.RoleChild)
	s.createPost("p1", "kid", baseTime)

	s.Require().NoError(s.Storage.SetLike(s.Ctx, "p1", "pal", true))
	s.Require().NoError(s.Storage.SetLike(s.Ctx, "p1", "pal", true))
	post, err := s.Storage.GetPost(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(1, post.Likes)

	s.Require().NoError(s.Storage.SetLike(s.Ctx, "p1", "pal", false))
	s.Require().NoError(s.Storage.SetLike(s.Ctx, "p1", "pal", false))
	post, err = s.Storage.GetPost(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(0, post.Likes)
}

func (s *Suite) TestSetLikeUnknownPost() {
	err := s.Storage.SetLike(s.Ctx, "missing", "pal", true)
	s.ErrorIs(err, model.ErrPostNotFound)
}

func (s *Suite) TestLikedPostsAndCounts() {
	s.createAccount("kid", model.RoleChild)
	s.createAccount("pal", model.RoleChild)
	s.createPost("p1", "kid", baseTime)
	s.createPost("p2", "kid", baseTime.Add(time.Minute))

	s.Require().NoError(s.Storage.SetLike(s.Ctx, "p1", "pal", true))
	s.Require().NoError(s.Storage.SetLike(s.Ctx, "p1", "kid", true))
	s.Require().NoError(s.Storage.SetLike(s.Ctx, "p2", "kid", true))

	liked, err := s.Storage.LikedPosts(s.Ctx, "pal")
	s.Require().NoError(err)
	s.Equal(map[model.PostID]bool{"p1": true}, liked)

	posts, err := s.Storage.ListPosts(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(posts, 2)
	s.Equal(1, posts[0].Likes)
	s.Equal(2, posts[1].Likes)
}

// Notification tests

func (s *Suite) TestSubscribeReceivesPublishedEvents() {
	var (
		mu       sync.Mutex
		received []model.ChangeEvent
	)
	unsubscribe := s.Storage.Subscribe(func(e model.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})
	defer unsubscribe()

	s.Require().NoError(s.Storage.Publish(s.Ctx, model.ChangeEvent{
		Type:   model.ChangePostCreated,
		Handle: "kid",
		PostID: "p1",
		At:     baseTime,
	}))

	s.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	s.Equal(model.ChangePostCreated, received[0].Type)
	s.Equal(model.PostID("p1"), received[0].PostID)
}
