package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	memory *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.memory = New()
	s.Storage = s.memory
	s.Ctx = context.Background()
}

func (s *StorageSuite) TestReturnedAccountIsACopy() {
	_ = s.memory.CreateAccount(s.Ctx, &model.Account{Handle: "kid", Role: model.RoleChild, CreatedAt: time.Now()})

	account, err := s.memory.GetAccount(s.Ctx, "kid")
	s.Require().NoError(err)
	account.Role = model.RoleParent

	again, err := s.memory.GetAccount(s.Ctx, "kid")
	s.Require().NoError(err)
	s.Equal(model.RoleChild, again.Role)
}

func (s *StorageSuite) TestUnsubscribeRemovesSubscriber() {
	unsubscribe := s.memory.Subscribe(func(model.ChangeEvent) {})
	s.Equal(1, s.memory.Count())

	unsubscribe()
	s.Equal(0, s.memory.Count())
}
