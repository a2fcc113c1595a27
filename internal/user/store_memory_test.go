package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"compass/internal/domain"
	"compass/pkg/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestLoadUnknownHandle() {
	_, err := s.store.Load(s.ctx, "+15550001111")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestCreateAndLoad() {
	u := domain.NewUser("+15550001111", time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, u))

	got, err := s.store.Load(s.ctx, "+15550001111")
	s.Require().NoError(err)
	s.Equal(domain.VerificationUnverified, got.Verification)
	s.Equal(domain.OptInActive, got.OptIn)
}

func (s *InMemoryStoreSuite) TestCreateDuplicate() {
	u := domain.NewUser("+15550001111", time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, u))
	s.ErrorIs(s.store.Create(s.ctx, u), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestSaveDoesNotAlias() {
	u := domain.NewUser("+15550001111", time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, u))

	u.OptIn = domain.OptedOut
	// Not saved yet: the store must hold the created snapshot.
	got, err := s.store.Load(s.ctx, "+15550001111")
	s.Require().NoError(err)
	s.Equal(domain.OptInActive, got.OptIn)

	s.Require().NoError(s.store.Save(s.ctx, u))
	got, err = s.store.Load(s.ctx, "+15550001111")
	s.Require().NoError(err)
	s.Equal(domain.OptedOut, got.OptIn)
}

func (s *InMemoryStoreSuite) TestSaveUnknownHandle() {
	u := domain.NewUser("+15550009999", time.Now().UTC())
	s.ErrorIs(s.store.Save(s.ctx, u), sentinel.ErrNotFound)
}
