//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"registrar/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgresStore(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestAppendAndListRecent() {
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	first := Event{ID: uuid.NewString(), Timestamp: base, Action: ActionCatalogRefreshed, ActorID: "ops", ActorRole: "admin"}
	second := Event{
		ID: uuid.NewString(), Timestamp: base.Add(time.Minute), Action: ActionRegistrationWithdrawn,
		ActorID: "ops", ActorRole: "admin", CourseID: "py-101", SubmitterID: "stu-1", Sequence: 4,
		Reason: "duplicate account", RequestID: "req-9",
	}
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))

	events, err := s.store.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(second, events[0])
	s.Equal(first.ID, events[1].ID)

	events, err = s.store.ListRecent(ctx, 1)
	s.Require().NoError(err)
	s.Len(events, 1)
}
