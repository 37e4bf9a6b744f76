package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"registrar/internal/registration/models"
	"registrar/internal/registration/store/ledger"
	"registrar/internal/registration/store/ledger/mocks"
	"registrar/pkg/platform/circuit"
	"registrar/pkg/platform/sentinel"
)

type GuardedSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	inner   *mocks.MockLedger
	now     time.Time
	breaker *circuit.Breaker
	guarded *ledger.Guarded
}

func TestGuardedSuite(t *testing.T) {
	suite.Run(t, new(GuardedSuite))
}

func (s *GuardedSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.inner = mocks.NewMockLedger(s.ctrl)
	s.now = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	s.breaker = circuit.New("ledger",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Second),
		circuit.WithClock(func() time.Time { return s.now }),
	)
	s.guarded = ledger.NewGuarded(s.inner, s.breaker, nil)
}

func (s *GuardedSuite) TestAnswersDoNotTripBreaker() {
	ctx := context.Background()
	s.inner.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), sentinel.ErrConflict).Times(3)
	s.inner.EXPECT().FindByIdempotencyToken(gomock.Any(), "t").Return(nil, sentinel.ErrNotFound).Times(3)

	for i := 0; i < 3; i++ {
		_, err := s.guarded.Append(ctx, &models.Record{}, 0)
		s.ErrorIs(err, sentinel.ErrConflict)
		_, err = s.guarded.FindByIdempotencyToken(ctx, "t")
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
	s.False(s.breaker.IsOpen())
	s.NoError(s.guarded.Health(ctx))
}

func (s *GuardedSuite) TestFailuresOpenCircuitAndFailFast() {
	ctx := context.Background()
	down := errors.New("connection refused")
	s.inner.EXPECT().Snapshot(gomock.Any(), "py-101").Return(nil, down).Times(2)

	for i := 0; i < 2; i++ {
		_, err := s.guarded.Snapshot(ctx, "py-101")
		s.ErrorIs(err, down)
	}
	s.True(s.breaker.IsOpen())
	s.Error(s.guarded.Health(ctx))

	s.Run("open circuit does not reach the ledger", func() {
		_, err := s.guarded.Snapshot(ctx, "py-101")
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})

	s.Run("probe after cooldown closes on success", func() {
		s.now = s.now.Add(2 * time.Second)
		s.inner.EXPECT().Snapshot(gomock.Any(), "py-101").Return(&models.Snapshot{CourseID: "py-101"}, nil)

		snap, err := s.guarded.Snapshot(ctx, "py-101")
		s.Require().NoError(err)
		s.Equal("py-101", snap.CourseID)
		s.False(s.breaker.IsOpen())
	})
}

func (s *GuardedSuite) TestCallerCancellationIsNotAFailure() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.inner.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(int64(0), fmt.Errorf("append record: %w", context.Canceled)).Times(3)

	for i := 0; i < 3; i++ {
		_, err := s.guarded.Append(ctx, &models.Record{}, 0)
		s.ErrorIs(err, context.Canceled)
	}
	s.False(s.breaker.IsOpen())
}
