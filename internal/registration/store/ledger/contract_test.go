package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/suite"

	"registrar/internal/registration/models"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/testutil"
)

// ContractSuite is the behaviour every Ledger backend must share. Backends run
// it by embedding it and supplying newLedger (and optionally reset).
type ContractSuite struct {
	suite.Suite
	newLedger func() Ledger
	reset     func()
	ledger    Ledger
	ctx       context.Context
}

func (s *ContractSuite) SetupTest() {
	if s.reset != nil {
		s.reset()
	}
	s.ctx = context.Background()
	s.ledger = s.newLedger()
}

var contractTime = time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)

func newRecord(courseID, submitter, token string) *models.Record {
	return &models.Record{
		CourseID:         courseID,
		Kind:             models.KindRegistration,
		SubmitterID:      submitter,
		IdempotencyToken: token,
		SubmittedAt:      contractTime,
		AcceptedAt:       contractTime.Add(time.Second),
	}
}

// =============================================================================
// Snapshot and append
// =============================================================================

func (s *ContractSuite) TestEmptyCourseSnapshot() {
	snap, err := s.ledger.Snapshot(s.ctx, "empty-course")
	s.Require().NoError(err)
	s.Empty(snap.Records)
	s.Equal("empty-course", snap.CourseID)
}

func (s *ContractSuite) TestAppendAssignsGapFreeSequences() {
	for i := 1; i <= 5; i++ {
		snap, err := s.ledger.Snapshot(s.ctx, "py-101")
		s.Require().NoError(err)

		seq, err := s.ledger.Append(s.ctx, newRecord("py-101", fmt.Sprintf("s-%d", i), fmt.Sprintf("t-%d", i)), snap.Version)
		s.Require().NoError(err)
		s.Equal(int64(i), seq)
	}

	snap, err := s.ledger.Snapshot(s.ctx, "py-101")
	s.Require().NoError(err)
	s.Require().Len(snap.Records, 5)
	for i, r := range snap.Records {
		s.Equal(int64(i+1), r.Sequence)
	}
}

func (s *ContractSuite) TestCoursesAreIndependent() {
	snapA, err := s.ledger.Snapshot(s.ctx, "course-a")
	s.Require().NoError(err)
	_, err = s.ledger.Append(s.ctx, newRecord("course-a", "s-1", "t-a"), snapA.Version)
	s.Require().NoError(err)

	snapB, err := s.ledger.Snapshot(s.ctx, "course-b")
	s.Require().NoError(err)
	seq, err := s.ledger.Append(s.ctx, newRecord("course-b", "s-1", "t-b"), snapB.Version)
	s.Require().NoError(err)
	s.Equal(int64(1), seq)
}

func (s *ContractSuite) TestStaleVersionConflicts() {
	snap, err := s.ledger.Snapshot(s.ctx, "py-101")
	s.Require().NoError(err)

	_, err = s.ledger.Append(s.ctx, newRecord("py-101", "s-1", "t-1"), snap.Version)
	s.Require().NoError(err)

	s.Run("append against the old version is refused", func() {
		_, err := s.ledger.Append(s.ctx, newRecord("py-101", "s-2", "t-2"), snap.Version)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("nothing was written", func() {
		after, err := s.ledger.Snapshot(s.ctx, "py-101")
		s.Require().NoError(err)
		s.Len(after.Records, 1)

		_, err = s.ledger.FindByIdempotencyToken(s.ctx, "t-2")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ContractSuite) TestVersionAheadOfLedgerConflicts() {
	_, err := s.ledger.Append(s.ctx, newRecord("py-101", "s-1", "t-1"), models.Version(41))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *ContractSuite) TestDuplicateTokenRefused() {
	snap, err := s.ledger.Snapshot(s.ctx, "py-101")
	s.Require().NoError(err)
	_, err = s.ledger.Append(s.ctx, newRecord("py-101", "s-1", "t-1"), snap.Version)
	s.Require().NoError(err)

	snap, err = s.ledger.Snapshot(s.ctx, "py-101")
	s.Require().NoError(err)
	_, err = s.ledger.Append(s.ctx, newRecord("py-101", "s-1", "t-1"), snap.Version)
	s.ErrorIs(err, ErrDuplicateToken)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *ContractSuite) TestFindByIdempotencyToken() {
	rec := newRecord("py-101", "s-1", "t-1")
	rec.Applicant = &models.Applicant{FullName: "Omar", Age: 10, Level: models.LevelPrimary, Phone: "0501234567", Email: "o@example.com"}
	_, err := s.ledger.Append(s.ctx, rec, 0)
	s.Require().NoError(err)

	s.Run("returns the committed record", func() {
		got, err := s.ledger.FindByIdempotencyToken(s.ctx, "t-1")
		s.Require().NoError(err)
		s.Equal(int64(1), got.Sequence)
		s.Equal("s-1", got.SubmitterID)
		s.Equal(models.KindRegistration, got.Kind)
		s.True(contractTime.Equal(got.SubmittedAt))
		s.Require().NotNil(got.Applicant)
		s.Equal("Omar", got.Applicant.FullName)
	})

	s.Run("missing token is not found", func() {
		_, err := s.ledger.FindByIdempotencyToken(s.ctx, "nope")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ContractSuite) TestCancelRecordRoundTrip() {
	_, err := s.ledger.Append(s.ctx, newRecord("py-101", "s-1", "t-1"), 0)
	s.Require().NoError(err)

	cancel := newRecord("py-101", "s-1", "w-1")
	cancel.Kind = models.KindCancel
	cancel.CancelsSequence = 1
	cancel.Reason = "moved away"
	cancel.ActorID = "staff-1"
	seq, err := s.ledger.Append(s.ctx, cancel, 1)
	s.Require().NoError(err)
	s.Equal(int64(2), seq)

	snap, err := s.ledger.Snapshot(s.ctx, "py-101")
	s.Require().NoError(err)
	s.Equal(0, snap.ActiveCount())
	s.Require().Len(snap.Records, 2)
	s.Equal(models.KindCancel, snap.Records[1].Kind)
	s.Equal(int64(1), snap.Records[1].CancelsSequence)
	s.Equal("moved away", snap.Records[1].Reason)
	s.Equal("staff-1", snap.Records[1].ActorID)
}

// =============================================================================
// Concurrency
// =============================================================================

// TestConcurrentAppendsOnSameVersion: many writers built on the same snapshot,
// exactly one commits and the rest see a version conflict.
func (s *ContractSuite) TestConcurrentAppendsOnSameVersion() {
	snap, err := s.ledger.Snapshot(s.ctx, "py-101")
	s.Require().NoError(err)

	const writers = 16
	res := testutil.RunConcurrent(writers, func(idx int) error {
		_, err := s.ledger.Append(s.ctx, newRecord("py-101", fmt.Sprintf("s-%d", idx), fmt.Sprintf("t-%d", idx)), snap.Version)
		return err
	})

	s.Equal(int32(1), res.Successes)
	s.Equal(int32(writers-1), res.Conflicts)
	s.Zero(res.Errors)

	after, err := s.ledger.Snapshot(s.ctx, "py-101")
	s.Require().NoError(err)
	s.Len(after.Records, 1)
}

// TestConcurrentSameToken: the same token raced across courses commits at most once.
func (s *ContractSuite) TestConcurrentSameToken() {
	const writers = 8
	res := testutil.RunConcurrent(writers, func(idx int) error {
		_, err := s.ledger.Append(s.ctx, newRecord(fmt.Sprintf("course-%d", idx), "s-1", "shared"), 0)
		return err
	})

	s.Equal(int32(1), res.Successes)
	s.Equal(int32(writers-1), res.Duplicates+res.Conflicts)
	s.Zero(res.Errors)
}

func (s *ContractSuite) TestRejectsInvalidAppend() {
	_, err := s.ledger.Append(s.ctx, nil, 0)
	s.Error(err)

	_, err = s.ledger.Append(s.ctx, &models.Record{CourseID: "py-101"}, 0)
	s.Error(err)
}
