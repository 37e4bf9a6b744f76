package service

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"registrar/internal/catalog"
	catalogmodels "registrar/internal/catalog/models"
	"registrar/internal/registration/models"
	"registrar/internal/registration/store/ledger"
	"registrar/pkg/testutil"
)

type submission struct {
	submitter int
	token     int
}

func drawSubmissions(t *rapid.T) []submission {
	return rapid.SliceOfN(rapid.Custom(func(t *rapid.T) submission {
		return submission{
			submitter: rapid.IntRange(0, 7).Draw(t, "submitter"),
			token:     rapid.IntRange(0, 11).Draw(t, "token"),
		}
	}), 1, 24).Draw(t, "submissions")
}

// checkLedger asserts every invariant the ledger must hold for a course.
func checkLedger(t *rapid.T, snap *models.Snapshot, capacity int) {
	seen := map[string]bool{}
	for i, rec := range snap.Records {
		if rec.Sequence != int64(i+1) {
			t.Fatalf("sequence gap: record %d has sequence %d", i, rec.Sequence)
		}
		if seen[rec.IdempotencyToken] {
			t.Fatalf("token %s produced two records", rec.IdempotencyToken)
		}
		seen[rec.IdempotencyToken] = true
	}

	active := snap.Active()
	if len(active) > capacity {
		t.Fatalf("capacity %d exceeded: %d active", capacity, len(active))
	}
	perSubmitter := map[string]int{}
	for _, rec := range active {
		perSubmitter[rec.SubmitterID]++
		if perSubmitter[rec.SubmitterID] > 1 {
			t.Fatalf("submitter %s holds two active registrations", rec.SubmitterID)
		}
	}
}

func TestProperty_ConcurrentSubmissionsKeepInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 6).Draw(t, "capacity")
		subs := drawSubmissions(t)

		ctx := context.Background()
		l := ledger.NewMemory()
		cat, err := newCatalogForProperty(capacity)
		if err != nil {
			t.Fatalf("catalog: %v", err)
		}
		engine, err := New(cat, l,
			WithLogger(discardLogger()),
			WithResolverOptions(WithBackoff(0, 0), WithRetryBudget(len(subs)+1)),
		)
		if err != nil {
			t.Fatalf("engine: %v", err)
		}

		results := testutil.RunConcurrentCollect(len(subs), func(i int) *models.Result {
			req := registrationRequest("prop-1", fmt.Sprintf("s-%d", subs[i].submitter), fmt.Sprintf("tok-%d-%d", subs[i].submitter, subs[i].token))
			res, err := engine.Submit(ctx, req)
			if err != nil {
				return nil
			}
			return res
		})

		accepted := map[string]int{}
		for _, r := range results {
			if r == nil {
				t.Fatalf("unexpected error result")
			}
			if r.Outcome == models.OutcomeContended || r.Outcome == models.OutcomeFailed {
				t.Fatalf("unexpected %s with a budget larger than the number of writers", r.Outcome)
			}
			if r.Outcome == models.OutcomeAccepted {
				accepted[r.Record.SubmitterID]++
			}
		}

		snap, err := l.Snapshot(ctx, "prop-1")
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		checkLedger(t, snap, capacity)

		if len(snap.Records) > capacity {
			t.Fatalf("no cancels were issued, yet %d records exceed capacity %d", len(snap.Records), capacity)
		}
		for submitter := range accepted {
			if _, ok := snap.ActiveFor(submitter); !ok {
				t.Fatalf("submitter %s was told accepted but holds no record", submitter)
			}
		}
	})
}

func TestProperty_ReplayReturnsSameSequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		cat, err := newCatalogForProperty(20)
		if err != nil {
			t.Fatalf("catalog: %v", err)
		}
		engine, err := New(cat, ledger.NewMemory(), WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("engine: %v", err)
		}

		n := rapid.IntRange(1, 10).Draw(t, "submitters")
		repeats := rapid.IntRange(2, 4).Draw(t, "repeats")
		for i := 0; i < n; i++ {
			req := func() *models.RegistrationRequest {
				return registrationRequest("prop-1", fmt.Sprintf("s-%d", i), fmt.Sprintf("t-%d", i))
			}
			first, err := engine.Submit(ctx, req())
			if err != nil || first.Outcome != models.OutcomeAccepted {
				t.Fatalf("first submit: %v %+v", err, first)
			}
			for r := 0; r < repeats; r++ {
				again, err := engine.Submit(ctx, req())
				if err != nil {
					t.Fatalf("replay: %v", err)
				}
				if !again.Replayed || again.Sequence() != first.Sequence() {
					t.Fatalf("replay returned %d, want %d", again.Sequence(), first.Sequence())
				}
			}
		}
	})
}

func TestProperty_SequencesStayGapFreeWithWithdrawals(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		capacity := rapid.IntRange(1, 4).Draw(t, "capacity")
		l := ledger.NewMemory()
		cat, err := newCatalogForProperty(capacity)
		if err != nil {
			t.Fatalf("catalog: %v", err)
		}
		engine, err := New(cat, l, WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("engine: %v", err)
		}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			submitter := fmt.Sprintf("s-%d", rapid.IntRange(0, 5).Draw(t, "submitter"))
			if rapid.Bool().Draw(t, "withdraw") {
				_, err = engine.Withdraw(ctx, &models.WithdrawRequest{
					CourseID: "prop-1", SubmitterID: submitter, IdempotencyToken: fmt.Sprintf("w-%d", i),
				})
			} else {
				_, err = engine.Submit(ctx, registrationRequest("prop-1", submitter, fmt.Sprintf("t-%d", i)))
			}
			if err != nil {
				t.Fatalf("step %d: %v", i, err)
			}

			snap, err := l.Snapshot(ctx, "prop-1")
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			checkLedger(t, snap, capacity)
		}
	})
}

func newCatalogForProperty(capacity int) (Catalog, error) {
	return catalog.NewStatic([]catalogmodels.Course{testCourse("prop-1", capacity)})
}
