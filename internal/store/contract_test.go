package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func sampleReport(id int64) models.Report {
	return models.Report{
		ID:           id,
		TargetUserID: "12345",
		Reason:       "spam",
		ReporterID:   "A",
	}
}

// testStoreContract exercises behaviour every Store implementation shares.
func testStoreContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		s := open(t)
		reports, err := s.LoadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, reports)

		next, err := s.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), next)
	})

	t.Run("append then load round-trips every field", func(t *testing.T) {
		s := open(t)
		want := models.Report{
			ID:           7,
			TargetUserID: "998877",
			Reason:       "posting scam links",
			ReporterID:   "1001",
			IsClosed:     true,
			ClaimedBy:    strPtr("M1"),
			ResolvedBy:   strPtr("M1"),
			CloseReason:  strPtr("banned"),
		}
		require.NoError(t, s.Append(ctx, want))

		reports, err := s.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		if diff := cmp.Diff(want, reports[0]); diff != "" {
			t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
		}

		got, err := s.Get(ctx, 7)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(want, got))
	})

	t.Run("append rejects duplicate ids", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Append(ctx, sampleReport(1)))
		err := s.Append(ctx, sampleReport(1))
		assert.ErrorIs(t, err, ErrDuplicateID)

		reports, err := s.LoadAll(ctx)
		require.NoError(t, err)
		assert.Len(t, reports, 1)
	})

	t.Run("next id follows the highest id", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Append(ctx, sampleReport(3)))
		require.NoError(t, s.Append(ctx, sampleReport(9)))
		require.NoError(t, s.Append(ctx, sampleReport(5)))

		next, err := s.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(10), next)

		reports, err := s.LoadAll(ctx)
		require.NoError(t, err)
		ids := make([]int64, 0, len(reports))
		for _, r := range reports {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []int64{3, 5, 9}, ids)
	})

	t.Run("update applies mutation", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Append(ctx, sampleReport(1)))
		require.NoError(t, s.Append(ctx, sampleReport(2)))

		updated, err := s.Update(ctx, 2, func(r *models.Report) error {
			r.ClaimedBy = strPtr("M1")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "M1", updated.ClaimedByID())

		got, err := s.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "M1", got.ClaimedByID())

		untouched, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, untouched.ClaimedBy)
	})

	t.Run("update of missing report", func(t *testing.T) {
		s := open(t)
		called := false
		_, err := s.Update(ctx, 42, func(r *models.Report) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, called)

		_, err = s.Get(ctx, 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("failed mutation leaves state unchanged", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Append(ctx, sampleReport(1)))
		errGuard := errors.New("guard")

		_, err := s.Update(ctx, 1, func(r *models.Report) error {
			r.ClaimedBy = strPtr("M1")
			return errGuard
		})
		assert.ErrorIs(t, err, errGuard)

		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, got.ClaimedBy)
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Append(ctx, sampleReport(1)))
		errTaken := errors.New("taken")

		const workers = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []string
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(staff string) {
				defer wg.Done()
				_, err := s.Update(ctx, 1, func(r *models.Report) error {
					if r.ClaimedBy != nil {
						return errTaken
					}
					r.ClaimedBy = strPtr(staff)
					return nil
				})
				if err == nil {
					mu.Lock()
					winners = append(winners, staff)
					mu.Unlock()
				}
			}(string(rune('a' + i)))
		}
		wg.Wait()

		require.Len(t, winners, 1)
		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, winners[0], got.ClaimedByID())
	})
}
