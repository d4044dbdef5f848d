package invoice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billdesk/pkg/models"
)

var createdOn = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

func TestScheduleNone(t *testing.T) {
	s := NewScheduler(RemainderDrop)

	for _, mode := range []models.InstallmentMode{models.ModeNone, ""} {
		items, err := s.Schedule(1000, mode, ScheduleParams{Months: 3}, createdOn)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	}
}

func TestScheduleEqualDropsRemainder(t *testing.T) {
	s := NewScheduler(RemainderDrop)

	items, err := s.Schedule(1000, models.ModeEqual, ScheduleParams{Months: 3}, createdOn)
	require.NoError(t, err)
	require.Len(t, items, 3)

	want := []string{"2025-02-15", "2025-03-15", "2025-04-15"}
	for i, it := range items {
		assert.Equal(t, int64(333), it.Amount)
		assert.Equal(t, want[i], it.DueOn)
	}
	assert.Equal(t, int64(999), models.Sum(items))
}

func TestScheduleEqualRemainderToLast(t *testing.T) {
	s := NewScheduler(RemainderToLast)

	items, err := s.Schedule(1000, models.ModeEqual, ScheduleParams{Months: 3}, createdOn)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, int64(333), items[0].Amount)
	assert.Equal(t, int64(333), items[1].Amount)
	assert.Equal(t, int64(334), items[2].Amount)
	assert.Equal(t, int64(1000), models.Sum(items))
}

func TestScheduleEqualShortfallBound(t *testing.T) {
	s := NewScheduler(RemainderDrop)

	for months := 1; months <= 12; months++ {
		for _, total := range []int64{1, 7, 100, 1001, 99999} {
			items, err := s.Schedule(total, models.ModeEqual, ScheduleParams{Months: months}, createdOn)
			require.NoError(t, err)
			require.Len(t, items, months)

			shortfall := total - models.Sum(items)
			assert.GreaterOrEqual(t, shortfall, int64(0))
			assert.Less(t, shortfall, int64(months))
		}
	}
}

func TestScheduleEqualMonthEnd(t *testing.T) {
	s := NewScheduler(RemainderDrop)
	jan31 := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

	items, err := s.Schedule(300, models.ModeEqual, ScheduleParams{Months: 3}, jan31)
	require.NoError(t, err)

	// Calendar months normalise past short months.
	assert.Equal(t, "2025-03-03", items[0].DueOn)
	assert.Equal(t, "2025-03-31", items[1].DueOn)
	assert.Equal(t, "2025-05-01", items[2].DueOn)
}

func TestScheduleEqualRejectsMonths(t *testing.T) {
	s := NewScheduler(RemainderDrop)

	for _, months := range []int{0, -2} {
		_, err := s.Schedule(1000, models.ModeEqual, ScheduleParams{Months: months}, createdOn)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestScheduleManualSkipsIncompletePairs(t *testing.T) {
	s := NewScheduler(RemainderDrop)

	items, err := s.Schedule(800, models.ModeManual, ScheduleParams{
		Amounts:  []string{"500", "", "300"},
		DueDates: []string{"2025-01-01", "2025-02-01", "2025-03-01"},
	}, createdOn)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, models.Installment{Amount: 500, DueOn: "2025-01-01"}, items[0])
	assert.Equal(t, models.Installment{Amount: 300, DueOn: "2025-03-01"}, items[1])
}

func TestScheduleManualSkipsMalformedEntries(t *testing.T) {
	s := NewScheduler(RemainderDrop)

	items, skipped, err := s.schedule(1000, models.ModeManual, ScheduleParams{
		Amounts:  []string{"abc", "200", " 300 ", "400", "12.50"},
		DueDates: []string{"2025-01-01", "01/02/2025", " 2025-03-01 ", "", "2025-05-01", "2025-06-01"},
	}, createdOn)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, int64(300), items[0].Amount)
	assert.Equal(t, "2025-03-01", items[0].DueOn)

	indexes := make([]int, 0, len(skipped))
	for _, sk := range skipped {
		indexes = append(indexes, sk.Index)
	}
	assert.Equal(t, []int{0, 1, 3, 4, 5}, indexes)
}

func TestScheduleManualDoesNotReconcileTotal(t *testing.T) {
	s := NewScheduler(RemainderDrop)

	items, err := s.Schedule(100, models.ModeManual, ScheduleParams{
		Amounts:  []string{"5000"},
		DueDates: []string{"2025-01-01"},
	}, createdOn)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), models.Sum(items))
}

func TestScheduleUnknownMode(t *testing.T) {
	s := NewScheduler(RemainderDrop)

	_, err := s.Schedule(1000, models.InstallmentMode("WEEKLY"), ScheduleParams{}, createdOn)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseRemainderPolicy(t *testing.T) {
	p, err := ParseRemainderPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RemainderDrop, p)

	p, err = ParseRemainderPolicy(" LAST ")
	require.NoError(t, err)
	assert.Equal(t, RemainderToLast, p)
	assert.Equal(t, "last", p.String())

	_, err = ParseRemainderPolicy("round")
	assert.ErrorIs(t, err, ErrValidation)
}
