package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct {
	noteID string
	field  Field
	value  string
}

// recorder is a WriteFunc that records calls and can be slowed down or failed.
type recorder struct {
	mu     sync.Mutex
	writes []write
	delay  time.Duration
	err    error
}

func (r *recorder) write(ctx context.Context, noteID string, field Field, value string) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, write{noteID, field, value})
	return r.err
}

func (r *recorder) all() []write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]write(nil), r.writes...)
}

func TestScheduler_CoalescesTyping(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(SchedulerConfig{Delay: 50 * time.Millisecond, Write: rec.write})
	defer s.Close()

	require.NoError(t, s.Schedule("n1", FieldContent, "a"))
	require.NoError(t, s.Schedule("n1", FieldContent, "ab"))
	require.NoError(t, s.Schedule("n1", FieldContent, "abc"))
	assert.Equal(t, StateTyping, s.Status("n1", FieldContent).State)
	assert.True(t, s.Pending("n1", FieldContent))

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []write{{"n1", FieldContent, "abc"}}, rec.all())
	assert.Equal(t, StateSaved, s.Status("n1", FieldContent).State)
	assert.False(t, s.Pending("n1", FieldContent))
}

func TestScheduler_FieldsAreIndependent(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(SchedulerConfig{Delay: 30 * time.Millisecond, Write: rec.write})
	defer s.Close()

	require.NoError(t, s.Schedule("n1", FieldTitle, "T"))
	require.NoError(t, s.Schedule("n1", FieldContent, "C"))

	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []write{{"n1", FieldTitle, "T"}, {"n1", FieldContent, "C"}}, rec.all())
}

func TestScheduler_ErrorStateUntilNextEdit(t *testing.T) {
	rec := &recorder{err: errors.New("offline")}
	var (
		mu     sync.Mutex
		states []SaveState
	)
	s := NewScheduler(SchedulerConfig{
		Delay: 20 * time.Millisecond,
		Write: rec.write,
		OnState: func(_ string, _ Field, st FieldStatus) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, st.State)
		},
	})
	defer s.Close()

	require.NoError(t, s.Schedule("n1", FieldContent, "x"))
	require.Eventually(t, func() bool {
		return s.Status("n1", FieldContent).State == StateError
	}, time.Second, 5*time.Millisecond)
	assert.EqualError(t, s.Status("n1", FieldContent).Err, "offline")

	require.NoError(t, s.Schedule("n1", FieldContent, "xy"))
	assert.Equal(t, StateTyping, s.Status("n1", FieldContent).State)
	assert.NoError(t, s.Status("n1", FieldContent).Err)
	s.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []SaveState{StateTyping, StateSaving, StateError, StateTyping}, states)
}

func TestScheduler_LatestValueWinsOverSlowWrite(t *testing.T) {
	rec := &recorder{delay: 80 * time.Millisecond}
	s := NewScheduler(SchedulerConfig{Delay: 10 * time.Millisecond, Write: rec.write})
	defer s.Close()

	require.NoError(t, s.Schedule("n1", FieldContent, "first"))
	require.Eventually(t, func() bool {
		return s.Status("n1", FieldContent).State == StateSaving
	}, time.Second, 2*time.Millisecond)

	// Typed while the first write is in flight.
	require.NoError(t, s.Schedule("n1", FieldContent, "second"))

	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 5*time.Millisecond)
	writes := rec.all()
	assert.Equal(t, "first", writes[0].value)
	assert.Equal(t, "second", writes[1].value)
	require.Eventually(t, func() bool {
		return s.Status("n1", FieldContent).State == StateSaved
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_SaveNowAndFlush(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(SchedulerConfig{Delay: time.Hour, Write: rec.write})
	defer s.Close()

	require.NoError(t, s.SaveNow("n1", FieldContent, "pasted"))
	assert.Equal(t, []write{{"n1", FieldContent, "pasted"}}, rec.all())

	require.NoError(t, s.Schedule("n1", FieldTitle, "later"))
	require.NoError(t, s.Schedule("n2", FieldContent, "other"))
	require.NoError(t, s.Flush(context.Background()))
	assert.Len(t, rec.all(), 3)
	assert.False(t, s.Pending("n1", FieldTitle))
}

func TestScheduler_CancelDropsPending(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(SchedulerConfig{Delay: 20 * time.Millisecond, Write: rec.write})
	defer s.Close()

	require.NoError(t, s.Schedule("n1", FieldContent, "doomed"))
	s.Cancel("n1")
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.all())
	assert.Equal(t, StateIdle, s.NoteStatus("n1").State)
}

func TestScheduler_Closed(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(SchedulerConfig{Delay: 20 * time.Millisecond, Write: rec.write})
	require.NoError(t, s.Schedule("n1", FieldContent, "dropped"))
	s.Close()

	assert.Error(t, s.Schedule("n1", FieldContent, "x"))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestScheduler_NoteStatusAggregates(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(SchedulerConfig{Delay: time.Hour, Write: rec.write})
	defer s.Close()

	require.NoError(t, s.SaveNow("n1", FieldTitle, "t"))
	assert.Equal(t, StateSaved, s.NoteStatus("n1").State)
	require.NoError(t, s.Schedule("n1", FieldContent, "c"))
	assert.Equal(t, StateTyping, s.NoteStatus("n1").State)
}

func TestScheduler_WaitBlocksOnInFlightWrite(t *testing.T) {
	rec := &recorder{delay: 100 * time.Millisecond}
	s := NewScheduler(SchedulerConfig{Delay: 10 * time.Millisecond, Write: rec.write})
	defer s.Close()

	require.NoError(t, s.Schedule("n1", FieldContent, "draft"))
	require.Eventually(t, func() bool {
		return s.Status("n1", FieldContent).State == StateSaving
	}, time.Second, time.Millisecond)
	assert.Empty(t, rec.all(), "write still in flight")

	require.NoError(t, s.Wait(context.Background(), "n1"))
	assert.Len(t, rec.all(), 1)

	// Nothing in flight: returns at once.
	require.NoError(t, s.Wait(context.Background(), "n1", FieldTitle))
}

func TestScheduler_WaitHonorsContext(t *testing.T) {
	rec := &recorder{delay: 200 * time.Millisecond}
	s := NewScheduler(SchedulerConfig{Delay: 10 * time.Millisecond, Write: rec.write})
	defer s.Close()

	require.NoError(t, s.Schedule("n1", FieldTitle, "slow"))
	require.Eventually(t, func() bool { return s.Pending("n1", FieldTitle) && s.Status("n1", FieldTitle).State == StateSaving }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx, "n1", FieldTitle), context.DeadlineExceeded)
}

func TestScheduler_CancelDuringWriteRemovesSlot(t *testing.T) {
	rec := &recorder{delay: 50 * time.Millisecond}
	s := NewScheduler(SchedulerConfig{Delay: 10 * time.Millisecond, Write: rec.write})
	defer s.Close()

	require.NoError(t, s.Schedule("n1", FieldContent, "draft"))
	require.Eventually(t, func() bool {
		return s.Status("n1", FieldContent).State == StateSaving
	}, time.Second, time.Millisecond)

	s.Cancel("n1")
	assert.True(t, s.Pending("n1", FieldContent), "in-flight write still counts")
	require.NoError(t, s.Wait(context.Background(), "n1"))

	s.mu.Lock()
	_, kept := s.slots[slotKey{"n1", FieldContent}]
	s.mu.Unlock()
	assert.False(t, kept)
	assert.False(t, s.Pending("n1", FieldContent))
}
