package journal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournal_RecordAttempt(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	require.NoError(t, j.RecordAttempt(ctx, &Attempt{
		ID:             "a1",
		ReportID:       10,
		SubscriptionID: 1,
		Transport:      "webhook",
		StatusCode:     204,
		ExpectedCode:   204,
		Success:        true,
	}))

	attempts := j.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, "a1", attempts[0].ID)
	assert.True(t, attempts[0].Success)
	// The timestamp is filled in when the caller leaves it zero.
	assert.False(t, attempts[0].At.IsZero())
}

func TestMemoryJournal_KeepsExplicitTimestamp(t *testing.T) {
	j := NewMemoryJournal()
	at := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordAttempt(context.Background(), &Attempt{ID: "a1", At: at}))
	assert.Equal(t, at, j.Attempts()[0].At)
}

func TestMemoryJournal_RecordDeadLetter(t *testing.T) {
	j := NewMemoryJournal()

	require.NoError(t, j.RecordDeadLetter(context.Background(), &DeadLetter{
		ID:             "d1",
		ReportID:       10,
		SubscriptionID: 2,
		Attempts:       3,
		LastStatus:     500,
	}))

	letters := j.DeadLetters()
	require.Len(t, letters, 1)
	assert.Equal(t, 3, letters[0].Attempts)
	assert.False(t, letters[0].At.IsZero())
}

func TestMemoryJournal_ConcurrentRecords(t *testing.T) {
	j := NewMemoryJournal()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = j.RecordAttempt(context.Background(), &Attempt{ReportID: 1})
		}()
	}
	wg.Wait()

	assert.Len(t, j.Attempts(), 50)
}
