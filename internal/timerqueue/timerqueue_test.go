package timerqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPopExpiredOrdersByDeadline(t *testing.T) {
	q := New[string]()
	base := time.Unix(0, 0)

	q.Add(base.Add(3*time.Second), "third")
	q.Add(base.Add(1*time.Second), "first")
	q.Add(base.Add(2*time.Second), "second")

	expired := q.PopExpired(base.Add(5 * time.Second))
	require.Equal(t, []string{"first", "second", "third"}, expired)
	require.Equal(t, 0, q.Len())
}

func TestPopExpiredLeavesFutureEntries(t *testing.T) {
	q := New[int]()
	base := time.Unix(0, 0)

	q.Add(base.Add(1*time.Second), 1)
	q.Add(base.Add(10*time.Second), 2)

	expired := q.PopExpired(base.Add(2 * time.Second))
	require.Equal(t, []int{1}, expired)
	require.Equal(t, 1, q.Len())
}

func TestDelayUntilNext(t *testing.T) {
	q := New[int]()
	now := time.Unix(0, 0)

	_, ok := q.DelayUntilNext(now)
	require.False(t, ok)

	q.Add(now.Add(5*time.Second), 1)
	delay, ok := q.DelayUntilNext(now)
	require.True(t, ok)
	require.Equal(t, 5*time.Second, delay)

	delay, ok = q.DelayUntilNext(now.Add(10 * time.Second))
	require.True(t, ok)
	require.Equal(t, time.Duration(0), delay)
}

func TestPeekMinDoesNotRemove(t *testing.T) {
	q := New[int]()
	base := time.Unix(0, 0)
	q.Add(base.Add(2*time.Second), 2)
	q.Add(base.Add(1*time.Second), 1)

	deadline, key, ok := q.PeekMin()
	require.True(t, ok)
	require.Equal(t, 1, key)
	require.Equal(t, base.Add(1*time.Second), deadline)
	require.Equal(t, 2, q.Len())
}

func TestPopAllDrainsRegardlessOfDeadline(t *testing.T) {
	q := New[int]()
	base := time.Unix(0, 0)
	q.Add(base.Add(100*time.Second), 1)
	q.Add(base.Add(1*time.Second), 2)

	all := q.PopAll()
	require.Equal(t, []int{2, 1}, all)
	require.Equal(t, 0, q.Len())
}
