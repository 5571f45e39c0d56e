package state

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type draft struct {
	Stage string
	Title string
}

func TestMemoryGetSetClear(t *testing.T) {
	m := NewMemory[draft]()

	_, ok := m.Get(1)
	assert.False(t, ok)
	assert.False(t, m.InProgress(1))

	m.Set(1, draft{Stage: "await_title"})
	got, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, "await_title", got.Stage)
	assert.True(t, m.InProgress(1))
	assert.False(t, m.InProgress(2))
	assert.Equal(t, 1, m.Len())

	assert.True(t, m.Clear(1))
	assert.False(t, m.Clear(1))
	assert.Equal(t, 0, m.Len())
}

func TestMemoryValueIsCopied(t *testing.T) {
	m := NewMemory[draft]()
	d := draft{Title: "Bike"}
	m.Set(7, d)
	d.Title = "Car"

	got, _ := m.Get(7)
	assert.Equal(t, "Bike", got.Title)
}

func TestMemoryExpire(t *testing.T) {
	m := NewMemory[draft]()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Set(1, draft{})
	now = now.Add(10 * time.Minute)
	m.Set(2, draft{})
	now = now.Add(10 * time.Minute)

	expired := m.Expire(15 * time.Minute)
	assert.Equal(t, []int64{1}, expired)
	assert.False(t, m.InProgress(1))
	assert.True(t, m.InProgress(2))
	assert.Nil(t, m.Expire(0))
}

func TestLockSerializesSameUser(t *testing.T) {
	m := NewMemory[int]()
	var (
		wg      sync.WaitGroup
		active  atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(42)
			defer unlock()
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			v, _ := m.Get(42)
			m.Set(42, v+1)
			active.Add(-1)
		}()
	}
	wg.Wait()

	v, _ := m.Get(42)
	assert.Equal(t, 50, v)
	assert.False(t, overlap.Load())
	assert.Empty(t, m.locks)
}

func TestLockDoesNotBlockOtherUsers(t *testing.T) {
	m := NewMemory[int]()
	unlock := m.Lock(1)
	defer unlock()

	done := make(chan struct{})
	go func() {
		release := m.Lock(2)
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for user 2 blocked on user 1")
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	m := NewMemory[int]()
	unlock := m.Lock(3)
	unlock()
	unlock()

	again := m.Lock(3)
	again()
	assert.Empty(t, m.locks)
}
