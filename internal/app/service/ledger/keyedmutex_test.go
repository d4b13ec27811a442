package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("u1")
			defer km.Unlock("u1")
			// read-modify-write without further synchronization; the keyed
			// mutex is the only thing preventing a lost update
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	require.Equal(t, 64, counter)
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	km.Lock("u1")
	acquired := make(chan struct{})
	go func() {
		km.Lock("u2")
		close(acquired)
		km.Unlock("u2")
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different key blocked")
	}
	km.Unlock("u1")
}

func TestKeyedMutex_EntriesAreReleased(t *testing.T) {
	km := newKeyedMutex()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("u1")
			km.Unlock("u1")
		}()
	}
	wg.Wait()

	km.mu.Lock()
	defer km.mu.Unlock()
	require.Empty(t, km.locks)
}
