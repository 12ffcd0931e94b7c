package lifecycle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	var km keyedMutex
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("d1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
	require.Empty(t, km.locks)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	var km keyedMutex
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		km.Lock("b")()
		close(done)
	}()
	<-done
}
