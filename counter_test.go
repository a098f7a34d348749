package featdetect

import (
	"github.com/stretchr/testify/assert"
	"sync"
	"testing"
)

func TestCounterConcurrent(t *testing.T) {

	var c counter
	var wg sync.WaitGroup

	seen := make([]int64, 0, 100)
	var mu sync.Mutex

	for i := 0; i < 100; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			n := c.increment()

			mu.Lock()
			seen = append(seen, n)
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(100), c.value())
	assert.Len(t, seen, 100)

	// every count is handed out exactly once
	unique := make(map[int64]bool)

	for _, n := range seen {
		unique[n] = true
	}

	assert.Len(t, unique, 100)
}
