package testutil

import (
	"sync"
	"testing"
)

// RunConcurrent runs fn on n goroutines and waits for all of them.
// Returned errors and panics are reported against the worker that produced them.
func RunConcurrent(t *testing.T, n int, fn func(workerID int) error) {
	t.Helper()

	var wg sync.WaitGroup

	errs := make([]error, n)

	for i := range n {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("worker %d panicked: %v", workerID, r)
				}
			}()

			errs[workerID] = fn(workerID)
		}(i)
	}

	wg.Wait()

	for workerID, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", workerID, err)
		}
	}
}
