package main

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSerializeSkipsOverlappingRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	run := serialize(zap.NewNop(), func() {
		if runs.Add(1) == 1 {
			close(started)
			<-release
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		run()
	}()

	// While the first invocation is blocked mid-run, further ticks must
	// be dropped rather than run concurrently.
	<-started
	run()
	run()
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), runs.Load())

	// Once the run finishes, the next tick executes again.
	run()
	assert.Equal(t, int32(2), runs.Load())
}
