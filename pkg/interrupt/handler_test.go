package interrupt

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerRunsCallbacksOnce(t *testing.T) {
	h := New()
	defer h.Stop()

	count := 0
	h.Register(func() { count++ })
	h.Register(func() { count += 10 })

	h.Trigger()
	h.Trigger()

	assert.Equal(t, 11, count, "callbacks run exactly once")
}

func TestRegisterAfterTriggerRunsImmediately(t *testing.T) {
	h := New()
	defer h.Stop()

	h.Trigger()

	ran := false
	h.Register(func() { ran = true })
	assert.True(t, ran, "late registrants are not silently skipped")
}

func TestSecondSignalForcesExit(t *testing.T) {
	h := New()
	defer h.Stop()

	exited := make(chan int, 1)
	h.exit = func(code int) { exited <- code }

	// A slow callback keeps the first interrupt busy.
	cleanupStarted := make(chan struct{})
	release := make(chan struct{})
	h.Register(func() {
		close(cleanupStarted)
		<-release
	})

	h.Start()
	h.signals <- os.Interrupt
	<-cleanupStarted
	h.signals <- os.Interrupt

	select {
	case code := <-exited:
		assert.Equal(t, forcedExitCode, code)
	case <-time.After(2 * time.Second):
		t.Fatal("second interrupt did not force termination")
	}
	close(release)
}

func TestStopIsIdempotent(t *testing.T) {
	h := New()
	h.Start()
	require.NotPanics(t, func() {
		h.Stop()
		h.Stop()
	})
}
