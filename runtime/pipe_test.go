package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipeDrainsUntilComplete(t *testing.T) {
	lines := make(chan string, 4)
	lines <- "one"
	lines <- "two"
	close(lines)

	pipe := NewPipe(lines, nil)
	assert.True(t, Equal(NewList(String("one"), String("two")), pipe.Drain()))

	// A drained pipe is not restartable.
	_, ok := pipe.Next()
	assert.False(t, ok)
}

func TestPipeStop(t *testing.T) {
	stopped := false
	pipe := NewPipe(make(chan string), func() { stopped = true })
	pipe.Stop()
	assert.True(t, stopped)
}
