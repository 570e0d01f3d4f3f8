package process

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineBufferCompletesWhenAllPipesEnd(t *testing.T) {
	buf := NewLineBuffer(2, 8)

	var wg sync.WaitGroup
	for _, lines := range [][]string{{"out1", "out2"}, {"err1"}} {
		wg.Add(1)
		go func(lines []string) {
			defer wg.Done()
			for _, line := range lines {
				buf.Push(line)
			}
			buf.EndOfStream()
		}(lines)
	}

	var got []string
	for line := range buf.Lines() {
		got = append(got, line)
	}
	wg.Wait()

	assert.Len(t, got, 3)
	assert.True(t, buf.Complete())
}

func TestLineBufferZeroPipesIsComplete(t *testing.T) {
	buf := NewLineBuffer(0, 1)
	assert.True(t, buf.Complete())
	_, open := <-buf.Lines()
	assert.False(t, open)
}

func TestLineBufferExtraEndOfStreamIsIgnored(t *testing.T) {
	buf := NewLineBuffer(1, 1)
	buf.EndOfStream()
	buf.EndOfStream()
	assert.True(t, buf.Complete())
}
