package goplus

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitGroup_RecoversPanic(t *testing.T) {
	g := NewWaitGroup()
	var ran atomic.Int32

	g.Go(func() { panic("boom") })
	g.Go(func() { ran.Add(1) })
	g.Wait()

	assert.Equal(t, int32(1), ran.Load())
	assert.Equal(t, int64(0), g.Running())
}

func TestSafe(t *testing.T) {
	err := Safe(func() { panic("bad input") })
	assert.EqualError(t, err, "panic: bad input")

	assert.NoError(t, Safe(func() {}))
}
