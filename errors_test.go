package unittest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError(t *testing.T) {
	cause := errors.New("no such file")
	err := NewRuntimeError(cause)

	assert.Equal(t, "runtime error: no such file", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRuntimeError(err))
	assert.True(t, IsRuntimeError(fmt.Errorf("setup: %w", err)))
	assert.True(t, IsRuntimeError(errors.Join(errors.New("other"), err)))
	assert.False(t, IsRuntimeError(cause))
	assert.False(t, IsRuntimeError(nil))
}

func TestTestFailureError(t *testing.T) {
	err := NewTestFailureError(3, 2)

	assert.Equal(t, "test failure: 2 of 5 tests failed", err.Error())
	assert.True(t, IsTestFailureError(err))
	assert.True(t, IsTestFailureError(fmt.Errorf("start: %w", err)))
	assert.False(t, IsTestFailureError(NewRuntimeError(errors.New("x"))))
	assert.False(t, IsRuntimeError(err))
	assert.False(t, IsTestFailureError(nil))
}
