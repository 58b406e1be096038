package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapChain(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("outer").Wrap(e2)

	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e.Unwrap() == e2)
}

func TestWrapKeepsSentinelIntact(t *testing.T) {
	sentinel := New("not found")
	wrapped := sentinel.Wrap(fmt.Errorf("backend says no"))

	assert.True(t, Is(wrapped, sentinel))
	assert.Nil(t, sentinel.Unwrap())
	assert.Contains(t, wrapped.Error(), "backend says no")
	assert.Equal(t, "not found", sentinel.Error())
}

func TestAs(t *testing.T) {
	var target *Error
	assert.True(t, As(New("some").Wrap(New("inner")), &target))
}
