package positional

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfFindsWrappedError(t *testing.T) {
	base := newError(ErrKindMalformedInput, nil, "bad evidence")
	wrapped := fmt.Errorf("pipeline: %w", base)
	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrKindMalformedInput, kind)
}

func TestKindOfReportsNotFoundForPlainError(t *testing.T) {
	_, ok := KindOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestErrKindStringNames(t *testing.T) {
	assert.Equal(t, "MalformedInput", ErrKindMalformedInput.String())
	assert.Equal(t, "ResourceFailure", ErrKindResourceFailure.String())
}
