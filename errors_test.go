package memcev

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newError(KindProtocol, "server reported an error", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "protocol")
	assert.Contains(t, err.Error(), "boom")
}

func TestErrorWithoutCause(t *testing.T) {
	err := newError(KindValidation, "bad key", nil)
	assert.Nil(t, err.Unwrap())
	assert.Contains(t, err.Error(), "validation")
	assert.Contains(t, err.Error(), "bad key")
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindValidation: "validation",
		KindConnect:    "connect",
		KindProtocol:   "protocol",
		KindTimeout:    "timeout",
		KindStopped:    "stopped",
		KindInternal:   "internal",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}
