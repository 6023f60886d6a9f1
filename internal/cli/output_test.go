package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError(t *testing.T) {
	bare := NewExitError(ExitCommandError, "bad flag")
	assert.Equal(t, "bad flag", bare.Error())
	assert.Nil(t, bare.Unwrap())

	cause := errors.New("disk full")
	wrapped := WrapExitError(ExitFailure, "write results", cause)
	assert.Equal(t, "write results: disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestGetExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), ExitFailure},
		{"command error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"failure", NewExitError(ExitFailure, "solve died"), ExitFailure},
		{"wrapped deep", fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "inner")), ExitCommandError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, GetExitCode(tc.err))
		})
	}
}
