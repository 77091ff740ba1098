package core

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionEqual(t *testing.T) {
	tests := []struct {
		a, b Version
		want bool
	}{
		{"v1.0.0", "v1.0.0", true},
		{"v1.0.0", "1.0.0", true},
		{"v1.0.0", "v1.0.8", false},
		{"nightly-42", "nightly-42", true},
		{"nightly-42", "nightly-43", false},
		{"v1.0.0", "release-1", false},
		{"v1.0.0+build.1", "v1.0.0+build.2", false},
		{"v1.0", "v1.0.0", false},
		{"V1.0.0", "v1.0.0", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s=%s", tt.a, tt.b), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestVersionNewer(t *testing.T) {
	newer, ok := Version("v1.0.8").Newer("v1.0.0")
	assert.True(t, ok)
	assert.True(t, newer)

	newer, ok = Version("v0.9.0").Newer("v1.0.0")
	assert.True(t, ok)
	assert.False(t, newer)

	_, ok = Version("nightly").Newer("v1.0.0")
	assert.False(t, ok)
}

func TestErrorUnwrapsKindAndCause(t *testing.T) {
	err := NewError("open", ErrNetwork, io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("primary attempt: %w", err)

	assert.ErrorIs(t, wrapped, ErrNetwork)
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, wrapped, ErrWrite)
	assert.Equal(t, "open: network error: unexpected EOF", err.Error())

	bare := NewError("verify", ErrSizeMismatch, nil)
	assert.ErrorIs(t, bare, ErrSizeMismatch)
	assert.Equal(t, "verify: size mismatch", bare.Error())
}

func TestRedirectErrorAs(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &RedirectError{Reference: "a", Location: "b", Status: 302})

	var re *RedirectError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, "b", re.Location)
}

func TestOutcomeString(t *testing.T) {
	rel := &ReleaseInfo{Version: "v1.0.8"}

	assert.Equal(t, "NoUpdate", NoUpdate().String())
	assert.Equal(t, "InstallSucceeded v1.0.8 via redirect", InstallSucceeded(rel, PathRedirect).String())
	assert.Equal(t, "CheckFailed: boom", CheckFailed(errors.New("boom")).String())
	assert.True(t, InstallSucceeded(rel, PathPrimary).Committed())
	assert.False(t, InstallFailed(rel, PathPrimary, errors.New("x")).Committed())
}
