package errkind

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := E(NotFound, "open", "/MOPITT/Radiance", io.EOF)
	wrapped := fmt.Errorf("granule 3: %w", err)

	assert.ErrorIs(t, wrapped, NotFound)
	assert.NotErrorIs(t, wrapped, TypeError)
	assert.ErrorIs(t, wrapped, io.EOF)
	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.Equal(t, "open /MOPITT/Radiance: EOF", err.Error())
}

func TestKindOfOutermost(t *testing.T) {
	inner := E(IOError, "read", "a.h5", nil)
	outer := E(ShapeError, "transcode", "b", inner)
	assert.Equal(t, ShapeError, KindOf(outer))
	assert.ErrorIs(t, outer, IOError)

	assert.Equal(t, Other, KindOf(errors.New("plain")))
	assert.Equal(t, Other, KindOf(nil))
	assert.Equal(t, InvalidConfig, KindOf(fmt.Errorf("x: %w", InvalidConfig)))
}

func TestErrorWithoutCause(t *testing.T) {
	err := Errorf(InvalidInput, "append", "", "entry %q too short", "a")
	assert.Equal(t, `append: entry "a" too short`, err.Error())
	assert.Equal(t, "validate: invalid config", E(InvalidConfig, "validate", "", nil).Error())
}

func TestLabels(t *testing.T) {
	seen := map[string]bool{}
	for k := Other; k <= InvalidInput; k++ {
		assert.False(t, seen[k.Label()], "duplicate label %s", k.Label())
		seen[k.Label()] = true
		assert.NotContains(t, k.String(), "kind(")
	}
	assert.Equal(t, "kind(42)", Kind(42).String())
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil, IOError, "read", "x"))

	err := Classify(errors.New("short read"), IOError, "read", "x")
	assert.ErrorIs(t, err, IOError)

	wrapped := fmt.Errorf("ctx: %w", E(NotFound, "open", "y", nil))
	got := Classify(wrapped, IOError, "read", "y")
	assert.Equal(t, wrapped, got)
	assert.Equal(t, NotFound, KindOf(got))
}
