package granule

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richielo/basicFusion/errkind"
)

func TestAccumulatorZeroValue(t *testing.T) {
	var a Accumulator
	assert.Zero(t, a.Len())
	assert.Zero(t, a.Cap())
	assert.Nil(t, a.Bytes())
	assert.Empty(t, a.Entries())
	assert.Equal(t, "", a.String())
}

func TestAccumulatorAppend(t *testing.T) {
	const first = "MOP01-20070301-L1V3.50.0.he5"
	var a Accumulator
	require.NoError(t, a.Append(first))
	assert.Equal(t, len(first)+1, a.Cap(), "first append allocates exactly")

	require.NoError(t, a.Append("ab"))
	assert.Equal(t, 2*(len(first)+1), a.Cap(), "doubling beats the exact fit")

	long := strings.Repeat("x", 200)
	require.NoError(t, a.Append(long))
	assert.Equal(t, len(first)+1+3+201, a.Cap(), "exact fit beats doubling")

	assert.Equal(t, "MOP01-20070301-L1V3.50.0.he5\nab\n"+long+"\n", a.String())
	assert.Equal(t, []string{"MOP01-20070301-L1V3.50.0.he5", "ab", long}, a.Entries())

	a.Reset()
	assert.Zero(t, a.Cap())
}

func TestAccumulatorRejects(t *testing.T) {
	var a Accumulator
	for _, bad := range []string{"", "a", "a\nb", "nul\x00"} {
		assert.ErrorIs(t, a.Append(bad), errkind.InvalidInput, "%q", bad)
	}
	assert.Zero(t, a.Len(), "rejected entries leave no trace")
}

func TestAccumulatorProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	entry := gen.AlphaString().Map(func(s string) string { return "g_" + s })
	properties.Property("entries read back in order and capacity follows the growth rule", prop.ForAll(
		func(entries []string) bool {
			var a Accumulator
			for _, e := range entries {
				before := a.Cap()
				needed := a.Len() + len(e) + 1
				if a.Append(e) != nil {
					return false
				}
				want := before
				if needed > before {
					want = max(2*before, needed)
				}
				if a.Cap() != want || a.Len() > a.Cap() {
					return false
				}
			}
			got := a.Entries()
			if len(entries) == 0 {
				return got == nil
			}
			return fmt.Sprint(got) == fmt.Sprint(entries) && strings.Count(a.String(), "\n") == len(entries)
		},
		gen.SliceOf(entry),
	))

	properties.TestingRun(t)
}

func TestName(t *testing.T) {
	for in, want := range map[string]string{
		"/data/MOPITT/MOP01-20070301-L1V3.50.0.he5": "MOP01-20070301-L1V3.50.0.he5",
		"relative/CER_SSF_Terra.nc":                 "CER_SSF_Terra.nc",
		"bare.h5":                                   "bare.h5",
	} {
		got, err := Name(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "/data/", "a/.."} {
		_, err := Name(bad)
		assert.ErrorIs(t, err, errkind.InvalidInput, bad)
	}
}

func TestFingerprint(t *testing.T) {
	sum, err := Fingerprint(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", sum)

	p := filepath.Join(t.TempDir(), "g.h5")
	require.NoError(t, os.WriteFile(p, []byte("granule"), 0o644))
	a, err := FingerprintFile(p)
	require.NoError(t, err)
	b, err := Fingerprint(strings.NewReader("granule"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	_, err = FingerprintFile(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, errkind.IOError)
}
