package envutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGettersFallBackOnEmptyOrInvalid(t *testing.T) {
	t.Setenv("ENVUTIL_INT", "nope")
	t.Setenv("ENVUTIL_FLOAT", "  ")
	t.Setenv("ENVUTIL_BOOL", "maybe")

	require.Equal(t, 7, Int("ENVUTIL_INT", 7))
	require.Equal(t, 0.5, Float("ENVUTIL_FLOAT", 0.5))
	require.True(t, Bool("ENVUTIL_BOOL", true))
	require.Equal(t, "def", String("ENVUTIL_UNSET_FOR_TEST", "def"))
}

func TestGettersParse(t *testing.T) {
	t.Setenv("ENVUTIL_INT", " 42 ")
	t.Setenv("ENVUTIL_FLOAT", "0.25")
	t.Setenv("ENVUTIL_BOOL", "false")
	t.Setenv("ENVUTIL_SECONDS", "90")

	require.Equal(t, 42, Int("ENVUTIL_INT", 0))
	require.Equal(t, 0.25, Float("ENVUTIL_FLOAT", 0))
	require.False(t, Bool("ENVUTIL_BOOL", true))
	require.Equal(t, 90*time.Second, Seconds("ENVUTIL_SECONDS", time.Second))
}

func TestClamp(t *testing.T) {
	require.Equal(t, 64, Clamp(10, 64, 65536))
	require.Equal(t, 1.0, Clamp(1.7, 0, 1))
	require.Equal(t, 0.3, Clamp(0.3, 0, 1))
}
