package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashMatchesKnownDigest(t *testing.T) {
	t.Parallel()

	got, err := New().Hash([]byte(`{"success":true}`))
	require.NoError(t, err)
	require.Len(t, got, 64)
	require.Equal(t, got, Sum([]byte(`{"success":true}`)))
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sum(nil))
}
