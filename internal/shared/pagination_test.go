package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), ID: "0d4c7c4e-9f2a-4a11-8427-000000000001"}
	decoded, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	require.True(t, decoded.CreatedAt.Equal(c.CreatedAt))
	require.Equal(t, c.ID, decoded.ID)
}

func TestDecodeCursorEmpty(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	require.True(t, c.IsZero())
}

func TestDecodeCursorMalformed(t *testing.T) {
	_, err := DecodeCursor("%%%")
	require.ErrorIs(t, err, ErrBadCursor)

	_, err = DecodeCursor("bm90LWEtY3Vyc29y")
	require.ErrorIs(t, err, ErrBadCursor)
}
