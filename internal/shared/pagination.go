package shared

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor is a stable keyset-pagination position. Listings ordered by
// (created_at, id) can resume after the cursor without re-reading earlier
// rows, so an iteration restarted with the same cursor yields the same
// sequence.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ErrBadCursor indicates an unparseable cursor token.
var ErrBadCursor = errors.New("malformed cursor")

// Encode serialises the cursor into an opaque token.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d|%s", c.CreatedAt.UnixNano(), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor token. An empty token yields the
// zero cursor (start of the sequence).
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrBadCursor
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, ErrBadCursor
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, ErrBadCursor
	}
	return Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: parts[1]}, nil
}

// IsZero reports whether the cursor marks the start of the sequence.
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}
