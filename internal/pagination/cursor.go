package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// OffsetCursor resumes a ranked search at Offset within one index build.
type OffsetCursor struct {
	Generation string
	Offset     int
}

// KeysetCursor resumes a time-ordered listing after the item LastID.
type KeysetCursor struct {
	LastID    string
	Timestamp time.Time
}

// PageResult is one page of a keyset listing.
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
)

const offsetPrefix = "o|"

// EncodeOffset creates an opaque cursor for the page starting at offset.
func EncodeOffset(generation string, offset int) string {
	if generation == "" || offset <= 0 {
		return ""
	}
	raw := offsetPrefix + generation + "|" + strconv.Itoa(offset)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeOffset is the inverse of EncodeOffset. An empty cursor decodes to
// nil. Callers compare Generation against the build they searched.
func DecodeOffset(cursor string) (*OffsetCursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	rest, ok := strings.CutPrefix(string(decoded), offsetPrefix)
	if !ok {
		return nil, ErrInvalidCursor
	}
	generation, offsetStr, ok := strings.Cut(rest, "|")
	if !ok || generation == "" {
		return nil, ErrInvalidCursor
	}
	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		return nil, ErrInvalidCursor
	}

	return &OffsetCursor{Generation: generation, Offset: offset}, nil
}

// NextOffset returns the cursor for the page after [offset, offset+limit),
// or "" when the returned page was not full.
func NextOffset(generation string, offset, limit, returned int) string {
	if limit <= 0 || returned < limit {
		return ""
	}
	return EncodeOffset(generation, offset+returned)
}

const keysetPrefix = "k|"

// EncodeKeyset creates a cursor positioned after the item with lastID
// created at ts.
func EncodeKeyset(lastID string, ts time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := keysetPrefix + strconv.FormatInt(ts.UnixNano(), 10) + "|" + lastID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeKeyset is the inverse of EncodeKeyset. An empty cursor decodes to nil.
func DecodeKeyset(cursor string) (*KeysetCursor, error) {
	if cursor == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	rest, ok := strings.CutPrefix(string(decoded), keysetPrefix)
	if !ok {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(rest, "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &KeysetCursor{LastID: id, Timestamp: time.Unix(0, n).UTC()}, nil
}
