package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// firstToken returns the part of a header value before the first comma. Some intermediaries
// fold repeated headers into a single comma separated value.
func firstToken(raw string) string {
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// ParseOffset parses an Upload-Offset header value.
func ParseOffset(raw string) (int64, error) {
	token := firstToken(raw)
	if token == "" {
		return 0, fmt.Errorf("empty value: %w", ErrMalformedOffset)
	}

	offset, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", token, ErrMalformedOffset)
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative value %d: %w", offset, ErrMalformedOffset)
	}
	return offset, nil
}

// Reconcile parses the server reported offset and checks it against the expected one.
func Reconcile(raw string, expected int64) (int64, error) {
	actual, err := ParseOffset(raw)
	if err != nil {
		return 0, err
	}
	if actual != expected {
		return actual, &OffsetMismatchError{Expected: expected, Actual: actual}
	}
	return actual, nil
}
