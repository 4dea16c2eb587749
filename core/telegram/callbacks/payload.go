package callbacks

import (
	"strconv"
	"strings"
)

// ParseInt64 parses a raw payload as int64.
func ParseInt64(payload string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
}
