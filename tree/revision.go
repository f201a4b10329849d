package tree

import (
	"regexp"
	"strconv"
)

// revPattern matches "REV" with an optional underscore followed by exactly
// four hex digits, e.g. USB\VID_1234&PID_5678&REV_0102.
var revPattern = regexp.MustCompile(`(?i)REV_?([0-9A-F]{4})(?:[^0-9A-F]|$)`)

// ParseRevision extracts the revision from a hardware id.
func ParseRevision(hardwareID string) (int, bool) {
	m := revPattern.FindStringSubmatch(hardwareID)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 16, 16)
	if err != nil {
		return 0, false
	}
	return int(v), true
}
