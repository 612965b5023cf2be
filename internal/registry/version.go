package registry

import (
	"strings"

	"golang.org/x/mod/semver"
)

// CompareVersions orders unit versions. Dotted numeric versions such as
// 2, 10 or 2023.1 compare by number; anything else sorts below them and
// compares as text.
func CompareVersions(a, b string) int {
	va, vb := canonicalVersion(a), canonicalVersion(b)
	validA, validB := semver.IsValid(va), semver.IsValid(vb)

	switch {
	case validA && validB:
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
	case validA:
		return 1
	case validB:
		return -1
	}
	return strings.Compare(a, b)
}

func canonicalVersion(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
