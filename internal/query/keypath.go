// internal/query/keypath.go
//
// Payload key-path rendering shared by the ordering compiler and the
// mutation expression builder.  A key path addresses one location inside
// the payload column, rendered in PostgreSQL's text-array literal form,
// e.g. ["deep","num"] → `{deep,num}`.
//
// Key paths end up inside a quoted SQL literal, so every segment is
// validated against a strict grammar before concatenation.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// keySegmentRE is the allow-listed grammar for one payload key segment.
var keySegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// JSONBKeyPath renders a validated key path as a `{k1,k2}` literal.
func JSONBKeyPath(path []string) (string, error) {
	if len(path) == 0 {
		return "", ErrEmptyKeyPath
	}
	for _, seg := range path {
		if !keySegmentRE.MatchString(seg) {
			return "", fmt.Errorf("payload key segment %q outside allowed grammar [A-Za-z0-9_-]", seg)
		}
	}
	return "{" + strings.Join(path, ",") + "}", nil
}
