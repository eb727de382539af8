// Package query extracts the log file path from the one query shape
// the service accepts.
package query

import (
	"errors"
	"fmt"
	"regexp"
)

// Format is the only accepted query shape.
const Format = `SELECT * FROM SCX_LogFileRecord WHERE FileName=<PATH>`

var (
	// ErrNotSupported is returned for queries not matching Format.
	ErrNotSupported = errors.New("query not supported")
	// ErrInternal is returned if the pattern matches but yields no
	// path; it guards against pattern corruption.
	ErrInternal = errors.New("internal query error")
)

// The path may be bare or wrapped in single or double quotes.
var fileNamePattern = regexp.MustCompile(
	`(?i)^\s*SELECT\s+\*\s+FROM\s+SCX_LogFileRecord\s+WHERE\s+FileName\s*=\s*(?:"([^"]*)"|'([^']*)'|(\S+))\s*$`)

// FileName returns the path parameter of a query.
func FileName(q string) (string, error) {
	m := fileNamePattern.FindStringSubmatch(q)
	if m == nil {
		return "", fmt.Errorf("%w: query not on format %s", ErrNotSupported, Format)
	}
	for _, group := range m[1:] {
		if group != "" {
			return group, nil
		}
	}
	return "", fmt.Errorf("%w: pattern matched but no path captured", ErrInternal)
}
