// Package persist implements the keyed blob store used to save read
// positions across invocations. A record is written as a versioned
// stream of named values and groups, and read back token by token.
package persist

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrDataNotFound is returned when no record exists under an id.
	ErrDataNotFound = errors.New("persisted data not found")
	// ErrUnexpectedData is returned when a record does not contain the
	// token the caller asked for next.
	ErrUnexpectedData = errors.New("unexpected persisted data")
)

// Writer serializes one record under an id. Calls are buffered; nothing
// is stored until Done.
type Writer interface {
	WriteValue(name, value string)
	WriteStartGroup(name string)
	WriteEndGroup()
	Done() error
}

// Reader consumes one record token by token. Consume methods fail with
// ErrUnexpectedData if the next token is not the one asked for.
type Reader interface {
	Version() int
	ConsumeValue(name string) (string, error)
	ConsumeStartGroup(name string) error
	ConsumeEndGroup() error
}

// Store is a durable keyed record store. Writes are whole-record
// replace; there is no transaction spanning records.
type Store interface {
	CreateWriter(id string, version int) Writer
	CreateReader(id string) (Reader, error)
	Remove(id string) error
}

type tokenKind int

const (
	tokenValue tokenKind = iota
	tokenStartGroup
	tokenEndGroup
)

type token struct {
	kind  tokenKind
	name  string
	value string
}

// blobWriter buffers tokens and hands the encoded record to a
// store-specific commit function on Done.
type blobWriter struct {
	id      string
	version int
	tokens  []token
	commit  func(id string, data []byte) error
}

func (w *blobWriter) WriteValue(name, value string) {
	w.tokens = append(w.tokens, token{kind: tokenValue, name: name, value: value})
}

func (w *blobWriter) WriteStartGroup(name string) {
	w.tokens = append(w.tokens, token{kind: tokenStartGroup, name: name})
}

func (w *blobWriter) WriteEndGroup() {
	w.tokens = append(w.tokens, token{kind: tokenEndGroup})
}

func (w *blobWriter) Done() error {
	return w.commit(w.id, encode(w.version, w.tokens))
}

// tokenReader walks a decoded token stream.
type tokenReader struct {
	version int
	tokens  []token
	next    int
}

func (r *tokenReader) Version() int {
	return r.version
}

func (r *tokenReader) take(kind tokenKind, name string) (token, error) {
	if r.next >= len(r.tokens) {
		return token{}, fmt.Errorf("%w: record exhausted, wanted %q", ErrUnexpectedData, name)
	}
	t := r.tokens[r.next]
	if t.kind != kind || (kind != tokenEndGroup && t.name != name) {
		return token{}, fmt.Errorf("%w: wanted %q, found %q", ErrUnexpectedData, name, t.name)
	}
	r.next++
	return t, nil
}

func (r *tokenReader) ConsumeValue(name string) (string, error) {
	t, err := r.take(tokenValue, name)
	if err != nil {
		return "", err
	}
	return t.value, nil
}

func (r *tokenReader) ConsumeStartGroup(name string) error {
	_, err := r.take(tokenStartGroup, name)
	return err
}

func (r *tokenReader) ConsumeEndGroup() error {
	_, err := r.take(tokenEndGroup, "")
	return err
}

// CurrentUserName returns the effective user's name. The name is part
// of every record id, separating state kept by different users over the
// same file.
func CurrentUserName() string {
	u, err := user.Current()
	if err != nil {
		log.Warnf("persist: cannot resolve current user: %v", err)
		return os.Getenv("USER")
	}
	return u.Username
}

// IsRoot reports whether the effective user is root.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// StateDir returns the directory holding state files under base: base
// itself for root, base/<username> for anyone else.
func StateDir(base string) string {
	if IsRoot() {
		return base
	}
	return filepath.Join(base, CurrentUserName())
}
