package reader

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/open-sift/logsift/internal/persist"
)

const (
	// maxMatchedRows caps the matched lines returned by one call.
	maxMatchedRows = 500
	// maxTotalBytes caps the accumulated output bytes of one call.
	maxTotalBytes = 60 * 1024
)

// stateValueLine scrapes Filename/QID values out of a state file read
// as plain text. The bulk reset uses it instead of the store reader so
// it also works from the offline admin tool.
var stateValueLine = regexp.MustCompile(`Value Name="(.*)" Value="(.*)"`)

// RegexWithIndex pairs a compiled pattern with the caller's index for
// it. Matched lines report the indices of every pattern they matched.
type RegexWithIndex struct {
	Index int
	Regex *regexp.Regexp
}

// LogFileReader is the public surface: read new matching lines, reset
// one cursor, reset every cursor under a state directory. All state
// lives in the injected store; the reader itself carries none, so two
// concurrent calls for the same (user, file, qid) are not supported —
// the last persist wins.
type LogFileReader struct {
	store persist.Store
}

// New creates a LogFileReader over the given store.
func New(store persist.Store) *LogFileReader {
	return &LogFileReader{store: store}
}

// ReadMatches returns the lines appended to path since the last call
// with the same qid that match at least one of the given patterns.
// Each returned line is "<indices>;<line>" where indices are the
// space-separated indices of every matching pattern, in input order.
// The call stops at 500 matched rows or 60KiB of output; partial is
// true iff a cap was hit with input still remaining, in which case the
// caller is expected to call again.
func (lr *LogFileReader) ReadMatches(path, qid string, regexes []RegexWithIndex) ([]string, bool, error) {
	pos, err := NewStreamPositioner(path, qid, lr.store)
	if err != nil {
		return nil, false, err
	}
	defer pos.Close()

	var matched []string
	matchedRows := 0
	totalBytes := 0
	rows := 0

	for matchedRows < maxMatchedRows && totalBytes < maxTotalBytes && pos.Good() {
		line, err := pos.ReadLine()
		if err != nil {
			// The stream went bad mid-read; stop here and persist what
			// was consumed so far.
			log.Warnf("reader: %s qid=%s read error after %d rows: %v", path, qid, rows, err)
			break
		}
		rows++

		var indices []string
		for _, re := range regexes {
			if re.Regex.MatchString(line) {
				indices = append(indices, strconv.Itoa(re.Index))
			}
		}
		if len(indices) > 0 {
			entry := strings.Join(indices, " ") + ";" + line
			matched = append(matched, entry)
			matchedRows++
			totalBytes += len(entry)
		}
	}

	partial := (matchedRows >= maxMatchedRows || totalBytes >= maxTotalBytes) && pos.Good()
	if partial {
		log.Debugf("reader: %s qid=%s capped after %d matched rows, %d bytes", path, qid, matchedRows, totalBytes)
	}

	if err := pos.PersistState(); err != nil {
		return nil, false, err
	}
	return matched, partial, nil
}

// ResetOne repositions the cursor for one (path, qid) pair. With
// resetOnRead false the backlog is forgotten now: the cursor moves to
// the current end of file. With resetOnRead true the record is only
// marked; the next read's open seeks to the then-current end of file
// and clears the mark.
func (lr *LogFileReader) ResetOne(path, qid string, resetOnRead bool) error {
	log.Tracef("reader: reset %s qid=%s resetOnRead=%v", path, qid, resetOnRead)

	pos, err := NewStreamPositioner(path, qid, lr.store)
	if err != nil {
		return err
	}
	defer pos.Close()

	if !resetOnRead {
		if err := pos.SeekEnd(); err != nil {
			return err
		}
	}
	pos.Record().SetResetOnRead(resetOnRead)
	return pos.PersistState()
}

// ResetAll applies ResetOne to every state file under base (base
// itself for root, base/<username> otherwise). State files are
// recognized by the LogFileProvider_ name prefix, case-insensitively,
// and scraped as plain text for their Filename and QID values, so this
// works without the store being initialized. The return value is an
// exit code: 0 on full success, ENOENT if the directory or a
// referenced log file is missing, EINTR on any other failure; the last
// non-zero code wins and processing always continues.
func (lr *LogFileReader) ResetAll(base string, resetOnRead bool) int {
	exitStatus := 0

	dir := persist.StateDir(base)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("reader: reset all: state directory not found: %s", dir)
			return int(syscall.ENOENT)
		}
		log.Warnf("reader: reset all: cannot enumerate %s: %v", dir, err)
		return int(syscall.EINTR)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !hasPrefixFold(name, idPrefix) {
			continue
		}
		log.Tracef("reader: reset all: state file %s", name)

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warnf("reader: reset all: cannot read %s: %v", name, err)
			exitStatus = int(syscall.EINTR)
			continue
		}

		var filename, qid string
		for _, line := range strings.Split(string(data), "\n") {
			m := stateValueLine.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			switch m[1] {
			case "Filename":
				filename = m[2]
			case "QID":
				qid = m[2]
			}
		}
		if filename == "" || qid == "" {
			continue
		}

		if err := lr.ResetOne(filename, qid, resetOnRead); err != nil {
			if errors.Is(err, ErrFilePathNotFound) {
				log.Warnf("reader: reset all: log file not found: %s", filename)
				exitStatus = int(syscall.ENOENT)
			} else {
				log.Warnf("reader: reset all: resetting %s qid=%s: %v", filename, qid, err)
				exitStatus = int(syscall.EINTR)
			}
		}
	}

	return exitStatus
}

// hasPrefixFold is a case-insensitive strings.HasPrefix.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
