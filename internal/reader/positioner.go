package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/open-sift/logsift/internal/persist"
)

// ErrFilePathNotFound is returned when the log file does not exist (or
// cannot be stat'ed) at open time.
var ErrFilePathNotFound = errors.New("log file path not found")

// StreamPositioner opens a log file and places the read cursor:
// resume from the saved offset, start over after rotation, or seek to
// end on first contact. It owns the position record and the open file
// for the duration of one call.
type StreamPositioner struct {
	record *PositionRecord
	file   *os.File
	rd     *bufio.Reader

	// offset is the byte position immediately after the last consumed
	// line (or the starting position if none was). posEOF is the
	// end-of-file offset captured at open time, kept as the persist
	// fallback when offset is zero.
	offset int64
	posEOF int64
}

// NewStreamPositioner opens the log file for a (path, qid) pair and
// runs the positioning algorithm. The returned positioner must be
// closed by the caller.
func NewStreamPositioner(path, qid string, store persist.Store) (*StreamPositioner, error) {
	record := NewPositionRecord(path, qid, store)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFilePathNotFound, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	p := &StreamPositioner{record: record, file: f}

	// Capture EOF up front. If the consumed offset is ever unusable at
	// persist time this snapshot is safer than a fresh stat, which
	// would race with writers appending behind our back.
	posEOF, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking %s: %w", path, err)
	}
	p.posEOF = posEOF
	p.offset = posEOF

	if !record.Recover() {
		// First contact with this (file, qid): stay at EOF, so the
		// first read returns only lines appended afterwards.
		log.Tracef("positioner: %s qid=%s first time, seek to end (pos=%d)", path, qid, posEOF)
	} else if record.ResetOnRead() {
		// A deferred reset was requested; this open honors and clears
		// it. The cleared flag reaches the store on the next persist.
		log.Tracef("positioner: %s qid=%s reset on read, seek to end (pos=%d)", path, qid, posEOF)
		record.SetResetOnRead(false)
	} else {
		isNew, err := p.isFileNew()
		if err != nil {
			f.Close()
			return nil, err
		}
		if !isNew {
			if _, err := f.Seek(record.Pos(), io.SeekStart); err != nil {
				f.Close()
				return nil, fmt.Errorf("seeking %s: %w", path, err)
			}
			p.offset = record.Pos()
			log.Tracef("positioner: %s qid=%s resume at %d", path, qid, record.Pos())
		} else {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				f.Close()
				return nil, fmt.Errorf("seeking %s: %w", path, err)
			}
			p.offset = 0
			log.Tracef("positioner: %s qid=%s file has wrapped, replay from start", path, qid)
		}
	}

	// Provisional position; the read loop overwrites it via
	// PersistState as lines are consumed.
	record.SetPos(posEOF)

	if err := p.updateStatData(); err != nil {
		f.Close()
		return nil, err
	}

	p.rd = bufio.NewReader(f)
	return p, nil
}

// Record returns the position record owned by this positioner.
func (p *StreamPositioner) Record() *PositionRecord {
	return p.record
}

// Close releases the underlying file.
func (p *StreamPositioner) Close() error {
	return p.file.Close()
}

// Good reports whether more input remains on the stream.
func (p *StreamPositioner) Good() bool {
	_, err := p.rd.Peek(1)
	return err == nil
}

// ReadLine consumes one line and returns it without its terminator.
// A trailing line without a terminator is returned as-is. The consumed
// offset advances by the full on-disk length of the line.
func (p *StreamPositioner) ReadLine() (string, error) {
	line, err := p.rd.ReadString('\n')
	p.offset += int64(len(line))
	if err != nil && (err != io.EOF || len(line) == 0) {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// SeekEnd moves the cursor to the current end of file.
func (p *StreamPositioner) SeekEnd() error {
	pos, err := p.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seeking %s: %w", p.record.LogFile(), err)
	}
	p.rd.Reset(p.file)
	p.offset = pos
	return nil
}

// PersistState saves the current read position. If that offset is
// zero, the open-time EOF snapshot already stored in the record is
// kept instead.
func (p *StreamPositioner) PersistState() error {
	log.Tracef("positioner: %s persist state pos=%d", p.record.LogFile(), p.offset)
	if p.offset > 0 {
		p.record.SetPos(p.offset)
	}
	return p.record.Persist()
}

// isFileNew reports whether the file at the recorded path is a
// different file than the one the record was captured against: the
// inode changed, or the size shrank. Equal size is not rotation, so a
// truncate-in-place that regrows to exactly the old size before the
// next call goes undetected.
func (p *StreamPositioner) isFileNew() (bool, error) {
	ino, size, err := statFile(p.record.LogFile())
	if err != nil {
		return false, err
	}
	if ino != p.record.StatIno() {
		log.Tracef("positioner: %s inode changed (%d -> %d), new file", p.record.LogFile(), p.record.StatIno(), ino)
		return true, nil
	}
	if size < p.record.StatSize() {
		log.Tracef("positioner: %s size smaller (%d -> %d), new file", p.record.LogFile(), p.record.StatSize(), size)
		return true, nil
	}
	return false, nil
}

// updateStatData refreshes the record's inode and size snapshot from a
// fresh stat of the path.
func (p *StreamPositioner) updateStatData() error {
	ino, size, err := statFile(p.record.LogFile())
	if err != nil {
		return err
	}
	p.record.SetStatIno(ino)
	p.record.SetStatSize(size)
	return nil
}

// statFile returns the inode and size of the file at path. Any stat
// failure surfaces as ErrFilePathNotFound.
func statFile(path string) (uint64, uint64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrFilePathNotFound, path)
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s: no stat info", ErrFilePathNotFound, path)
	}
	return uint64(st.Ino), uint64(fi.Size()), nil
}
