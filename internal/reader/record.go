// Package reader implements resumable, regex-filtered reading of log
// files. Each (file, qid) pair owns a persisted position record; a
// stream positioner recovers the record, detects rotation, and places
// the read cursor; the reader runs the bounded read-and-match loop and
// the single and bulk reset operations.
package reader

import (
	"errors"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/open-sift/logsift/internal/persist"
)

// idPrefix starts every record id (and therefore every state
// filename). The bulk reset keys on it.
const idPrefix = "LogFileProvider_"

// PositionRecord is the persisted read state for one (file, qid) pair:
// the byte offset to resume from and the inode/size snapshot used to
// detect rotation. It is reconstructed on every call; no record is
// cached across calls.
type PositionRecord struct {
	store       persist.Store
	logFile     string
	qid         string
	resetOnRead bool
	pos         int64
	stIno       uint64
	stSize      uint64
	id          string
}

// NewPositionRecord creates a record with default state for a log file
// and qid. Nothing is read from the store until Recover.
func NewPositionRecord(logFile, qid string, store persist.Store) *PositionRecord {
	return &PositionRecord{
		store:   store,
		logFile: logFile,
		qid:     qid,
		id:      idPrefix + persist.CurrentUserName() + logFile + qid,
	}
}

// LogFile returns the path of the tailed file.
func (r *PositionRecord) LogFile() string { return r.logFile }

// ResetOnRead reports whether the next open must discard the saved
// position and seek to end.
func (r *PositionRecord) ResetOnRead() bool { return r.resetOnRead }

// SetResetOnRead sets the reset-on-read flag.
func (r *PositionRecord) SetResetOnRead(v bool) { r.resetOnRead = v }

// Pos returns the byte offset to next read from.
func (r *PositionRecord) Pos() int64 { return r.pos }

// SetPos sets the byte offset to next read from.
func (r *PositionRecord) SetPos(pos int64) { r.pos = pos }

// StatIno returns the inode snapshot from the last successful open.
func (r *PositionRecord) StatIno() uint64 { return r.stIno }

// SetStatIno sets the inode snapshot.
func (r *PositionRecord) SetStatIno(ino uint64) { r.stIno = ino }

// StatSize returns the size snapshot from the last successful open.
func (r *PositionRecord) StatSize() uint64 { return r.stSize }

// SetStatSize sets the size snapshot.
func (r *PositionRecord) SetStatSize(size uint64) { r.stSize = size }

// Recover loads the record from the store. It understands the current
// format (version 1) and the older version 0, which lacks the
// Filename, QID and Reset values. Any miss, unknown version or parse
// failure leaves the record at its constructor defaults and returns
// false; it will simply be re-persisted later.
func (r *PositionRecord) Recover() bool {
	rd, err := r.store.CreateReader(r.id)
	if err != nil {
		if !errors.Is(err, persist.ErrDataNotFound) {
			log.Tracef("reader: recover %s: %v", r.id, err)
		}
		return false
	}

	version := rd.Version()
	if version != 0 && version != 1 {
		log.Tracef("reader: recover %s: unknown version %d", r.id, version)
		return false
	}

	qid := r.qid
	resetOnRead := false
	if version >= 1 {
		// The record already knows its filename; consume and discard.
		if _, err := rd.ConsumeValue("Filename"); err != nil {
			return false
		}
		if qid, err = rd.ConsumeValue("QID"); err != nil {
			return false
		}
		resetStr, err := rd.ConsumeValue("Reset")
		if err != nil {
			return false
		}
		n, err := strconv.ParseInt(resetStr, 10, 64)
		if err != nil {
			return false
		}
		resetOnRead = n != 0
	}

	posStr, err := rd.ConsumeValue("Pos")
	if err != nil {
		return false
	}
	pos, err := strconv.ParseUint(posStr, 10, 63)
	if err != nil {
		return false
	}
	if err := rd.ConsumeStartGroup("Stat"); err != nil {
		return false
	}
	inoStr, err := rd.ConsumeValue("StIno")
	if err != nil {
		return false
	}
	ino, err := strconv.ParseUint(inoStr, 10, 64)
	if err != nil {
		return false
	}
	sizeStr, err := rd.ConsumeValue("StSize")
	if err != nil {
		return false
	}
	size, err := strconv.ParseUint(sizeStr, 10, 64)
	if err != nil {
		return false
	}
	if err := rd.ConsumeEndGroup(); err != nil {
		return false
	}

	r.qid = qid
	r.resetOnRead = resetOnRead
	r.pos = int64(pos)
	r.stIno = ino
	r.stSize = size
	return true
}

// Persist writes the record as a version 1 blob. The size snapshot is
// bumped up to the position first so st_size >= pos always holds in
// the store.
func (r *PositionRecord) Persist() error {
	if uint64(r.pos) > r.stSize {
		r.stSize = uint64(r.pos)
	}
	w := r.store.CreateWriter(r.id, 1)
	w.WriteValue("Filename", r.logFile)
	w.WriteValue("QID", r.qid)
	w.WriteValue("Reset", boolValue(r.resetOnRead))
	w.WriteValue("Pos", strconv.FormatInt(r.pos, 10))
	w.WriteStartGroup("Stat")
	w.WriteValue("StIno", strconv.FormatUint(r.stIno, 10))
	w.WriteValue("StSize", strconv.FormatUint(r.stSize, 10))
	w.WriteEndGroup()
	return w.Done()
}

// Unpersist deletes the record from the store. It returns false if no
// record existed; any other store error propagates.
func (r *PositionRecord) Unpersist() (bool, error) {
	if err := r.store.Remove(r.id); err != nil {
		if errors.Is(err, persist.ErrDataNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func boolValue(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
