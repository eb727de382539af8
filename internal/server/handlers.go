package server

import (
	"errors"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/open-sift/logsift/internal/db"
	"github.com/open-sift/logsift/internal/query"
	"github.com/open-sift/logsift/internal/reader"
)

// patternSpec is one regex with the caller's index for it.
type patternSpec struct {
	Index int    `json:"index"`
	Regex string `json:"regex"`
}

type readRequest struct {
	// Path names the log file directly; Query carries the
	// SELECT ... WHERE FileName=<PATH> form instead. One of the two
	// must be set.
	Path     string        `json:"path"`
	Query    string        `json:"query"`
	QID      string        `json:"qid"`
	Patterns []patternSpec `json:"patterns"`
}

type readResponse struct {
	Lines   []string `json:"lines"`
	Partial bool     `json:"partial"`
}

type resetRequest struct {
	Path        string `json:"path"`
	QID         string `json:"qid"`
	ResetOnRead bool   `json:"resetOnRead"`
}

type resetAllRequest struct {
	ResetOnRead bool `json:"resetOnRead"`
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleRead runs one bounded read-and-match pass over a log file.
func (s *Server) handleRead(c *fiber.Ctx) error {
	var req readRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	path := req.Path
	if path == "" && req.Query != "" {
		var err error
		path, err = query.FileName(req.Query)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if path == "" || req.QID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "path (or query) and qid are required")
	}
	if len(req.Patterns) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "at least one pattern is required")
	}

	regexes := make([]reader.RegexWithIndex, 0, len(req.Patterns))
	for _, p := range req.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid pattern "+p.Regex)
		}
		regexes = append(regexes, reader.RegexWithIndex{Index: p.Index, Regex: re})
	}

	lines, partial, err := s.reader.ReadMatches(path, req.QID, regexes)
	s.record(db.Event{
		Time: time.Now(), Path: path, QID: req.QID, Op: "read",
		Matched: len(lines), Bytes: totalBytes(lines), Partial: partial,
		Outcome: outcome(err),
	})
	if err != nil {
		if errors.Is(err, reader.ErrFilePathNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		log.Errorf("server: read %s qid=%s: %v", path, req.QID, err)
		return fiber.NewError(fiber.StatusInternalServerError, "read failed")
	}

	if lines == nil {
		lines = []string{}
	}
	return c.JSON(readResponse{Lines: lines, Partial: partial})
}

// handleReset repositions a single cursor.
func (s *Server) handleReset(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" || req.QID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "path and qid are required")
	}

	err := s.reader.ResetOne(req.Path, req.QID, req.ResetOnRead)
	s.record(db.Event{
		Time: time.Now(), Path: req.Path, QID: req.QID, Op: "reset",
		Outcome: outcome(err),
	})
	if err != nil {
		if errors.Is(err, reader.ErrFilePathNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		log.Errorf("server: reset %s qid=%s: %v", req.Path, req.QID, err)
		return fiber.NewError(fiber.StatusInternalServerError, "reset failed")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleResetAll repositions every cursor under the state directory.
func (s *Server) handleResetAll(c *fiber.Ctx) error {
	var req resetAllRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	code := s.reader.ResetAll(s.config.StateDir, req.ResetOnRead)
	out := "ok"
	if code != 0 {
		out = "partial failure"
	}
	s.record(db.Event{Time: time.Now(), Op: "reset-all", Outcome: out})
	return c.JSON(fiber.Map{"exitCode": code})
}

// handleHistory returns recent journaled operations, newest first.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	events, err := db.RecentEvents(s.db, limit)
	if err != nil {
		log.Errorf("server: history query: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "history query failed")
	}
	if events == nil {
		events = []db.Event{}
	}
	return c.JSON(events)
}

// record journals an operation; journaling failures never fail the
// request.
func (s *Server) record(ev db.Event) {
	if err := db.RecordEvent(s.db, ev); err != nil {
		log.Warnf("server: recording history event: %v", err)
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

func totalBytes(lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(l)
	}
	return n
}
