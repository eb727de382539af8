package server

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/open-sift/logsift/internal/config"
	"github.com/open-sift/logsift/internal/reader"
)

// Server is the HTTP surface the management side talks to: read
// matching lines, reset cursors, inspect the read history.
type Server struct {
	app    *fiber.App
	db     *sql.DB
	config *config.Config
	reader *reader.LogFileReader
}

// New creates a new Server instance with the given configuration,
// history database and log file reader.
func New(cfg *config.Config, database *sql.DB, rd *reader.LogFileReader) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "logsift",
		DisableStartupMessage: true,
	})

	s := &Server{
		app:    app,
		db:     database,
		config: cfg,
		reader: rd,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware wires optional basic auth in front of every route.
func (s *Server) setupMiddleware() {
	if authorize := s.authorizer(); authorize != nil {
		s.app.Use(basicauth.New(basicauth.Config{Authorizer: authorize}))
	}
}

// authorizer returns the credential check derived from configuration:
// bcrypt hashes from an htpasswd file when one is set, else the static
// env credentials, else nil (auth off). A configured but unusable
// htpasswd file is fatal; silently serving unauthenticated would be
// worse than not starting.
func (s *Server) authorizer() func(user, pass string) bool {
	switch {
	case s.config.HtpasswdFile != "":
		users, err := loadHtpasswd(s.config.HtpasswdFile)
		if err != nil {
			log.Fatalf("server: htpasswd file %s: %v", s.config.HtpasswdFile, err)
		}
		return func(user, pass string) bool {
			hash, ok := users[user]
			return ok && bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
		}
	case s.config.AuthUser != "" && s.config.AuthPass != "":
		return func(user, pass string) bool {
			return user == s.config.AuthUser && pass == s.config.AuthPass
		}
	}
	return nil
}

// loadHtpasswd reads user:hash lines into a map. Only bcrypt entries
// are usable; comments, blank lines and other hash types are skipped.
func loadHtpasswd(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading htpasswd: %w", err)
	}

	users := make(map[string]string)
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, hash, ok := strings.Cut(line, ":")
		if !ok {
			log.Warnf("server: htpasswd line %d: missing colon, skipped", n+1)
			continue
		}
		if !strings.HasPrefix(hash, "$2") {
			log.Warnf("server: htpasswd line %d: user %q has a non-bcrypt hash, skipped", n+1, name)
			continue
		}
		users[name] = hash
	}

	if len(users) == 0 {
		return nil, fmt.Errorf("no usable users")
	}
	return users, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.app.Get("/healthz", s.handleHealthz)

	s.app.Post("/api/read", s.handleRead)
	s.app.Post("/api/reset", s.handleReset)
	s.app.Post("/api/reset-all", s.handleResetAll)
	s.app.Get("/api/history", s.handleHistory)
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	log.Infof("server: listening on %s", s.config.Listen)
	return s.app.Listen(s.config.Listen)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	log.Info("server: shutting down")
	return s.app.Shutdown()
}
