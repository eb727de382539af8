package query

import (
	"errors"
	"testing"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr error
	}{
		{
			name:  "bare path",
			query: "SELECT * FROM SCX_LogFileRecord WHERE FileName=/var/log/syslog",
			want:  "/var/log/syslog",
		},
		{
			name:  "double quoted path",
			query: `SELECT * FROM SCX_LogFileRecord WHERE FileName="/var/log/app log.txt"`,
			want:  "/var/log/app log.txt",
		},
		{
			name:  "single quoted path",
			query: `SELECT * FROM SCX_LogFileRecord WHERE FileName='/var/log/messages'`,
			want:  "/var/log/messages",
		},
		{
			name:  "case insensitive keywords",
			query: "select * from scx_logfilerecord where filename=/var/log/syslog",
			want:  "/var/log/syslog",
		},
		{
			name:  "surrounding whitespace",
			query: "  SELECT * FROM SCX_LogFileRecord WHERE FileName=/x  ",
			want:  "/x",
		},
		{
			name:    "wrong class",
			query:   "SELECT * FROM SCX_Other WHERE FileName=/x",
			wantErr: ErrNotSupported,
		},
		{
			name:    "wrong property",
			query:   "SELECT * FROM SCX_LogFileRecord WHERE Path=/x",
			wantErr: ErrNotSupported,
		},
		{
			name:    "projection instead of star",
			query:   "SELECT FileName FROM SCX_LogFileRecord WHERE FileName=/x",
			wantErr: ErrNotSupported,
		},
		{
			name:    "empty query",
			query:   "",
			wantErr: ErrNotSupported,
		},
		{
			name:    "empty quoted path",
			query:   `SELECT * FROM SCX_LogFileRecord WHERE FileName=""`,
			wantErr: ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FileName(tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("FileName(%q) error = %v, want %v", tt.query, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FileName(%q) unexpected error: %v", tt.query, err)
			}
			if got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}
