package screen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

// DefaultLogDir is where screen logs are written when none is configured.
const DefaultLogDir = "~/.pgcenter/logs"

// Recorder appends every refreshed table of one screen to a log file.
type Recorder struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	closed bool
}

// NewRecorder opens <baseDir>/screen<slot>-<user>@<db>-<timestamp>.log for
// appending. The directory is created if needed.
func NewRecorder(baseDir string, slot int, label string, now time.Time) (*Recorder, error) {
	if baseDir == "" {
		baseDir = DefaultLogDir
	}
	// Expand ~ in baseDir
	if baseDir[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Can't determine home directory",
				"Check your environment configuration.")
		}
		baseDir = filepath.Join(home, baseDir[1:])
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't create log directory "+baseDir,
			"Check your permissions for "+baseDir+".")
	}

	name := fmt.Sprintf("screen%d-%s-%s.log", slot, sanitizeFilename(label), now.Format("20060102-150405"))
	path := filepath.Join(baseDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't open screen log "+path,
			"Check your permissions.")
	}

	return &Recorder{path: path, f: f}, nil
}

// Write appends t as a timestamped, tab separated block.
func (r *Recorder) Write(t Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New(errors.ErrConfig,
			"Screen log is closed",
			"Toggle logging again to open a new file.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s]", t.At.Format("2006-01-02 15:04:05"), t.Params, t.Context.Title)
	if t.Err != nil {
		fmt.Fprintf(&b, " error: %s\n", errors.Short(t.Err))
	} else {
		b.WriteByte('\n')
		b.WriteString(strings.Join(t.Columns, "\t"))
		b.WriteByte('\n')
		cells := make([]string, 0, len(t.Columns))
		for _, row := range t.Rows {
			cells = cells[:0]
			for _, v := range row.Values {
				cells = append(cells, v.String())
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteByte('\n')
		}
	}
	b.WriteByte('\n')

	if _, err := r.f.WriteString(b.String()); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't write screen log "+r.path,
			"Check free disk space and permissions.")
	}
	return nil
}

// Path returns the log file path.
func (r *Recorder) Path() string {
	return r.path
}

// Close finalizes logging.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}

// sanitizeFilename replaces characters that aren't safe for filenames.
func sanitizeFilename(name string) string {
	result := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' || c == '\\' || c == ':' || c == '*' || c == '?' || c == '"' || c == '<' || c == '>' || c == '|' || c == ' ' {
			result[i] = '-'
		} else {
			result[i] = c
		}
	}
	return string(result)
}
