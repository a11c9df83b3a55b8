package api

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DiagnosticLog appends one line per failed API call to a local file.
type DiagnosticLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewDiagnosticLog(path string) *DiagnosticLog {
	return &DiagnosticLog{path: path, now: time.Now}
}

// Path returns the log file location.
func (l *DiagnosticLog) Path() string { return l.path }

// APIError records a failed request against endpoint, attributed to the
// calling file and line.
func (l *DiagnosticLog) APIError(endpoint, errText, file string, line int) error {
	if l == nil || l.path == "" {
		return nil
	}
	ts := l.now().UTC().Format("06-01-02 03:04:05")
	entry := fmt.Sprintf("%s  -->   Error accessing API point %s: %s  Log Generation Details :      Filename: %s   at Line number : %d\n\n",
		ts, endpoint, errText, file, line)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(entry)
	return err
}
