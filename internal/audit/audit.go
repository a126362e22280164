// Package audit provides audit logging for hookgate decisions.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/dgerlanc/hookgate/internal/constants"
	"github.com/dgerlanc/hookgate/internal/logger"
)

// Decisions recorded in the log.
const (
	DecisionAllow    = "allow"
	DecisionBlock    = "block"
	DecisionNoop     = "noop"
	DecisionContext  = "context"
	DecisionFallback = "fallback"
	DecisionError    = "error"
)

// Hook names.
const (
	HookGuard   = "guard"
	HookContext = "context"
)

// TimestampFormat is the format used for audit log timestamps.
const TimestampFormat = "2006-01-02T15:04:05.0Z07:00"

// archiveTimeFormat names rotated archives; it sorts lexically by time.
const archiveTimeFormat = "20060102T150405.000000000Z"

// Entry represents a single audit log entry (v1 format).
type Entry struct {
	Version    int     `json:"version"`
	ID         string  `json:"id"`
	Hook       string  `json:"hook"`
	SessionID  string  `json:"session_id,omitempty"`
	Timestamp  string  `json:"timestamp"`
	DurationMs float64 `json:"duration_ms"`
	Path       string  `json:"path,omitempty"`
	// PromptLength is recorded instead of the prompt text.
	PromptLength int       `json:"prompt_length,omitempty"`
	Decision     string    `json:"decision"`
	Severity     string    `json:"severity,omitempty"`
	Findings     []Finding `json:"findings,omitempty"`
	Intents      []string  `json:"intents,omitempty"`
	Fragments    int       `json:"fragments,omitempty"`
	Cwd          string    `json:"cwd"`
	ExitCode     int       `json:"exit_code"`
	ConfigPath   string    `json:"config_path"`
	ConfigError  string    `json:"config_error,omitempty"`
}

// Finding is one security finding in an entry.
type Finding struct {
	Check    string `json:"check"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Rotation controls how the log is archived on Init. A zero MaxBytes
// disables rotation.
type Rotation struct {
	MaxBytes int64
	Keep     int
}

var (
	auditFile *os.File
	mu        sync.Mutex
	enabled   bool
	logPath   string
)

// DefaultLogPath returns the default audit log path (~/.local/share/hookgate/audit.log)
func DefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", constants.AppName, "audit.log"), nil
}

// Init initializes the audit log. If path is empty, uses the default path.
// Pass disable=true to turn audit logging off. An oversized log is archived
// according to rot before it is opened.
func Init(path string, disable bool, rot Rotation) error {
	mu.Lock()
	defer mu.Unlock()

	if disable {
		enabled = false
		return nil
	}

	if path == "" {
		var err error
		path, err = DefaultLogPath()
		if err != nil {
			logger.Debug("failed to get default audit log path", "error", err)
			return err
		}
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirMode); err != nil {
		logger.Debug("failed to create audit log directory", "error", err)
		return err
	}

	if _, err := Rotate(path, rot, time.Now()); err != nil {
		// A failed rotation must not stop the hook from logging.
		logger.Debug("failed to rotate audit log", "error", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.FileMode)
	if err != nil {
		logger.Debug("failed to open audit log file", "error", err)
		return err
	}

	auditFile = f
	logPath = path
	enabled = true
	logger.Debug("audit logging initialized", "path", path)
	return nil
}

// Close closes the audit log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if auditFile != nil {
		err := auditFile.Close()
		auditFile = nil
		enabled = false
		return err
	}
	return nil
}

// Log writes an entry to the audit log, filling in the version, id and
// timestamp. If audit logging is not initialized or disabled, this is a no-op.
func Log(entry Entry) error {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || auditFile == nil {
		return nil
	}

	entry.Version = 1
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	// Format timestamp with tenths of second precision (1 decimal place)
	entry.Timestamp = time.Now().UTC().Format(TimestampFormat)

	data, err := json.Marshal(entry)
	if err != nil {
		logger.Debug("failed to marshal audit entry", "error", err)
		return err
	}

	if _, err := auditFile.Write(append(data, '\n')); err != nil {
		logger.Debug("failed to write audit entry", "error", err)
		return err
	}

	return nil
}

// IsEnabled returns whether audit logging is enabled.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Path returns the path of the open log, or "" when logging is off.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return ""
	}
	return logPath
}

// Reset resets the audit state. Used for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	if auditFile != nil {
		auditFile.Close()
	}
	auditFile = nil
	enabled = false
	logPath = ""
}

// Rotate compresses path into a timestamped .zst archive next to it when it
// exceeds rot.MaxBytes, then prunes archives beyond rot.Keep. It returns the
// archive path, or "" when no rotation was needed.
func Rotate(path string, rot Rotation, now time.Time) (string, error) {
	if rot.MaxBytes <= 0 {
		return "", nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if info.Size() <= rot.MaxBytes {
		return "", nil
	}

	archive := archiveName(path, now)
	if err := compressFile(path, archive); err != nil {
		os.Remove(archive)
		return "", fmt.Errorf("compressing %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return archive, err
	}
	logger.Debug("rotated audit log", "archive", archive, "bytes", info.Size())

	if err := prune(path, rot.Keep); err != nil {
		return archive, err
	}
	return archive, nil
}

func archiveName(path string, now time.Time) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	name := fmt.Sprintf("%s-%s%s.zst", stem, now.UTC().Format(archiveTimeFormat), ext)
	return filepath.Join(filepath.Dir(path), name)
}

// Archives lists the rotated archives of path, oldest first.
func Archives(path string) ([]string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), stem+"-*"+ext+".zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func prune(path string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	archives, err := Archives(path)
	if err != nil {
		return err
	}
	for len(archives) > keep {
		if err := os.Remove(archives[0]); err != nil {
			return err
		}
		archives = archives[1:]
	}
	return nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, constants.FileMode)
	if err != nil {
		return err
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return out.Close()
}

// ReadArchive decompresses a rotated archive.
func ReadArchive(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
