package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/newtron-network/newtcc/pkg/util"
)

// Logger defines the interface for audit logging backends
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// FileLogger appends audit events to a JSON-lines file. When the file
// reaches RotationConfig.MaxSize it is shifted to path.1, path.1 to path.2
// and so on; Query reads the backups as well as the live file.
type FileLogger struct {
	path     string
	rotation RotationConfig

	mu   sync.RWMutex
	file *os.File
	enc  *json.Encoder
	size int64
}

// RotationConfig configures log file rotation
type RotationConfig struct {
	MaxSize    int64 // bytes before rotation; 0 never rotates
	MaxBackups int   // rotated files kept; at least one
}

// NewFileLogger opens (or creates) the audit file at path.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	if rotation.MaxBackups < 1 {
		rotation.MaxBackups = 1
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("opening audit log: %w", err)
	}
	l.file, l.enc, l.size = f, json.NewEncoder(f), info.Size()
	return nil
}

// Log appends event, rotating first when the file is full.
func (l *FileLogger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotation.MaxSize > 0 && l.size >= l.rotation.MaxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotating audit log: %w", err)
		}
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	n, err := l.file.Write(append(data, '\n'))
	l.size += int64(n)
	return err
}

// rotate shifts path.N-1 to path.N down to path to path.1, dropping the
// oldest backup.
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	os.Remove(l.backup(l.rotation.MaxBackups))
	for i := l.rotation.MaxBackups - 1; i >= 1; i-- {
		if err := os.Rename(l.backup(i), l.backup(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(l.path, l.backup(1)); err != nil {
		return err
	}
	return l.open()
}

func (l *FileLogger) backup(n int) string {
	return l.path + "." + strconv.Itoa(n)
}

// Query returns matching events oldest first, across the backups and the
// live file.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var events []*Event
	for i := l.rotation.MaxBackups; i >= 0; i-- {
		path := l.path
		if i > 0 {
			path = l.backup(i)
		}
		found, err := readEvents(path, filter)
		if err != nil {
			return nil, err
		}
		events = append(events, found...)
	}
	return page(events, filter), nil
}

func readEvents(path string, filter Filter) ([]*Event, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []*Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		event := &Event{}
		if err := json.Unmarshal(scanner.Bytes(), event); err != nil {
			util.Warnf("audit: skipping malformed entry %s:%d: %v", filepath.Base(path), line, err)
			continue
		}
		if filter.Matches(event) {
			events = append(events, event)
		}
	}
	return events, scanner.Err()
}

// page applies the filter's offset and limit.
func page(events []*Event, filter Filter) []*Event {
	if filter.Offset > 0 {
		if filter.Offset >= len(events) {
			return nil
		}
		events = events[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(events) {
		events = events[:filter.Limit]
	}
	return events
}

// Close closes the live file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// loggerHolder wraps a Logger so atomic.Value always stores the same concrete type.
type loggerHolder struct {
	logger Logger
}

var defaultLogger atomic.Value

// SetDefaultLogger sets the default audit logger
func SetDefaultLogger(logger Logger) {
	defaultLogger.Store(loggerHolder{logger: logger})
}

func getDefaultLogger() Logger {
	v := defaultLogger.Load()
	if v == nil {
		return nil
	}
	return v.(loggerHolder).logger
}

// Log logs an event using the default logger
func Log(event *Event) error {
	l := getDefaultLogger()
	if l == nil {
		return nil
	}
	return l.Log(event)
}

// Query queries events from the default logger
func Query(filter Filter) ([]*Event, error) {
	l := getDefaultLogger()
	if l == nil {
		return []*Event{}, nil
	}
	return l.Query(filter)
}

// MultiLogger fans events out to several backends. Queries are answered by
// the first backend.
type MultiLogger []Logger

// Log writes event to every backend and returns the first error.
func (m MultiLogger) Log(event *Event) error {
	var first error
	for _, l := range m {
		if err := l.Log(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Query searches the first backend.
func (m MultiLogger) Query(filter Filter) ([]*Event, error) {
	if len(m) == 0 {
		return []*Event{}, nil
	}
	return m[0].Query(filter)
}

// Close closes every backend.
func (m MultiLogger) Close() error {
	var first error
	for _, l := range m {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
