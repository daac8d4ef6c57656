// Package autolog provides the module's single structured logger,
// grounded on the teacher's internal/utils/logger.go: leveled, JSON-line
// file output plus colored console output, with a side-car error-detail
// mechanism for automaton.Error values.
package autolog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olereon/automaton/internal/autoerr"
)

// LEVELS, ORDERED LOWEST TO HIGHEST SEVERITY.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

// LOGENTRY IS ONE JSON LINE WRITTEN TO THE LOG FILE.
type LogEntry struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Source    string         `json:"source"`
	File      string         `json:"file,omitempty"`
	Line      int            `json:"line,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// LOGGER IS A PROCESS-WIDE STRUCTURED LOGGER.
type Logger struct {
	mu                sync.Mutex
	logFile           *os.File
	errorFile         *os.File
	logDir            string
	minLevel          string
	console           bool
	storeErrorDetails bool
}

var (
	defaultLogger *Logger
	loggerOnce    sync.Once
)

// DEFAULT RETURNS THE SINGLETON LOGGER, CREATING A CONSOLE-ONLY FALLBACK
// LOGGER IF INIT() WAS NEVER CALLED (E.G. IN A UNIT TEST).
func Default() *Logger {
	loggerOnce.Do(func() {
		defaultLogger = &Logger{minLevel: LevelInfo, console: true}
	})
	return defaultLogger
}

// INIT REPLACES THE SINGLETON WITH A FILE-BACKED LOGGER. CALLED ONCE FROM
// cmd/automaton's MAIN BEFORE ANY RUN STARTS.
func Init(logDir, minLevel string, console, storeErrorDetails bool) error {
	l, err := newLogger(logDir, minLevel, console, storeErrorDetails)
	if err != nil {
		return err
	}
	loggerOnce.Do(func() {}) // ENSURE Do HAS FIRED SO Default() NEVER OVERWRITES US
	defaultLogger = l
	return nil
}

func newLogger(logDir, minLevel string, console, storeErrorDetails bool) (*Logger, error) {
	if logDir == "" {
		return &Logger{minLevel: minLevel, console: console, storeErrorDetails: storeErrorDetails}, nil
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "automaton.log")
	errorPath := filepath.Join(logDir, "errors.log")

	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	errorFile, err := os.OpenFile(errorPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("open error file: %w", err)
	}

	return &Logger{
		logFile:           logFile,
		errorFile:         errorFile,
		logDir:            logDir,
		minLevel:          minLevel,
		console:           console,
		storeErrorDetails: storeErrorDetails,
	}, nil
}

// CLOSE CLOSES THE UNDERLYING LOG FILES.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
	if l.errorFile != nil {
		l.errorFile.Close()
		l.errorFile = nil
	}
}

// LOG WRITES A MESSAGE AT THE GIVEN LEVEL, SKIPPING IT IF BELOW THE
// CONFIGURED MINIMUM.
func (l *Logger) Log(level, message string, data map[string]any) {
	if !isLevelEnabled(l.minLevel, level) {
		return
	}

	entry := LogEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level,
		Message:   message,
		Source:    "automaton",
		Data:      data,
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		entry.File = filepath.Base(file)
		entry.Line = line
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		log.Printf("autolog: marshal error: %v", err)
		return
	}

	if l.console {
		fmt.Printf("%s[%s] %s\033[0m %s\n", levelColor(level), level, entry.Timestamp, entry.Message)
		if len(data) > 0 {
			dataJSON, _ := json.MarshalIndent(data, "  ", "  ")
			fmt.Printf("  %s\n", dataJSON)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Write(jsonData)
		l.logFile.Write([]byte("\n"))
	}
	if (level == LevelError || level == LevelFatal) && l.errorFile != nil {
		l.errorFile.Write(jsonData)
		l.errorFile.Write([]byte("\n"))
	}
}

func levelColor(level string) string {
	switch level {
	case LevelDebug:
		return "\033[36m"
	case LevelInfo:
		return "\033[32m"
	case LevelWarn:
		return "\033[33m"
	case LevelError:
		return "\033[31m"
	case LevelFatal:
		return "\033[35m"
	default:
		return "\033[0m"
	}
}

func isLevelEnabled(minLevel, level string) bool {
	minVal, minOk := levelRank[minLevel]
	val, ok := levelRank[level]
	if !minOk || !ok {
		return true
	}
	return val >= minVal
}

// DEBUG/INFO/WARN/ERROR/FATAL ARE CONVENIENCE WRAPPERS AROUND LOG.
func (l *Logger) Debug(message string, data map[string]any) { l.Log(LevelDebug, message, data) }
func (l *Logger) Info(message string, data map[string]any)  { l.Log(LevelInfo, message, data) }
func (l *Logger) Warn(message string, data map[string]any)  { l.Log(LevelWarn, message, data) }
func (l *Logger) Error(message string, data map[string]any) { l.Log(LevelError, message, data) }
func (l *Logger) Fatal(message string, data map[string]any) { l.Log(LevelFatal, message, data) }

// LOGAUTOMATONERROR LOGS A STRUCTURED SUMMARY OF AN automaton.Error AND,
// WHEN STOREERRORDETAILS IS ENABLED, WRITES A SIDE-CAR JSON FILE CARRYING
// THE FULL RECORD (SCREENSHOT, STACK TRACE, METADATA) FOR LATER INSPECTION.
// MIRRORS THE TEACHER'S LogScraperError.
func (l *Logger) LogAutomatonError(err *autoerr.Error) {
	data := map[string]any{
		"error_id":    err.ID,
		"kind":        err.Kind,
		"selector":    err.Selector,
		"action_kind": err.ActionKind,
		"elapsed_ms":  err.ElapsedMs,
		"timestamp":   err.Timestamp.Format(time.RFC3339),
	}
	for k, v := range err.Metadata {
		data[k] = v
	}

	l.Error(err.Message, data)

	if !l.storeErrorDetails || l.logDir == "" {
		return
	}

	errorDir := filepath.Join(l.logDir, "error_details")
	if mkErr := os.MkdirAll(errorDir, 0755); mkErr != nil {
		l.Error("failed to create error detail directory", map[string]any{"error": mkErr.Error(), "path": errorDir})
		return
	}

	detailPath := filepath.Join(errorDir, fmt.Sprintf("%s.json", err.ID))
	detailData, _ := json.MarshalIndent(err, "", "  ")
	if wErr := os.WriteFile(detailPath, detailData, 0644); wErr != nil {
		l.Error("failed to write error detail file", map[string]any{"error": wErr.Error(), "path": detailPath})
	}
}
