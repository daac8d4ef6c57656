// Package autoerr defines the typed error taxonomy the interpreter and the
// download manager raise and propagate (§7).
package autoerr

import (
	"fmt"
	"runtime"
	"time"

	"github.com/olereon/automaton/internal/utils"
)

// ERRORKIND ENUMERATES THE TAXONOMY §7 DEFINES FOR ERROR PROPAGATION DECISIONS.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "TIMEOUT"
	KindElementNotFound   ErrorKind = "ELEMENT_NOT_FOUND"
	KindMalformed         ErrorKind = "MALFORMED"
	KindInvalidCondition  ErrorKind = "INVALID_CONDITION"
	KindDownloadFailed    ErrorKind = "DOWNLOAD_FAILED"
	KindExtractionFailed  ErrorKind = "EXTRACTION_FAILED"
	KindNavigationFailed  ErrorKind = "NAVIGATION_FAILED"
	KindCancelled         ErrorKind = "CANCELLED"
	KindStopRequested     ErrorKind = "STOP_REQUESTED"
	KindInternal          ErrorKind = "INTERNAL"
)

// ERROR IS THE MODULE'S SOLE ERROR TYPE, GROUNDED ON THE TEACHER'S
// `ScraperError` CHAINABLE BUILDER. FIELDS ARE POPULATED INCREMENTALLY AS
// THE ERROR TRAVELS UP THROUGH THE INTERPRETER.
type Error struct {
	ID         string         `json:"id"`
	Kind       ErrorKind      `json:"kind"`
	Message    string         `json:"message"`
	Selector   string         `json:"selector,omitempty"`
	ActionKind string         `json:"actionKind,omitempty"`
	ElapsedMs  int64          `json:"elapsedMs,omitempty"`
	Screenshot string         `json:"screenshot,omitempty"` // DATA URL, IF CAPTURED
	StackTrace string         `json:"stackTrace,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ERROR IMPLEMENTS THE ERROR INTERFACE.
func (e *Error) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("[%s] %s (selector: %s)", e.Kind, e.Message, e.Selector)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// NEW CONSTRUCTS AN ERROR OF THE GIVEN KIND.
func New(kind ErrorKind, message string) *Error {
	return &Error{
		ID:        utils.GenerateID("err"),
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// WITHSELECTOR RECORDS THE SELECTOR THE FAILING ACTION WAS OPERATING ON.
func (e *Error) WithSelector(selector string) *Error {
	e.Selector = selector
	return e
}

// WITHACTIONKIND RECORDS WHICH ACTION KIND RAISED THE ERROR.
func (e *Error) WithActionKind(kind string) *Error {
	e.ActionKind = kind
	return e
}

// WITHELAPSED RECORDS HOW LONG THE ACTION RAN BEFORE FAILING.
func (e *Error) WithElapsed(elapsed time.Duration) *Error {
	e.ElapsedMs = elapsed.Milliseconds()
	return e
}

// WITHSCREENSHOT ATTACHES A DATA-URL SCREENSHOT CAPTURED AT FAILURE TIME.
func (e *Error) WithScreenshot(dataURL string) *Error {
	e.Screenshot = dataURL
	return e
}

// WITHSTACKTRACE CAPTURES THE CURRENT GOROUTINE STACK.
func (e *Error) WithStackTrace() *Error {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	e.StackTrace = string(buf[:n])
	return e
}

// WITHMETADATA ATTACHES AN ARBITRARY KEY/VALUE PAIR FOR DIAGNOSTICS.
func (e *Error) WithMetadata(key string, value any) *Error {
	e.Metadata[key] = value
	return e
}

// ISRECOVERABLE REPORTS FALSE FOR CANCELLED AND STOP_REQUESTED AND TRUE FOR
// EVERY OTHER KIND (§7). THE INTERPRETER DOES NOT CALL IT: handleError
// CHECKS STOP_REQUESTED ITSELF, AND A CANCELLED HANDLER ERROR RAISED INSIDE
// AN OPEN TRY FRAME JUMPS TO THAT FRAME'S CATCH LIKE ANY OTHER KIND.
func (e *Error) IsRecoverable() bool {
	switch e.Kind {
	case KindCancelled, KindStopRequested:
		return false
	default:
		return true
	}
}
