// Package browser implements the Browser Driver Facade (§4.1): a uniform
// adapter over a real driver so the interpreter and download manager never
// touch chromedp or goquery directly.
package browser

import (
	"context"
	"time"
)

// WAITSTATE IS THE DOM READINESS CONDITION WAIT_FOR_ELEMENT-LIKE CALLS
// ACCEPT.
type WaitState string

const (
	StateAttached WaitState = "attached"
	StateVisible  WaitState = "visible"
	StateHidden   WaitState = "hidden"
)

// ELEMENTHANDLE IS AN OPAQUE REFERENCE TO A MATCHED DOM NODE. ITS CONTENTS
// ARE BACKEND-SPECIFIC AND OWNED BY THE DRIVER THAT PRODUCED IT — CALLERS
// NEVER INSPECT IT, ONLY PASS IT BACK.
type ElementHandle struct {
	// NODEID IS THE BACKEND'S OPAQUE IDENTIFIER (E.G. A CHROMEDP cdp.NodeID
	// ENCODED AS A STRING, OR A GOQUERY SELECTION INDEX).
	NodeID string
	// SELECTOR IS THE SELECTOR THAT PRODUCED THIS HANDLE, KEPT FOR DIAGNOSTICS.
	Selector string
}

// LAUNCHOPTIONS CONFIGURE A DRIVER AT STARTUP, GROUNDED ON THE TEACHER'S
// AttemptBrowserCreation FLAG SET.
type LaunchOptions struct {
	Headless        bool
	ViewportWidth   int
	ViewportHeight  int
	UserAgent       string
	BrowserPathHint string // FROM AUTOMATON_BROWSER_PATH, EMPTY MEANS AUTO-DISCOVER
}

// DOWNLOADRESULT IS RETURNED BY DOWNLOADNEXT ONCE A TRIGGERED DOWNLOAD
// COMPLETES.
type DownloadResult struct {
	Path        string
	ContentType string
	SizeBytes   int64
}

// DRIVER IS THE FACADE EVERY BROWSER BACKEND IMPLEMENTS (§4.1). EVERY
// BLOCKING CALL TAKES A CONTEXT CARRYING THE ACTION'S EFFECTIVE TIMEOUT.
// THE CHROMEDP BACKEND TRANSLATES A CONTEXT DEADLINE INTO
// autoerr.KindTimeout CARRYING THE SELECTOR; THE ERROR DOES NOT RECORD THE
// ELAPSED TIME.
type Driver interface {
	// LAUNCH STARTS THE UNDERLYING BROWSER/CLIENT. IDEMPOTENT NO-OP ON THE
	// HTTP FALLBACK BACKEND, WHICH HAS NO PROCESS TO START.
	Launch(ctx context.Context, opts LaunchOptions) error

	// NAVIGATE LOADS URL AND RETURNS ONCE THE PAGE BODY IS AVAILABLE; IT DOES
	// NOT WAIT FOR document.readyState TO REACH "complete".
	Navigate(ctx context.Context, url string) error

	// WAITFORSELECTOR BLOCKS UNTIL selector REACHES THE GIVEN STATE OR THE
	// CONTEXT DEADLINE ELAPSES.
	WaitForSelector(ctx context.Context, selector string, state WaitState) error

	// QUERY RETURNS THE FIRST MATCHING ELEMENT, OR nil IF NONE IS FOUND
	// (NOT AN ERROR — CALLERS DECIDE WHAT ABSENCE MEANS).
	Query(ctx context.Context, selector string) (*ElementHandle, error)

	// QUERYALL RETURNS EVERY MATCHING ELEMENT, POSSIBLY EMPTY.
	QueryAll(ctx context.Context, selector string) ([]ElementHandle, error)

	// CLICK CLICKS THE ELEMENT MATCHING SELECTOR. force REQUESTS A
	// JAVASCRIPT-DISPATCHED CLICK WHEN A NATIVE CLICK IS INTERCEPTED.
	Click(ctx context.Context, selector string, force bool) error

	// FILL CLEARS AND TYPES text INTO THE ELEMENT MATCHING SELECTOR.
	Fill(ctx context.Context, selector, text string) error

	// UPLOAD SETS THE FILE INPUT MATCHING SELECTOR TO absolutePath.
	Upload(ctx context.Context, selector, absolutePath string) error

	// EVALUATE RUNS script AND DECODES ITS RESULT INTO out (A POINTER).
	Evaluate(ctx context.Context, script string, out any) error

	// DOWNLOADNEXT RUNS trigger, THEN CAPTURES THE NEXT BROWSER DOWNLOAD
	// EVENT AND MOVES THE FINISHED FILE INTO targetDir.
	DownloadNext(ctx context.Context, trigger func(context.Context) error, targetDir string) (DownloadResult, error)

	// SCREENSHOT WRITES A PNG OF THE CURRENT PAGE TO path.
	Screenshot(ctx context.Context, path string) error

	// TEXTCONTENT READS THE innerText OF THE ELEMENT MATCHING SELECTOR.
	TextContent(ctx context.Context, selector string) (string, error)

	// ATTRIBUTE READS A NAMED DOM ATTRIBUTE, OR THE `value` PROPERTY WHEN
	// name == "value".
	Attribute(ctx context.Context, selector, name string) (string, bool, error)

	// SCROLLINTOVIEW AND SETSCROLLTOP ARE THE TWO STRATEGIES THE BOUNDARY
	// SCROLL MANAGER USES (§4.8).
	ScrollIntoView(ctx context.Context, selector string) error
	SetScrollTop(ctx context.Context, containerSelector string, top int) error
	ScrollPosition(ctx context.Context, containerSelector string) (int, error)

	// GOBACK NAVIGATES the browser history back one entry, used by the
	// close-icon fallback (§4.7.8).
	GoBack(ctx context.Context) error

	// CLOSE RELEASES ALL RESOURCES THE DRIVER HOLDS.
	Close(ctx context.Context) error
}

// EFFECTIVECONTEXT DERIVES A CHILD CONTEXT BOUND BY timeoutMs, MATCHING THE
// "EVERY BLOCKING CALL TAKES AN EFFECTIVE TIMEOUT" CONTRACT OF §4.1.
func EffectiveContext(parent context.Context, timeoutMs int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, time.Duration(timeoutMs)*time.Millisecond)
}
