package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/autolog"
	"github.com/olereon/automaton/internal/utils"
)

// CHROMEDRIVER IS THE PRIMARY Driver BACKEND, GROUNDED ON THE TEACHER'S
// internal/scraper/browser.go (LAUNCH, CHROME-PATH DISCOVERY, HEADLESS-THEN-
// NON-HEADLESS FALLBACK) AND internal/scraper/media.go (DOWNLOAD CAPTURE VIA
// chromedp/cdproto/network EVENTS).
type ChromeDriver struct {
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserCancel context.CancelFunc

	mu          sync.Mutex
	pending     chan downloadDone // AT MOST ONE DOWNLOAD IN FLIGHT (§5: SINGLE-WRITER)
	guids       map[string]string // DOWNLOAD GUID -> SUGGESTED FILENAME, FROM EventDownloadWillBegin
	downloadDir string            // STAGING DIRECTORY PASSED TO page.SetDownloadBehavior's WithDownloadPath
}

type downloadDone struct {
	path        string
	contentType string
	sizeBytes   int64
}

// NEWCHROMEDRIVER RETURNS AN UNLAUNCHED DRIVER; CALL Launch BEFORE USE.
func NewChromeDriver() *ChromeDriver {
	return &ChromeDriver{guids: make(map[string]string)}
}

// LAUNCH TRIES HEADLESS FIRST, THEN FALLS BACK TO NON-HEADLESS, MIRRORING
// CreateBrowserContext's TWO-ATTEMPT STRATEGY.
func (d *ChromeDriver) Launch(ctx context.Context, opts LaunchOptions) error {
	logCurrentEnvironment()

	browserCtx, allocCancel, browserCancel, err := attemptLaunch(ctx, opts, true)
	if err != nil {
		autolog.Default().Warn("headless launch failed, retrying non-headless", map[string]any{"error": err.Error()})
		if browserCancel != nil {
			browserCancel()
		}
		if allocCancel != nil {
			allocCancel()
		}
		browserCtx, allocCancel, browserCancel, err = attemptLaunch(ctx, opts, false)
		if err != nil {
			return autoerr.New(autoerr.KindNavigationFailed, "both headless and non-headless chrome launch attempts failed").
				WithMetadata("underlying", err.Error())
		}
	}

	d.browserCtx = browserCtx
	d.allocCancel = allocCancel
	d.browserCancel = browserCancel

	dlDir, err := os.MkdirTemp("", "automaton-downloads-")
	if err != nil {
		return autoerr.New(autoerr.KindInternal, "could not create download staging directory").WithMetadata("underlying", err.Error())
	}
	d.downloadDir = dlDir

	// allowAndName MAKES CHROME WRITE THE COMPLETED FILE TO downloadDir NAMED
	// BY ITS DOWNLOAD GUID, SO onDownloadEvent CAN LOCATE IT WITHOUT RACING
	// EVENTDOWNLOADPROGRESS AGAINST THE SUGGESTED-FILENAME DEDUP RULES CHROME
	// APPLIES UNDER PLAIN "allow".
	if err := chromedp.Run(d.browserCtx, page.SetDownloadBehavior(page.SetDownloadBehaviorBehaviorAllowAndName).WithDownloadPath(dlDir)); err != nil {
		autolog.Default().Warn("could not set download behavior", map[string]any{"error": err.Error()})
	}

	chromedp.ListenTarget(d.browserCtx, d.onDownloadEvent)

	return nil
}

func attemptLaunch(ctx context.Context, opts LaunchOptions, headless bool) (context.Context, context.CancelFunc, context.CancelFunc, error) {
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(max(opts.ViewportWidth, 1280), max(opts.ViewportHeight, 800)),
	}
	if opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.BrowserPathHint != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.BrowserPathHint))
	} else if found := findChromePath(); found != "" {
		execOpts = append(execOpts, chromedp.ExecPath(found))
	}

	if headless {
		execOpts = append(execOpts, chromedp.Headless, chromedp.Flag("disable-blink-features", "AutomationControlled"))
	} else {
		execOpts = append(execOpts, chromedp.Flag("window-position", "0,0"))
	}

	debugOutput := &bytes.Buffer{}
	execOpts = append(execOpts, chromedp.CombinedOutput(debugOutput))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	var userAgent string
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(`navigator.userAgent`, &userAgent)); err != nil {
		return browserCtx, allocCancel, browserCancel, fmt.Errorf("launch probe failed: %w (chrome output: %s)", err, debugOutput.String())
	}

	autolog.Default().Info("browser launched", map[string]any{"headless": headless, "userAgent": userAgent})
	return browserCtx, allocCancel, browserCancel, nil
}

func logCurrentEnvironment() {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		autolog.Default().Debug("running inside a container", nil)
	}
}

// FINDCHROMEPATH PROBES COMMON INSTALL LOCATIONS PER OS, GROUNDED ON
// FindChromePath.
func findChromePath() string {
	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
		}
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	default:
		paths = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	}
	for _, p := range paths {
		if utils.FileExists(p) {
			return p
		}
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	if err := chromedp.Run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body")); err != nil {
		return translateErr(err, url)
	}
	return nil
}

func (d *ChromeDriver) WaitForSelector(ctx context.Context, selector string, state WaitState) error {
	var cond chromedp.QueryAction
	switch state {
	case StateVisible:
		cond = chromedp.WaitVisible(selector)
	case StateHidden:
		cond = chromedp.WaitNotPresent(selector)
	default:
		cond = chromedp.WaitReady(selector)
	}
	if err := chromedp.Run(ctx, cond); err != nil {
		return translateErr(err, selector)
	}
	return nil
}

func (d *ChromeDriver) Query(ctx context.Context, selector string) (*ElementHandle, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(selector, &nodes, chromedp.AtLeast(0))); err != nil {
		return nil, translateErr(err, selector)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return &ElementHandle{NodeID: strconv.FormatInt(int64(nodes[0].NodeID), 10), Selector: selector}, nil
}

func (d *ChromeDriver) QueryAll(ctx context.Context, selector string) ([]ElementHandle, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(selector, &nodes, chromedp.AtLeast(0))); err != nil {
		return nil, translateErr(err, selector)
	}
	out := make([]ElementHandle, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ElementHandle{NodeID: strconv.FormatInt(int64(n.NodeID), 10), Selector: selector})
	}
	return out, nil
}

func (d *ChromeDriver) Click(ctx context.Context, selector string, force bool) error {
	var err error
	if force {
		err = chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(`(function(){var e=document.querySelector(%s); if(e){e.dispatchEvent(new MouseEvent('click',{bubbles:true})); return true;} return false;})()`, strconv.Quote(selector)), nil))
	} else {
		err = chromedp.Run(ctx, chromedp.Click(selector, chromedp.NodeVisible))
	}
	if err != nil {
		return translateErr(err, selector)
	}
	return nil
}

func (d *ChromeDriver) Fill(ctx context.Context, selector, text string) error {
	if err := chromedp.Run(ctx,
		chromedp.Clear(selector),
		chromedp.SendKeys(selector, text, chromedp.NodeVisible),
	); err != nil {
		return translateErr(err, selector)
	}
	return nil
}

func (d *ChromeDriver) Upload(ctx context.Context, selector, absolutePath string) error {
	if err := chromedp.Run(ctx, chromedp.SetUploadFiles(selector, []string{absolutePath})); err != nil {
		return translateErr(err, selector)
	}
	return nil
}

func (d *ChromeDriver) Evaluate(ctx context.Context, script string, out any) error {
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, out)); err != nil {
		return autoerr.New(autoerr.KindInternal, "script evaluation failed").WithMetadata("underlying", err.Error())
	}
	return nil
}

func (d *ChromeDriver) TextContent(ctx context.Context, selector string) (string, error) {
	var text string
	if err := chromedp.Run(ctx, chromedp.Text(selector, &text, chromedp.AtLeast(0))); err != nil {
		return "", translateErr(err, selector)
	}
	return text, nil
}

func (d *ChromeDriver) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var value string
	var ok bool
	var err error
	if name == "value" {
		err = chromedp.Run(ctx, chromedp.Value(selector, &value, chromedp.AtLeast(0)))
		ok = err == nil
	} else {
		err = chromedp.Run(ctx, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.AtLeast(0)))
	}
	if err != nil {
		return "", false, translateErr(err, selector)
	}
	return value, ok, nil
}

func (d *ChromeDriver) ScrollIntoView(ctx context.Context, selector string) error {
	if err := chromedp.Run(ctx, chromedp.ScrollIntoView(selector, chromedp.AtLeast(0))); err != nil {
		return translateErr(err, selector)
	}
	return nil
}

func (d *ChromeDriver) SetScrollTop(ctx context.Context, containerSelector string, top int) error {
	script := fmt.Sprintf(`(function(){var c=document.querySelector(%s); if(c){c.scrollTop=%d; return true;} return false;})()`, strconv.Quote(containerSelector), top)
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return translateErr(err, containerSelector)
	}
	return nil
}

func (d *ChromeDriver) ScrollPosition(ctx context.Context, containerSelector string) (int, error) {
	script := fmt.Sprintf(`(function(){var c=document.querySelector(%s); return c?c.scrollTop:0;})()`, strconv.Quote(containerSelector))
	var pos int
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &pos)); err != nil {
		return 0, translateErr(err, containerSelector)
	}
	return pos, nil
}

func (d *ChromeDriver) GoBack(ctx context.Context) error {
	if err := chromedp.Run(ctx, chromedp.NavigateBack()); err != nil {
		return autoerr.New(autoerr.KindNavigationFailed, "back navigation failed").WithMetadata("underlying", err.Error())
	}
	return nil
}

func (d *ChromeDriver) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return autoerr.New(autoerr.KindInternal, "screenshot failed").WithMetadata("underlying", err.Error())
	}
	return os.WriteFile(path, buf, 0644)
}

// DOWNLOADNEXT TRIGGERS A DOWNLOAD AND WAITS FOR ITS COMPLETION EVENT,
// GROUNDED ON media.go's cdproto/network-BASED DOWNLOAD CAPTURE.
func (d *ChromeDriver) DownloadNext(ctx context.Context, trigger func(context.Context) error, targetDir string) (DownloadResult, error) {
	d.mu.Lock()
	d.pending = make(chan downloadDone, 1)
	pending := d.pending
	d.mu.Unlock()

	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return trigger(c)
	})); err != nil {
		return DownloadResult{}, autoerr.New(autoerr.KindDownloadFailed, "download trigger action failed").WithMetadata("underlying", err.Error())
	}

	select {
	case done := <-pending:
		if err := os.MkdirAll(targetDir, 0755); err != nil {
			return DownloadResult{}, autoerr.New(autoerr.KindDownloadFailed, "could not create target directory").WithMetadata("underlying", err.Error())
		}
		finalPath := filepath.Join(targetDir, filepath.Base(done.path))
		if done.path != finalPath {
			if err := os.Rename(done.path, finalPath); err != nil {
				return DownloadResult{}, autoerr.New(autoerr.KindDownloadFailed, "could not move downloaded file").WithMetadata("underlying", err.Error())
			}
		}
		return DownloadResult{Path: finalPath, ContentType: done.contentType, SizeBytes: done.sizeBytes}, nil
	case <-ctx.Done():
		return DownloadResult{}, autoerr.New(autoerr.KindTimeout, "download did not complete before timeout")
	}
}

// ONDOWNLOADEVENT IS REGISTERED VIA chromedp.ListenTarget AND DRAINS THE CDP
// DOWNLOAD LIFECYCLE EVENTS (EventDownloadWillBegin CARRIES THE GUID AND
// SUGGESTED FILENAME; EventDownloadProgress REPORTS THE TERMINAL STATE).
func (d *ChromeDriver) onDownloadEvent(ev any) {
	switch e := ev.(type) {
	case *browser.EventDownloadWillBegin:
		d.mu.Lock()
		d.guids[e.GUID] = e.SuggestedFilename
		d.mu.Unlock()
	case *browser.EventDownloadProgress:
		if e.State != browser.DownloadProgressStateCompleted {
			return
		}
		d.mu.Lock()
		suggested := d.guids[e.GUID]
		pending := d.pending
		delete(d.guids, e.GUID)
		d.mu.Unlock()
		if pending == nil {
			return
		}

		// THE FILE CHROME ACTUALLY WROTE, PER allowAndName's GUID NAMING.
		// RESTORE THE SUGGESTED EXTENSION SO DOWNSTREAM RENAMING
		// (genmanager.renameDownload, WHICH READS filepath.Ext ON THIS PATH)
		// STILL SEES ONE.
		guidPath := filepath.Join(d.downloadDir, e.GUID)
		finalPath := guidPath
		if ext := filepath.Ext(suggested); ext != "" {
			if renamed := guidPath + ext; os.Rename(guidPath, renamed) == nil {
				finalPath = renamed
			}
		}

		select {
		case pending <- downloadDone{path: finalPath}:
		default:
		}
	}
}

func (d *ChromeDriver) Close(ctx context.Context) error {
	if d.browserCancel != nil {
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	if d.downloadDir != "" {
		os.RemoveAll(d.downloadDir)
	}
	return nil
}

// TRANSLATEERR MAPS A CHROMEDP ERROR TO THE MODULE'S ERROR TAXONOMY (§7).
func translateErr(err error, selector string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return autoerr.New(autoerr.KindTimeout, "operation timed out").WithSelector(selector)
	}
	return autoerr.New(autoerr.KindElementNotFound, err.Error()).WithSelector(selector)
}

var _ Driver = (*ChromeDriver)(nil)
