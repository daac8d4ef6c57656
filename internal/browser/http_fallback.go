package browser

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/autolog"
)

// HTTPDRIVER IS THE DEGRADED-MODE Driver BACKEND USED ONLY WHEN BOTH
// CHROMEDP LAUNCH ATTEMPTS FAIL (§4.1), GROUNDED ON THE TEACHER'S
// internal/scraper/http.go (`FetchWithHTTP`, `TestSiteAccessibility`) PLUS
// github.com/PuerkitoBio/goquery FOR CSS QUERIES OVER THE STATIC DOM IT
// FETCHES. IT SUPPORTS READ-ONLY OPERATIONS; INTERACTION VERBS RETURN
// autoerr.KindInternal, WHICH THE INTERPRETER PROPAGATES LIKE ANY OTHER
// HANDLER ERROR (§7) — THERE IS NO SPECIAL-CASING FOR DEGRADED MODE.
type HTTPDriver struct {
	client *http.Client

	mu  sync.Mutex
	doc *goquery.Document
	url string
}

// NEWHTTPDRIVER BUILDS THE CLIENT WITH THE SAME RELAXED TLS, COOKIE-JAR,
// AND REDIRECT POLICY AS FetchWithHTTP.
func NewHTTPDriver() *HTTPDriver {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	transport := &http.Transport{
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		MaxIdleConns:          100,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
	}
	return &HTTPDriver{
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

func (d *HTTPDriver) Launch(ctx context.Context, opts LaunchOptions) error {
	autolog.Default().Warn("using HTTP+goquery fallback driver; interaction actions will fail", nil)
	return nil
}

func (d *HTTPDriver) Navigate(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return autoerr.New(autoerr.KindNavigationFailed, err.Error())
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; automaton/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := d.client.Do(req)
	if err != nil {
		return autoerr.New(autoerr.KindNavigationFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return autoerr.New(autoerr.KindNavigationFailed, fmt.Sprintf("server returned status %d", resp.StatusCode))
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, gErr := gzip.NewReader(resp.Body)
		if gErr != nil {
			return autoerr.New(autoerr.KindNavigationFailed, gErr.Error())
		}
		defer gz.Close()
		reader = gz
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return autoerr.New(autoerr.KindNavigationFailed, err.Error())
	}

	d.mu.Lock()
	d.doc = doc
	d.url = url
	d.mu.Unlock()
	return nil
}

func (d *HTTPDriver) currentDoc() (*goquery.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, autoerr.New(autoerr.KindNavigationFailed, "no page has been navigated yet")
	}
	return d.doc, nil
}

func (d *HTTPDriver) WaitForSelector(ctx context.Context, selector string, state WaitState) error {
	doc, err := d.currentDoc()
	if err != nil {
		return err
	}
	present := doc.Find(selector).Length() > 0
	switch state {
	case StateHidden:
		if present {
			return autoerr.New(autoerr.KindTimeout, "element still present").WithSelector(selector)
		}
	default:
		if !present {
			return autoerr.New(autoerr.KindTimeout, "element never appeared in static document").WithSelector(selector)
		}
	}
	return nil
}

func (d *HTTPDriver) Query(ctx context.Context, selector string) (*ElementHandle, error) {
	doc, err := d.currentDoc()
	if err != nil {
		return nil, err
	}
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return nil, nil
	}
	return &ElementHandle{NodeID: "0", Selector: selector}, nil
}

func (d *HTTPDriver) QueryAll(ctx context.Context, selector string) ([]ElementHandle, error) {
	doc, err := d.currentDoc()
	if err != nil {
		return nil, err
	}
	sel := doc.Find(selector)
	out := make([]ElementHandle, 0, sel.Length())
	sel.Each(func(i int, s *goquery.Selection) {
		out = append(out, ElementHandle{NodeID: fmt.Sprintf("%d", i), Selector: selector})
	})
	return out, nil
}

func (d *HTTPDriver) TextContent(ctx context.Context, selector string) (string, error) {
	doc, err := d.currentDoc()
	if err != nil {
		return "", err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", autoerr.New(autoerr.KindElementNotFound, "no match").WithSelector(selector)
	}
	return strings.TrimSpace(sel.Text()), nil
}

func (d *HTTPDriver) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	doc, err := d.currentDoc()
	if err != nil {
		return "", false, err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false, autoerr.New(autoerr.KindElementNotFound, "no match").WithSelector(selector)
	}
	return sel.Attr(name)
}

// THE REMAINING METHODS REQUIRE A LIVE BROWSER AND STRUCTURALLY CANNOT BE
// SERVED AGAINST A STATIC DOCUMENT; THEY RETURN autoerr.KindInternal AND LET
// THE INTERPRETER'S NORMAL PROPAGATION RULES (§7) DECIDE THE OUTCOME.

func (d *HTTPDriver) unsupported(op string) error {
	return autoerr.New(autoerr.KindInternal, fmt.Sprintf("%s is not supported by the HTTP fallback driver", op))
}

func (d *HTTPDriver) Click(ctx context.Context, selector string, force bool) error { return d.unsupported("click") }
func (d *HTTPDriver) Fill(ctx context.Context, selector, text string) error        { return d.unsupported("fill") }
func (d *HTTPDriver) Upload(ctx context.Context, selector, absolutePath string) error {
	return d.unsupported("upload")
}
func (d *HTTPDriver) Evaluate(ctx context.Context, script string, out any) error {
	return d.unsupported("evaluate")
}
func (d *HTTPDriver) DownloadNext(ctx context.Context, trigger func(context.Context) error, targetDir string) (DownloadResult, error) {
	return DownloadResult{}, d.unsupported("download")
}
func (d *HTTPDriver) Screenshot(ctx context.Context, path string) error { return d.unsupported("screenshot") }
func (d *HTTPDriver) ScrollIntoView(ctx context.Context, selector string) error {
	return d.unsupported("scrollIntoView")
}
func (d *HTTPDriver) SetScrollTop(ctx context.Context, containerSelector string, top int) error {
	return d.unsupported("setScrollTop")
}
func (d *HTTPDriver) ScrollPosition(ctx context.Context, containerSelector string) (int, error) {
	return 0, d.unsupported("scrollPosition")
}
func (d *HTTPDriver) GoBack(ctx context.Context) error { return d.unsupported("goBack") }

func (d *HTTPDriver) Close(ctx context.Context) error {
	return nil
}

var _ Driver = (*HTTPDriver)(nil)
