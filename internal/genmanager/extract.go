package genmanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/browser"
)

// EXTRACTEDMETADATA IS WHAT ExtractMetadata READS FROM AN OPEN DETAIL PANEL
// (§4.7.4, STEPS 4-5).
type ExtractedMetadata struct {
	CreationDatetime string
	Prompt           string
	MediaType        string
}

// EXTRACTMETADATA READS THE CREATION DATETIME AND PROMPT FROM THE CURRENTLY
// OPEN DETAIL PANEL. CREATION-TIME SELECTION IS SPATIAL (§4.7.4: "SMALLEST
// CENTER-TO-CENTER DISTANCE", A FIX AGAINST THE NAIVE FIRST-DOM-MATCH
// STRATEGY THAT PICKS THE TASK-CREATION TIME INSTEAD OF THE DISPLAYED ONE).
// IMPLEMENTED AS ONE evaluate() CALL SO THE DISTANCE COMPUTATION RUNS
// IN-PAGE AGAINST LIVE BOUNDING RECTS RATHER THAN A STALE SNAPSHOT.
func ExtractMetadata(ctx context.Context, drv browser.Driver, cfg Config) (ExtractedMetadata, error) {
	creation, err := nearestCreationTime(ctx, drv, cfg.CreationTimeSelector)
	if err != nil {
		return ExtractedMetadata{}, err
	}

	prompt, err := firstAcceptablePrompt(ctx, drv, cfg.PromptSelectors, cfg.MinPromptLength)
	if err != nil {
		return ExtractedMetadata{}, err
	}

	mediaType := inferMediaType(ctx, drv, cfg)

	if creation == "" || prompt == "" {
		return ExtractedMetadata{}, autoerr.New(autoerr.KindExtractionFailed, "creation time or prompt missing from detail panel").
			WithMetadata("creationTime", creation).WithMetadata("promptLen", len(prompt))
	}

	return ExtractedMetadata{CreationDatetime: creation, Prompt: strings.TrimSuffix(prompt, "…"), MediaType: mediaType}, nil
}

// NEARESTCREATIONTIME EVALUATES selector's MATCHES AND RETURNS THE SIBLING
// DATETIME TEXT OF WHICHEVER MATCH'S BOUNDING-BOX CENTER IS CLOSEST TO THE
// VIEWPORT CENTER — A PROXY FOR "CLOSEST TO THE ACTIVE DETAIL PANEL" THAT
// NEEDS NO EXTRA FACADE METHOD BEYOND evaluate().
func nearestCreationTime(ctx context.Context, drv browser.Driver, selector string) (string, error) {
	if selector == "" {
		return "", autoerr.New(autoerr.KindExtractionFailed, "creation_time_selector is not configured")
	}
	script := fmt.Sprintf(`(function(){
		var labels = Array.from(document.querySelectorAll(%q));
		var cx = window.innerWidth / 2, cy = window.innerHeight / 2;
		var best = null, bestDist = Infinity;
		labels.forEach(function(el){
			var sib = el.nextElementSibling;
			if (!sib) { return; }
			var r = el.getBoundingClientRect();
			var dx = (r.left + r.width/2) - cx, dy = (r.top + r.height/2) - cy;
			var dist = dx*dx + dy*dy;
			if (dist < bestDist) { bestDist = dist; best = sib.textContent; }
		});
		return best || "";
	})()`, selector)

	var result string
	if err := drv.Evaluate(ctx, script, &result); err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

// FIRSTACCEPTABLEPROMPT TRIES EACH SELECTOR IN ORDER, ACCEPTING THE FIRST
// WHOSE STRIPPED TEXT EXCEEDS minLength/3 (§4.7.4).
func firstAcceptablePrompt(ctx context.Context, drv browser.Driver, selectors []string, minLength int) (string, error) {
	threshold := minLength / 3
	var lastErr error
	for _, sel := range selectors {
		text, err := drv.TextContent(ctx, sel)
		if err != nil {
			lastErr = err
			continue
		}
		stripped := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "…"))
		if len(stripped) > threshold {
			return stripped, nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", nil
}

// INFERMEDIATYPE RETURNS "vid" WHEN THE DOWNLOAD ICON'S href ATTRIBUTE
// CONTAINS ".mp4" AND "img" OTHERWISE; NO OTHER ATTRIBUTE OR EXTENSION IS
// CONSULTED (§4.7.4: "USED ONLY FOR NAMING").
func inferMediaType(ctx context.Context, drv browser.Driver, cfg Config) string {
	if cfg.DownloadIconSelector == "" {
		return "img"
	}
	if href, ok, _ := drv.Attribute(ctx, cfg.DownloadIconSelector, "href"); ok && strings.Contains(href, ".mp4") {
		return "vid"
	}
	return "img"
}
