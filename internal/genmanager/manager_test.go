package genmanager

import (
	"context"
	"testing"
)

func TestFormatFilenameExpandsAllPlaceholders(t *testing.T) {
	got := FormatFilename("{media_type}_{creation_date}_{unique_id}", "image", "05 Mar 2026 09:04:07", "gen")
	want := "image_05-Mar-2026-09-04-07_gen"
	if got != want {
		t.Errorf("FormatFilename() = %q, want %q", got, want)
	}
}

func TestFormatFilenamePreservesUniqueIDVerbatim(t *testing.T) {
	got := FormatFilename("{unique_id}", "image", "05 Mar 2026 09:04:07", "studio-42")
	if got != "studio-42" {
		t.Errorf("FormatFilename() = %q, want %q (unique_id must pass through unmodified)", got, "studio-42")
	}
}

func TestFormatFilenameIgnoresUnknownPlaceholders(t *testing.T) {
	got := FormatFilename("{unknown}_{unique_id}", "image", "x", "gen")
	want := "{unknown}_gen"
	if got != want {
		t.Errorf("FormatFilename() = %q, want %q", got, want)
	}
}

// PARSECONFIG MUST NEVER HARD-CODE "gen" OVER A CONFIGURED unique_id — THE
// HISTORICAL BUG §6.4 CALLS OUT. "gen" IS ONLY THE FALLBACK WHEN unique_id
// IS ABSENT FROM THE CONFIG MAP ENTIRELY.
func TestParseConfigPreservesConfiguredUniqueID(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{
		"downloads_folder": "/tmp/downloads",
		"logs_folder":      "/tmp/logs",
		"unique_id":        "studio-42",
	})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.UniqueID != "studio-42" {
		t.Errorf("UniqueID = %q, want %q (verbatim from config)", cfg.UniqueID, "studio-42")
	}
}

func TestParseConfigDefaultsUniqueIDOnlyWhenAbsent(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{
		"downloads_folder": "/tmp/downloads",
		"logs_folder":      "/tmp/logs",
	})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.UniqueID != "gen" {
		t.Errorf("UniqueID = %q, want default %q", cfg.UniqueID, "gen")
	}
}

func TestParseConfigRequiresDownloadsAndLogsFolder(t *testing.T) {
	if _, err := ParseConfig(map[string]any{"logs_folder": "/tmp/logs"}); err == nil {
		t.Error("expected error when downloads_folder is missing")
	}
	if _, err := ParseConfig(map[string]any{"downloads_folder": "/tmp/downloads"}); err == nil {
		t.Error("expected error when logs_folder is missing")
	}
}

func TestParseConfigRejectsUnrecognizedDuplicateMode(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{
		"downloads_folder": "/tmp/downloads",
		"logs_folder":      "/tmp/logs",
		"duplicate_mode":   "bogus",
	})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.DuplicateMode != "SKIP" {
		t.Errorf("DuplicateMode = %q, want fallback %q", cfg.DuplicateMode, "SKIP")
	}
}

func TestParseConfigHonorsScrollAmountVerbatim(t *testing.T) {
	cfg, err := ParseConfig(map[string]any{
		"downloads_folder": "/tmp/downloads",
		"logs_folder":      "/tmp/logs",
		"scroll_amount_px": 500,
	})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.ScrollAmountPx != 500 {
		t.Errorf("ScrollAmountPx = %d, want 500 (never silently clamped)", cfg.ScrollAmountPx)
	}
}

func TestContainerSelectorByIDEscapesColonsAndDots(t *testing.T) {
	got := containerSelectorByID("a.b:c")
	want := `#a\.b\:c`
	if got != want {
		t.Errorf("containerSelectorByID() = %q, want %q", got, want)
	}
}

func TestSplitLightweightTextSeparatesDatetimeAndPrompt(t *testing.T) {
	datetime, prompt := splitLightweightText("05 Mar 2026 09:04:07\na cat in a hat\n")
	if datetime != "05 Mar 2026 09:04:07" {
		t.Errorf("datetime = %q, want %q", datetime, "05 Mar 2026 09:04:07")
	}
	if prompt != "a cat in a hat" {
		t.Errorf("prompt = %q, want %q", prompt, "a cat in a hat")
	}
}

func TestSplitLightweightTextSingleLineHasNoPrompt(t *testing.T) {
	datetime, prompt := splitLightweightText("05 Mar 2026 09:04:07")
	if datetime != "05 Mar 2026 09:04:07" || prompt != "" {
		t.Errorf("splitLightweightText() = (%q, %q), want (%q, \"\")", datetime, prompt, "05 Mar 2026 09:04:07")
	}
}

// §4.7.9 START-FROM MODE: SCAN MAIN-PAGE CONTAINERS AND CLICK THE ONE WHOSE
// CREATION DATETIME MATCHES start_from_datetime EXACTLY.

func TestStartFromDatetimeEntersMatchingContainer(t *testing.T) {
	drv := &fakeDriver{
		containerIDs: []string{"a__0", "a__1"},
		containerText: map[string]string{
			"#a__0": "01 Jan 2026 10:00:00\nfirst",
			"#a__1": "02 Jan 2026 11:00:00\nsecond",
		},
	}
	cfg := Config{
		LogsFolder:          t.TempDir(),
		DownloadsFolder:     t.TempDir(),
		StartContainerIndex: 0,
		ScrollAmountPx:      2500,
		ThumbnailSelector:   "#scroll",
		StartFromDatetime:   "02 Jan 2026 11:00:00",
	}

	m, err := NewManager(cfg, drv)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	_, entered, err := m.startFromDatetime(context.Background())
	if err != nil {
		t.Fatalf("startFromDatetime() error = %v", err)
	}
	if !entered {
		t.Fatal("startFromDatetime() entered = false, want true")
	}
	if len(drv.clicked) != 1 || drv.clicked[0] != "#a__1" {
		t.Errorf("clicked = %v, want a single click on #a__1", drv.clicked)
	}
}

// WHEN NO CONTAINER EVER MATCHES WITHIN THE SCROLL LIMIT, startFromDatetime
// MUST RETURN entered=false SO Run CONTINUES IN GENERATION-CONTAINER MODE —
// IT MUST NEVER FALL BACK TO A THUMBNAILS-GALLERY VIEW (§4.7.9).
func TestStartFromDatetimeFallsBackToGenerationContainerModeWhenNotFound(t *testing.T) {
	drv := &fakeDriver{
		positions: []int{1000, 1000, 1000},
		containerIDsSeq: [][]string{
			{"a__0", "a__1"}, // ONE SCREENFUL, NEITHER MATCHES
			{},               // NOTHING RENDERED AFTERWARD; SCROLLING STALLS
		},
		containerText: map[string]string{
			"#a__0": "01 Jan 2026 10:00:00\nfirst",
			"#a__1": "02 Jan 2026 11:00:00\nsecond",
		},
	}
	cfg := Config{
		LogsFolder:          t.TempDir(),
		DownloadsFolder:     t.TempDir(),
		StartContainerIndex: 0,
		ScrollAmountPx:      2500,
		ThumbnailSelector:   "#scroll",
		StartFromDatetime:   "09 Sep 2026 09:09:09", // NEVER PRESENT
	}

	m, err := NewManager(cfg, drv)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	_, entered, err := m.startFromDatetime(context.Background())
	if err != nil {
		t.Fatalf("startFromDatetime() error = %v", err)
	}
	if entered {
		t.Error("startFromDatetime() entered = true, want false (no matching container)")
	}
	if len(drv.clicked) != 0 {
		t.Errorf("clicked = %v, want no clicks", drv.clicked)
	}
}
