// Package genmanager implements the Generation-Download Manager (§4.7): the
// stateful crawler that walks an infinite gallery, extracts per-item
// metadata, de-duplicates against a persistent log, and downloads the
// watermark-free variant of each new generation.
package genmanager

import (
	"fmt"

	"github.com/olereon/automaton/internal/models"
)

// CONFIG IS THE PARSED FORM OF START_GENERATION_DOWNLOADS's value MAP
// (§4.7.1).
type Config struct {
	DownloadsFolder      string
	LogsFolder           string
	MaxDownloads         int
	DuplicateMode        models.DownloadManagerMode
	DuplicateCheckEnabled bool
	StartContainerIndex  int
	ScrollAmountPx       int
	ThumbnailSelector    string
	CreationTimeSelector string
	PromptSelectors      []string
	DownloadIconSelector string
	WatermarkOptionText  string
	CloseIconSelectors   []string
	StartFromDatetime    string
	MinPromptLength      int
	FileNamingTemplate   string
	// UNIQUEID IS PRESERVED VERBATIM FROM CONFIG INTO EVERY DOWNLOADED
	// FILENAME (§6.4). A HISTORIC BUG HARD-CODED A "gen" PREFIX HERE,
	// SILENTLY OVERRIDING WHATEVER THE CALLER CONFIGURED; "gen" REMAINS ONLY
	// AS THE FALLBACK WHEN unique_id IS ABSENT, NEVER AS AN OVERRIDE.
	UniqueID string
}

// PARSECONFIG READS value (THE START_GENERATION_DOWNLOADS ACTION'S value MAP)
// INTO A CONFIG, APPLYING THE DEFAULTS §4.7.1 DOCUMENTS.
func ParseConfig(value any) (Config, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return Config{}, fmt.Errorf("START_GENERATION_DOWNLOADS value must be an object")
	}

	cfg := Config{
		DownloadsFolder:      str(m, "downloads_folder", ""),
		LogsFolder:           str(m, "logs_folder", ""),
		MaxDownloads:         intVal(m, "max_downloads", 0),
		DuplicateMode:        models.DownloadManagerMode(str(m, "duplicate_mode", string(models.ModeSkip))),
		DuplicateCheckEnabled: boolVal(m, "duplicate_check_enabled", true),
		StartContainerIndex:  intVal(m, "start_container_index", 8),
		// §6.2 HISTORICAL BUG: A PRIOR VERSION SILENTLY CLAMPED THIS TO 800.
		// THE CONFIGURED VALUE IS HONORED VERBATIM HERE; THE CALLER WARNS.
		ScrollAmountPx:       intVal(m, "scroll_amount_px", models.BoundaryScrollDefaultMinDistancePx),
		ThumbnailSelector:    str(m, "thumbnail_selector", ""),
		CreationTimeSelector: str(m, "creation_time_selector", ""),
		PromptSelectors:      strList(m, "prompt_selector"),
		DownloadIconSelector: str(m, "download_icon_selector", ""),
		WatermarkOptionText:  str(m, "watermark_option_text", ""),
		CloseIconSelectors:   strList(m, "close_icon_selector"),
		StartFromDatetime:    str(m, "start_from_datetime", ""),
		MinPromptLength:      intVal(m, "min_prompt_length", 50),
		FileNamingTemplate:   str(m, "file_naming_template", "{media_type}_{creation_date}_{unique_id}"),
		UniqueID:             str(m, "unique_id", "gen"),
	}

	if cfg.DownloadsFolder == "" {
		return Config{}, fmt.Errorf("downloads_folder is required")
	}
	if cfg.LogsFolder == "" {
		return Config{}, fmt.Errorf("logs_folder is required")
	}
	if cfg.DuplicateMode != models.ModeSkip && cfg.DuplicateMode != models.ModeFinish {
		cfg.DuplicateMode = models.ModeSkip
	}
	return cfg, nil
}

func str(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intVal(m map[string]any, key string, def int) int {
	switch n := m[key].(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

func boolVal(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

func strList(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
