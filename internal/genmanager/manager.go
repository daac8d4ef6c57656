package genmanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olereon/automaton/internal/autoerr"
	"github.com/olereon/automaton/internal/autolog"
	"github.com/olereon/automaton/internal/browser"
	"github.com/olereon/automaton/internal/models"
	"github.com/olereon/automaton/internal/utils"
)

// MAXSCROLLATTEMPTS IS THE BOUNDARY SCROLL MANAGER'S DEFAULT CONSECUTIVE-
// FAILURE CAP (§4.8: "AFTER TWO CONSECUTIVE NON-ADVANCING ATTEMPTS, DECLARE
// END-OF-GALLERY").
const MaxScrollAttempts = 2

// MAXLOGPROMPTLENGTH BOUNDS THE DOWNLOAD LOG'S PROMPT FIELD (§6.3: "MAY BE
// TRUNCATED WITH TRAILING '…'") IN RUNES. ONLY THE LENGTH IS BOUNDED:
// NEWLINES INSIDE THE PROMPT ARE NOT REMOVED.
const MaxLogPromptLength = 500

// EXTRACTRETRIES AND EXTRACTRETRYDELAY IMPLEMENT §4.7.4's "UP TO 3 ATTEMPTS
// SEPARATED BY 1s" RETRY RULE FOR MISSING METADATA.
const (
	ExtractRetries    = 3
	ExtractRetryDelay = time.Second
)

// MANAGER RUNS THE GENERATION-DOWNLOAD STATE MACHINE (§4.7.2) OVER A SINGLE
// GALLERY PAGE ALREADY NAVIGATED TO BY THE TIME START_GENERATION_DOWNLOADS
// DISPATCHES.
type Manager struct {
	Cfg Config
	Drv browser.Driver

	idx      *models.DownloadLogIndex
	scroller *Scroller
	state    models.DownloadManagerState
}

// NEWMANAGER LOADS THE DOWNLOAD LOG AND BUILDS THE IN-MEMORY DEDUP INDEX
// (STATES INIT → LOAD_LOG).
func NewManager(cfg Config, drv browser.Driver) (*Manager, error) {
	entries, err := ReadLog(LogPath(cfg.LogsFolder))
	if err != nil {
		return nil, err
	}
	idx := models.NewDownloadLogIndex()
	idx.Load(entries)

	var checkpoint *models.DownloadLogEntry
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		checkpoint = &last
	}

	return &Manager{
		Cfg:      cfg,
		Drv:      drv,
		idx:      idx,
		scroller: NewScroller(cfg.ScrollAmountPx, MaxScrollAttempts, cfg.ThumbnailSelector),
		state: models.DownloadManagerState{
			Mode:       cfg.DuplicateMode,
			StartIndex: cfg.StartContainerIndex,
			Checkpoint: checkpoint,
			MaxDownloads: cfg.MaxDownloads,
		},
	}, nil
}

// RUN DRIVES SCAN_GALLERY → OPEN_CONTAINER → EXTRACT_METADATA →
// DEDUP_DECIDE → DOWNLOAD → LOG_APPEND → NEXT UNTIL A TERMINAL STATE IS
// REACHED.
func (m *Manager) Run(ctx context.Context) (models.DownloadManagerState, error) {
	containerIndex := m.state.StartIndex

	if m.Cfg.StartFromDatetime != "" {
		lastScanned, entered, err := m.startFromDatetime(ctx)
		if err != nil {
			m.state.TerminalState = models.DoneError
			return m.state, err
		}
		if entered {
			// DETAIL VIEW ENTERED DIRECTLY; THE NORMAL SCAN RESTARTS FROM
			// start_container_index, SAME AS AFTER exitScanReturn (§4.7.8 STEP 5).
			containerIndex = m.Cfg.StartContainerIndex
		} else {
			// NOT FOUND WITHIN SCROLL LIMITS: CONTINUE IN GENERATION-CONTAINER
			// MODE FROM WHEREVER THE SCAN LEFT OFF — NEVER FALL BACK TO A
			// THUMBNAILS-GALLERY VIEW (§4.7.9).
			containerIndex = lastScanned
		}
	}

scanLoop:
	for {
		if m.state.ReachedLimit() {
			m.state.TerminalState = models.DoneLimit
			return m.state, nil
		}

		ids, err := SnapshotContainerIDs(ctx, m.Drv, containerIndex, ContainerWindow)
		if err != nil {
			m.state.TerminalState = models.DoneError
			return m.state, err
		}

		if len(ids) == 0 {
			advanced, newIDs, err := m.scroller.Advance(ctx, m.Drv, m.Cfg.ThumbnailSelector, containerIndex)
			if err != nil {
				m.state.TerminalState = models.DoneError
				return m.state, err
			}
			if !advanced && m.scroller.State.ExitScanComplete() {
				m.state.TerminalState = models.DoneEndOfGallery
				m.state.ScrollStats = scrollStatsFrom(m.scroller.State)
				return m.state, nil
			}
			if len(newIDs) == 0 {
				continue
			}
			ids = newIDs
		}

		for _, id := range ids {
			status, err := containerStatus(ctx, m.Drv, id)
			if err != nil {
				autolog.Default().Warn("could not read container status, skipping", map[string]any{"containerId": id, "error": err.Error()})
				continue
			}
			if status == "queuing" || status == "failed" {
				continue
			}

			if m.state.ReachedLimit() {
				m.state.TerminalState = models.DoneLimit
				return m.state, nil
			}

			outcome, err := m.processContainer(ctx, id)
			if err != nil {
				autolog.Default().Warn("skipping container after processing error", map[string]any{"containerId": id, "error": err.Error()})
				continue
			}
			switch outcome {
			case outcomeDuplicateFinish:
				m.state.TerminalState = models.DoneOK
				return m.state, nil
			case outcomeExitScanReturn:
				resumed, err := m.exitScanReturn(ctx)
				if err != nil {
					m.state.TerminalState = models.DoneError
					return m.state, err
				}
				if !resumed {
					m.state.TerminalState = models.DoneEndOfGallery
					return m.state, nil
				}
				// exitScanReturn CLICKED INTO A NEW BOUNDARY CONTAINER; THE
				// REMAINDER OF THE STALE ids SLICE NO LONGER REFLECTS THE
				// GALLERY'S CURRENT SCROLL POSITION, SO RESTART SCANNING FROM
				// start_container_index (§4.7.8 STEP 5).
				containerIndex = m.Cfg.StartContainerIndex
				continue scanLoop
			case outcomeDownloaded:
				// CONTINUE TO THE NEXT CONTAINER.
			}
		}

		containerIndex += len(ids)
	}
}

type containerOutcome int

const (
	outcomeDownloaded containerOutcome = iota
	outcomeDuplicateFinish
	outcomeExitScanReturn
)

// PROCESSCONTAINER IMPLEMENTS STATES OPEN_CONTAINER THROUGH LOG_APPEND FOR
// ONE CONTAINER ID (§4.7.4-§4.7.7).
func (m *Manager) processContainer(ctx context.Context, containerID string) (containerOutcome, error) {
	selector := containerSelectorByID(containerID)
	if err := clickMultiStrategy(ctx, m.Drv, selector); err != nil {
		return outcomeDownloaded, err
	}

	meta, err := m.extractWithRetry(ctx)
	if err != nil {
		return outcomeDownloaded, err
	}

	entry := models.DownloadLogEntry{CreationDatetime: meta.CreationDatetime, Prompt: utils.TruncateString(meta.Prompt, MaxLogPromptLength), MediaType: meta.MediaType}
	if m.idx.Seen(entry) {
		if m.state.Mode == models.ModeFinish {
			return outcomeDuplicateFinish, nil
		}
		m.state.SkipModeActive = true
		return outcomeExitScanReturn, nil
	}

	if err := m.download(ctx, entry); err != nil {
		placeholder := entry
		placeholder.FileID = models.IncompleteFileID
		stamped := m.idx.Append(placeholder)
		_ = AppendLog(LogPath(m.Cfg.LogsFolder), stamped)
		return outcomeDownloaded, err
	}

	stamped := m.idx.Append(entry)
	if err := AppendLog(LogPath(m.Cfg.LogsFolder), stamped); err != nil {
		return outcomeDownloaded, err
	}
	m.state.DownloadsCompleted++
	m.state.Checkpoint = &stamped
	return outcomeDownloaded, nil
}

// EXTRACTWITHRETRY RETRIES ExtractMetadata UP TO EXTRACTRETRIES TIMES,
// 1s APART, TO ACCOMMODATE DYNAMIC DOM UPDATES AFTER A SCROLL (§4.7.4).
func (m *Manager) extractWithRetry(ctx context.Context) (ExtractedMetadata, error) {
	var lastErr error
	for attempt := 0; attempt < ExtractRetries; attempt++ {
		meta, err := ExtractMetadata(ctx, m.Drv, m.Cfg)
		if err == nil {
			return meta, nil
		}
		lastErr = err
		if attempt < ExtractRetries-1 {
			select {
			case <-time.After(ExtractRetryDelay):
			case <-ctx.Done():
				return ExtractedMetadata{}, ctx.Err()
			}
		}
	}
	return ExtractedMetadata{}, lastErr
}

// DOWNLOAD IMPLEMENTS STATE DOWNLOAD (§4.7.6): CLICK THE DOWNLOAD ICON, WAIT
// FOR THE OPTIONS MENU, CLICK THE WATERMARK-VARIANT OPTION, CAPTURE THE
// RESULTING BROWSER DOWNLOAD, AND RENAME IT PER file_naming_template.
func (m *Manager) download(ctx context.Context, entry models.DownloadLogEntry) error {
	if m.Cfg.DownloadIconSelector == "" {
		return autoerr.New(autoerr.KindDownloadFailed, "download_icon_selector is not configured")
	}

	result, err := m.Drv.DownloadNext(ctx, func(triggerCtx context.Context) error {
		if err := m.Drv.Click(triggerCtx, m.Cfg.DownloadIconSelector, false); err != nil {
			return err
		}
		if m.Cfg.WatermarkOptionText != "" {
			optionSelector := fmt.Sprintf("text=%s", m.Cfg.WatermarkOptionText)
			if err := m.Drv.WaitForSelector(triggerCtx, optionSelector, browser.StateVisible); err != nil {
				return err
			}
			return m.Drv.Click(triggerCtx, optionSelector, false)
		}
		return nil
	}, m.Cfg.DownloadsFolder)
	if err != nil {
		return autoerr.New(autoerr.KindDownloadFailed, err.Error())
	}

	return renameDownload(result.Path, m.Cfg.DownloadsFolder, m.Cfg.FileNamingTemplate, m.Cfg.UniqueID, entry)
}

// FORMATFILENAME EXPANDS file_naming_template'S `{media_type}`,
// `{creation_date}`, AND `{unique_id}` PLACEHOLDERS (§6.4). unique_id IS
// PRESERVED VERBATIM FROM CONFIG RATHER THAN HARD-CODED TO "gen" — THE
// HISTORICAL BUG §6.4 CALLS OUT.
func FormatFilename(template, mediaType, creationDatetime, uniqueID string) string {
	r := strings.NewReplacer(
		"{media_type}", mediaType,
		"{creation_date}", sanitizeForFilename(creationDatetime),
		"{unique_id}", uniqueID,
	)
	return r.Replace(template)
}

func sanitizeForFilename(s string) string {
	r := strings.NewReplacer(" ", "-", ":", "-")
	return r.Replace(s)
}

func renameDownload(srcPath, downloadsFolder, template, uniqueID string, entry models.DownloadLogEntry) error {
	ext := filepath.Ext(srcPath)
	name := FormatFilename(template, entry.MediaType, entry.CreationDatetime, uniqueID) + ext
	return moveFile(srcPath, filepath.Join(downloadsFolder, name))
}

func scrollStatsFrom(s *models.BoundaryScrollState) models.ScrollStats {
	return models.ScrollStats{
		Attempts: s.ConsecutiveFailures,
		Failures: s.ConsecutiveFailures,
	}
}

func containerSelectorByID(id string) string {
	return fmt.Sprintf("#%s", cssEscapeID(id))
}

func cssEscapeID(id string) string {
	return strings.NewReplacer(":", "\\:", ".", "\\.").Replace(id)
}

// CLICKMULTISTRATEGY TRIES, IN ORDER: NORMAL CLICK, FORCE CLICK, SCROLL-INTO-
// VIEW THEN CLICK (§4.7.4's FIVE-STRATEGY LIST COLLAPSED TO THE THREE THE
// browser.Driver FACADE CAN EXPRESS WITHOUT A RAW JS-DISPATCH ESCAPE HATCH
// PER HANDLE — force ALREADY COVERS THE JAVASCRIPT-CLICK CASE AT THE DRIVER
// LEVEL, SEE internal/browser/chromedp_driver.go).
func clickMultiStrategy(ctx context.Context, drv browser.Driver, selector string) error {
	if err := drv.Click(ctx, selector, false); err == nil {
		return nil
	}
	if err := drv.Click(ctx, selector, true); err == nil {
		return nil
	}
	if err := drv.ScrollIntoView(ctx, selector); err == nil {
		if err := drv.Click(ctx, selector, true); err == nil {
			return nil
		}
	}
	return autoerr.New(autoerr.KindElementNotFound, "all click strategies failed").WithSelector(selector)
}

// CONTAINERSTATUS READS A CONTAINER'S VISIBLE TEXT AND CLASSIFIES IT AS
// "queuing", "failed", OR "" (COMPLETE) PER §4.7.3.
func containerStatus(ctx context.Context, drv browser.Driver, containerID string) (string, error) {
	text, err := drv.TextContent(ctx, containerSelectorByID(containerID))
	if err != nil {
		return "", err
	}
	switch {
	case strings.Contains(text, "Queuing"):
		return "queuing", nil
	case strings.Contains(text, "Something went wrong"):
		return "failed", nil
	default:
		return "", nil
	}
}

// STARTFROMDATETIME IMPLEMENTS §4.7.9: WHEN start_from_datetime IS
// CONFIGURED, SCAN MAIN-PAGE CONTAINERS — NEVER A THUMBNAILS VIEW — DRIVING
// THE BOUNDARY SCROLL MANAGER UNTIL ONE'S CREATION DATETIME MATCHES EXACTLY
// (§6.2 OPEN QUESTION (A): EXACT STRING EQUALITY, NO TOLERANCE), THEN CLICKS
// IT INTO DETAIL VIEW. RETURNS THE LAST SCANNED CONTAINER INDEX AND WHETHER
// A MATCH WAS ENTERED; WHEN false THE CALLER CONTINUES IN
// GENERATION-CONTAINER MODE FROM THAT INDEX RATHER THAN FALLING BACK TO ANY
// THUMBNAILS VIEW.
func (m *Manager) startFromDatetime(ctx context.Context) (int, bool, error) {
	scanIndex := m.Cfg.StartContainerIndex

	for {
		ids, err := SnapshotContainerIDs(ctx, m.Drv, scanIndex, ContainerWindow)
		if err != nil {
			return scanIndex, false, err
		}

		if len(ids) == 0 {
			advanced, newIDs, err := m.scroller.Advance(ctx, m.Drv, m.Cfg.ThumbnailSelector, scanIndex)
			if err != nil {
				return scanIndex, false, err
			}
			if !advanced && m.scroller.State.ExitScanComplete() {
				return scanIndex, false, nil
			}
			if len(newIDs) == 0 {
				continue
			}
			ids = newIDs
		}

		for _, id := range ids {
			lightweight, err := m.lightweightMetadata(ctx, id)
			if err != nil {
				continue
			}
			if lightweight.CreationDatetime == m.Cfg.StartFromDatetime {
				if err := clickMultiStrategy(ctx, m.Drv, containerSelectorByID(id)); err != nil {
					return scanIndex, false, err
				}
				return scanIndex, true, nil
			}
		}

		scanIndex += len(ids)
	}
}

// EXITSCANRETURN IMPLEMENTS THE RECOVERY PROTOCOL (§4.7.8): CLOSE THE DETAIL
// VIEW, WALK CONTAINERS FROM start_container_index COMPARING EACH AGAINST
// THE LOG, AND CLICK INTO THE FIRST ONE WITH NO LOG MATCH. RETURNS false IF
// NO BOUNDARY IS FOUND BEFORE END-OF-GALLERY.
func (m *Manager) exitScanReturn(ctx context.Context) (bool, error) {
	if err := m.closeDetailView(ctx); err != nil {
		return false, err
	}

	scanIndex := m.Cfg.StartContainerIndex
	for attempt := 0; attempt < MaxScrollAttempts+1; attempt++ {
		ids, err := SnapshotContainerIDs(ctx, m.Drv, scanIndex, ContainerWindow)
		if err != nil {
			return false, err
		}

		for _, id := range ids {
			lightweight, err := m.lightweightMetadata(ctx, id)
			if err != nil {
				continue
			}
			if !m.idx.Seen(lightweight) {
				if err := clickMultiStrategy(ctx, m.Drv, containerSelectorByID(id)); err != nil {
					continue
				}
				return true, nil
			}
		}

		advanced, _, err := m.scroller.Advance(ctx, m.Drv, m.Cfg.ThumbnailSelector, scanIndex)
		if err != nil {
			return false, err
		}
		if !advanced && m.scroller.State.ExitScanComplete() {
			return false, nil
		}
		scanIndex += ContainerWindow
	}
	return false, nil
}

// LIGHTWEIGHTMETADATA READS CREATION DATETIME AND PROMPT PREFIX DIRECTLY
// FROM A CONTAINER'S VISIBLE TEXT, WITHOUT OPENING ITS DETAIL VIEW (§4.7.8
// STEP 2).
func (m *Manager) lightweightMetadata(ctx context.Context, containerID string) (models.DownloadLogEntry, error) {
	text, err := m.Drv.TextContent(ctx, containerSelectorByID(containerID))
	if err != nil {
		return models.DownloadLogEntry{}, err
	}
	datetime, prompt := splitLightweightText(text)
	return models.DownloadLogEntry{CreationDatetime: datetime, Prompt: prompt}, nil
}

func splitLightweightText(text string) (string, string) {
	lines := strings.SplitN(strings.TrimSpace(text), "\n", 2)
	if len(lines) == 2 {
		return strings.TrimSpace(lines[0]), strings.TrimSpace(lines[1])
	}
	return strings.TrimSpace(text), ""
}

// CLOSEDETAILVIEW TRIES EACH CONFIGURED CLOSE-ICON SELECTOR IN ORDER (SIMPLEST
// FIRST), FALLING BACK TO BROWSER BACK-NAVIGATION ON TOTAL FAILURE (§4.7.8
// STEP 1).
func (m *Manager) closeDetailView(ctx context.Context) error {
	for _, sel := range m.Cfg.CloseIconSelectors {
		if err := m.Drv.Click(ctx, sel, false); err == nil {
			return nil
		}
	}
	return m.Drv.GoBack(ctx)
}

// MOVEFILE RENAMES srcPath TO dstPath. THE DOWNLOAD FACADE ALREADY MOVED THE
// FILE INTO downloads_folder, SO THIS IS A SAME-DIRECTORY RENAME IN THE
// COMMON CASE; os.Rename COVERS THAT WITHOUT A COPY.
func moveFile(srcPath, dstPath string) error {
	return os.Rename(srcPath, dstPath)
}
