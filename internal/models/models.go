package models

import (
	"fmt"
	"sync"
	"time"
)

// BLOCKKIND IDENTIFIES WHICH CONTROL-FLOW CONSTRUCT A BLOCKFRAME BELONGS TO
type BlockKind string

const (
	BlockIf    BlockKind = "IF"
	BlockWhile BlockKind = "WHILE"
	BlockTry   BlockKind = "TRY"
)

// BLOCKFRAME IS PUSHED ONTO THE EXECUTION CONTEXT'S BLOCK STACK WHEN THE
// INTERPRETER ENTERS AN IF/WHILE/TRY CONSTRUCT, AND POPPED AT ITS TERMINATOR.
type BlockFrame struct {
	Kind           BlockKind `json:"kind"`
	BeginIP        int       `json:"beginIp"`
	EndIP          int       `json:"endIp"`
	TakenBranch    bool      `json:"takenBranch"`              // IF: WHETHER A BRANCH HAS ALREADY FIRED
	CatchIP        int       `json:"catchIp,omitempty"`        // TRY: IP OF THE MATCHING CATCH_BEGIN
	IterationCount int       `json:"iterationCount,omitempty"` // WHILE: COMPLETED ITERATIONS
}

// LASTCHECK RECORDS THE OUTCOME OF THE MOST RECENT CHECK_ELEMENT /
// CONDITIONAL_WAIT EVALUATION, CONSULTED BY IF_BEGIN/ELIF/WHILE_BEGIN/
// SKIP_IF WHEN THEIR CONDITION IS check_passed/check_failed (§3, §4.6).
type LastCheck struct {
	Success       bool      `json:"success"`
	Value         string    `json:"value,omitempty"`
	AttributeRead string    `json:"attributeRead,omitempty"`
	Selector      string    `json:"selector,omitempty"`
	EvaluatedAt   time.Time `json:"evaluatedAt"`
}

// EXECUTIONCONTEXT IS THE MUTABLE STATE THREADED THROUGH A SINGLE
// INTERPRETER RUN. IT IS NOT SHARED ACROSS GOROUTINES (§5) BUT STILL CARRIES
// A MUTEX SO AMBIENT CODE (E.G. A CLI STATUS PRINTER) CAN SAFELY PEEK AT IT.
type ExecutionContext struct {
	mu sync.Mutex

	Variables         map[string]any `json:"variables"`
	LastCheck         LastCheck      `json:"lastCheck"`
	BlockStack        []BlockFrame   `json:"blockStack"`
	InstructionPointer int           `json:"instructionPointer"`
	ShouldIncrement   bool           `json:"shouldIncrement"`
	Errors            []string       `json:"errors"`
	Cancelled         bool           `json:"cancelled"`
}

// NEWEXECUTIONCONTEXT RETURNS A FRESH CONTEXT AT INSTRUCTION ZERO.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		Variables:          make(map[string]any),
		BlockStack:         make([]BlockFrame, 0, 8),
		ShouldIncrement:    true,
		InstructionPointer: 0,
	}
}

// SETVARIABLE SAFELY ASSIGNS A VARIABLE BY NAME.
func (c *ExecutionContext) SetVariable(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Variables[name] = value
}

// GETVARIABLE SAFELY READS A VARIABLE BY NAME.
func (c *ExecutionContext) GetVariable(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.Variables[name]
	return v, ok
}

// PUSHBLOCK PUSHES A NEW FRAME ONTO THE BLOCK STACK.
func (c *ExecutionContext) PushBlock(f BlockFrame) {
	c.BlockStack = append(c.BlockStack, f)
}

// POPBLOCK REMOVES AND RETURNS THE TOP FRAME. THE CALLER MUST CHECK
// CURRENTBLOCK() IS NON-NIL FIRST; POPPING AN EMPTY STACK IS A RESOLVER BUG.
func (c *ExecutionContext) PopBlock() BlockFrame {
	n := len(c.BlockStack)
	f := c.BlockStack[n-1]
	c.BlockStack = c.BlockStack[:n-1]
	return f
}

// CURRENTBLOCK RETURNS A POINTER TO THE TOP FRAME, OR NIL IF THE STACK IS EMPTY.
func (c *ExecutionContext) CurrentBlock() *BlockFrame {
	if len(c.BlockStack) == 0 {
		return nil
	}
	return &c.BlockStack[len(c.BlockStack)-1]
}

// INNERMOSTWHILE SEARCHES THE BLOCK STACK FOR THE NEAREST ENCLOSING WHILE
// FRAME, USED TO RESOLVE BREAK/CONTINUE JUMP TARGETS.
func (c *ExecutionContext) InnermostWhile() (BlockFrame, bool) {
	for i := len(c.BlockStack) - 1; i >= 0; i-- {
		if c.BlockStack[i].Kind == BlockWhile {
			return c.BlockStack[i], true
		}
	}
	return BlockFrame{}, false
}

// INCOMPLETEFILEID IS THE PLACEHOLDER WRITTEN WHEN A DOWNLOAD FAILS AFTER A
// LOG ENTRY WAS ALREADY STARTED. ENTRIES CARRYING IT MUST BE IGNORED BY
// DUPLICATE DETECTION (§4.7.5, TESTABLE PROPERTY 5).
const IncompleteFileID = "#999999999"

// DOWNLOADLOGENTRY IS ONE BIT-EXACT RECORD IN THE DOWNLOAD LOG (§6.3, §3).
type DownloadLogEntry struct {
	FileID           string `json:"fileId"`           // RENDERED ZERO-PADDED TO 9 DIGITS, OR THE INCOMPLETE PLACEHOLDER
	CreationDatetime string `json:"creationDatetime"` // CANONICAL "DD Mon YYYY HH:MM:SS", VERBATIM
	Prompt           string `json:"prompt"`
	MediaType        string `json:"mediaType"`
	SequenceIndex    int    `json:"sequenceIndex"`
}

// ISINCOMPLETE REPORTS WHETHER THIS ENTRY CARRIES THE PLACEHOLDER FILE ID,
// WHICH MUST BE IGNORED FOR DUPLICATE-KEY COMPARISON (§4.7.3, §4.7.5).
func (e DownloadLogEntry) IsIncomplete() bool {
	return e.FileID == IncompleteFileID
}

// DUPLICATEKEY RETURNS THE (CREATION_DATETIME, PROMPT[:100]) TUPLE USED TO
// DETECT ALREADY-DOWNLOADED GENERATIONS. CALLERS MUST SKIP INCOMPLETE ENTRIES
// BEFORE CALLING THIS (SEE ISINCOMPLETE).
func (e DownloadLogEntry) DuplicateKey() [2]string {
	p := e.Prompt
	if len(p) > 100 {
		p = p[:100]
	}
	return [2]string{e.CreationDatetime, p}
}

// DOWNLOADLOGINDEX IS THE IN-MEMORY DEDUPLICATION INDEX BUILT BY SCANNING
// THE DOWNLOAD LOG ONCE AT STARTUP (§4.7.3). NOT SAFE FOR CONCURRENT USE,
// CONSISTENT WITH THE SINGLE-THREADED DOWNLOAD MANAGER (§5).
type DownloadLogIndex struct {
	keys     map[[2]string]struct{}
	entries  []DownloadLogEntry
	nextSeq  int
}

// NEWDOWNLOADLOGINDEX BUILDS AN EMPTY INDEX STARTING SEQUENCE IDS AT 1.
func NewDownloadLogIndex() *DownloadLogIndex {
	return &DownloadLogIndex{
		keys:    make(map[[2]string]struct{}),
		entries: make([]DownloadLogEntry, 0, 64),
		nextSeq: 1,
	}
}

// LOAD POPULATES THE INDEX FROM PREVIOUSLY PARSED LOG ENTRIES, SKIPPING
// INCOMPLETE ENTRIES FOR DEDUPLICATION PURPOSES BUT KEEPING THE SEQUENCE
// COUNTER CONTIGUOUS WITH WHAT'S ON DISK.
func (idx *DownloadLogIndex) Load(entries []DownloadLogEntry) {
	for _, e := range entries {
		idx.entries = append(idx.entries, e)
		if !e.IsIncomplete() {
			idx.keys[e.DuplicateKey()] = struct{}{}
		}
		if e.SequenceIndex >= idx.nextSeq {
			idx.nextSeq = e.SequenceIndex + 1
		}
	}
}

// SEEN REPORTS WHETHER AN ENTRY WITH THE SAME DUPLICATE KEY HAS ALREADY BEEN
// RECORDED. AN INCOMPLETE ENTRY IS NEVER "SEEN".
func (idx *DownloadLogIndex) Seen(e DownloadLogEntry) bool {
	if e.IsIncomplete() {
		return false
	}
	_, ok := idx.keys[e.DuplicateKey()]
	return ok
}

// FORMATFILEID ZERO-PADS A SEQUENCE NUMBER TO THE 9-DIGIT WIDTH §6.3
// REQUIRES FOR THE DOWNLOAD LOG'S FIRST LINE (`#000000001`).
func FormatFileID(sequenceIndex int) string {
	return fmt.Sprintf("#%09d", sequenceIndex)
}

// APPEND RECORDS A NEW ENTRY, ASSIGNING IT THE NEXT SEQUENCE INDEX AND
// COMPUTING FILEID FROM IT, UNLESS THE CALLER ALREADY SET FILEID TO THE
// INCOMPLETE PLACEHOLDER (A FAILED DOWNLOAD THAT STILL NEEDS A LOG ROW).
// RETURNS THE STAMPED ENTRY FOR THE CALLER TO SERIALIZE TO DISK.
func (idx *DownloadLogIndex) Append(e DownloadLogEntry) DownloadLogEntry {
	e.SequenceIndex = idx.nextSeq
	idx.nextSeq++
	if e.FileID != IncompleteFileID {
		e.FileID = FormatFileID(e.SequenceIndex)
	}
	idx.entries = append(idx.entries, e)
	if !e.IsIncomplete() {
		idx.keys[e.DuplicateKey()] = struct{}{}
	}
	return e
}

// ENTRIES RETURNS THE FULL LOADED+APPENDED ENTRY SET IN LOG ORDER.
func (idx *DownloadLogIndex) Entries() []DownloadLogEntry {
	return idx.entries
}

// GALLERYCONTAINER IS ONE SCANNED THUMBNAIL TILE IN THE GENERATION GALLERY,
// CARRYING ENOUGH SPATIAL INFORMATION TO PAIR A CREATION-TIME LABEL WITH ITS
// NEAREST THUMBNAIL (§4.7.1 SPATIAL SELECTION).
type GalleryContainer struct {
	NodeID       string  `json:"nodeId"` // BACKEND-SPECIFIC ELEMENT HANDLE, OPAQUE TO CALLERS
	BoundingBoxX float64 `json:"boundingBoxX"`
	BoundingBoxY float64 `json:"boundingBoxY"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
}

// DOWNLOADMANAGERMODE IS THE DEDUPLICATION STRATEGY IN EFFECT (§4.7.2).
type DownloadManagerMode string

const (
	ModeSkip   DownloadManagerMode = "SKIP"
	ModeFinish DownloadManagerMode = "FINISH"
)

// SCROLLSTATS IS A RUNNING TALLY OF SCROLL ATTEMPTS MAINTAINED BY THE
// DOWNLOAD MANAGER FOR DIAGNOSTICS (§3).
type ScrollStats struct {
	Attempts    int `json:"attempts"`
	TotalPixels int `json:"totalPixels"`
	Successes   int `json:"successes"`
	Failures    int `json:"failures"`
}

// DOWNLOADMANAGERSTATE IS THE GENERATION-DOWNLOAD MANAGER'S STATE MACHINE
// VARIABLE BAG (§4.7.2), PERSISTED ACROSS STATE TRANSITIONS BUT NEVER ACROSS
// PROCESSES — A RESTART RE-DERIVES IT FROM THE DOWNLOAD LOG AND CONFIG.
type DownloadManagerState struct {
	Mode                DownloadManagerMode `json:"mode"`
	StartIndex          int                 `json:"startIndex"`
	SkipModeActive      bool                `json:"skipModeActive"`
	Checkpoint          *DownloadLogEntry   `json:"checkpoint,omitempty"`
	DownloadsCompleted  int                 `json:"downloadsCompleted"`
	MaxDownloads        int                 `json:"maxDownloads"` // 0 MEANS UNBOUNDED
	ScrollStats         ScrollStats         `json:"scrollStats"`

	// TERMINALSTATE IS ONE OF THE FOUR STRINGS §4.7.2 NAMES
	// (DONE_OK/DONE_LIMIT/DONE_END_OF_GALLERY/DONE_ERROR), SET ONCE THE
	// MANAGER STOPS. EMPTY WHILE THE MANAGER IS STILL RUNNING.
	TerminalState string `json:"terminalState,omitempty"`
}

// TERMINAL STATE CONSTANTS FOR DownloadManagerState.TerminalState (§4.7.2).
const (
	DoneOK            = "DONE_OK"
	DoneLimit         = "DONE_LIMIT"
	DoneEndOfGallery  = "DONE_END_OF_GALLERY"
	DoneError         = "DONE_ERROR"
)

// REACHEDLIMIT REPORTS WHETHER THE CONFIGURED MAXDOWNLOADS HAS BEEN MET.
func (s *DownloadManagerState) ReachedLimit() bool {
	return s.MaxDownloads > 0 && s.DownloadsCompleted >= s.MaxDownloads
}

// BOUNDARYSCROLLDEFAULTMINDISTANCEPX IS THE DEFAULT MINIMUM SCROLL DISTANCE.
// A CONFIGURED VALUE BELOW BOUNDARYSCROLLWARNTHRESHOLDPX IS HONORED AS-IS
// (THE SPEC'S OPEN QUESTION IS RESOLVED AS "WARN, NEVER SILENTLY CLAMP" —
// SEE DESIGN.MD) BUT LOGGED LOUDLY BY THE MANAGER THAT CONSTRUCTS THIS STATE.
const (
	BoundaryScrollDefaultMinDistancePx = 2500
	BoundaryScrollWarnThresholdPx      = 2000
)

// BOUNDARYSCROLLSTATE TRACKS THE GALLERY-SCROLLING STRATEGY'S PROGRESS
// (§4.8): HOW FAR THE LAST SCROLL MOVED THE VIEWPORT, AND HOW MANY
// CONSECUTIVE NON-ADVANCING ATTEMPTS HAVE OCCURRED.
type BoundaryScrollState struct {
	MinScrollDistancePx int      `json:"minScrollDistancePx"`
	MaxAttempts         int      `json:"maxAttempts"`
	ConsecutiveFailures int      `json:"consecutiveFailures"`
	LastContainerSet    []string `json:"lastContainerSet"` // NODE IDS OBSERVED ON THE PRIOR SCROLL, FOR DISPLACEMENT COMPARISON
}

// NEWBOUNDARYSCROLLSTATE HONORS A CONFIGURED MINIMUM SCROLL DISTANCE VERBATIM
// (0 MEANS "USE THE DEFAULT") — THE CALLER IS RESPONSIBLE FOR WARNING WHEN
// IT IS BELOW BOUNDARYSCROLLWARNTHRESHOLDPX, SINCE THIS PACKAGE DOES NOT LOG.
func NewBoundaryScrollState(configuredMinDistancePx, maxAttempts int) *BoundaryScrollState {
	minDist := configuredMinDistancePx
	if minDist <= 0 {
		minDist = BoundaryScrollDefaultMinDistancePx
	}
	return &BoundaryScrollState{
		MinScrollDistancePx: minDist,
		MaxAttempts:         maxAttempts,
	}
}

// EXITSCANCOMPLETE REPORTS WHETHER CONSECUTIVE FAILURES HAVE REACHED THE
// CONFIGURED ATTEMPT CAP, SIGNALING END-OF-GALLERY.
func (s *BoundaryScrollState) ExitScanComplete() bool {
	return s.MaxAttempts > 0 && s.ConsecutiveFailures >= s.MaxAttempts
}

// RUNEXITSTATUS IS THE TERMINAL OUTCOME OF ONE `automaton run` INVOCATION,
// RECORDED BY THE RUN HISTORY STORE (SPEC_FULL §3).
type RunExitStatus string

const (
	RunSuccess RunExitStatus = "success"
	RunFailure RunExitStatus = "failure"
)

// RUNRECORD IS ONE ROW IN THE RUN HISTORY STORE.
type RunRecord struct {
	ID                   string        `json:"id"`
	ConfigName           string        `json:"configName"`
	StartedAt            time.Time     `json:"startedAt"`
	EndedAt              time.Time     `json:"endedAt"`
	ExitStatus           RunExitStatus `json:"exitStatus"`
	ErrorKind            string        `json:"errorKind,omitempty"`
	ErrorMessage         string        `json:"errorMessage,omitempty"`
	DownloadsCompleted   int           `json:"downloadsCompleted"`
	ManagerTerminalState string        `json:"managerTerminalState,omitempty"`
}
