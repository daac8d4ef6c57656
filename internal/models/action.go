package models

// ACTION KIND ENUMERATES THE EXHAUSTIVE SET OF STEPS THE INTERPRETER CAN DISPATCH
type ActionKind string

const (
	// NAVIGATION / PAGE
	NavigateTo    ActionKind = "NAVIGATE_TO"
	RefreshPage   ActionKind = "REFRESH_PAGE"
	SwitchPanel   ActionKind = "SWITCH_PANEL"
	ExpandDialog  ActionKind = "EXPAND_DIALOG"

	// INTERACTION
	ClickButton   ActionKind = "CLICK_BUTTON"
	InputText     ActionKind = "INPUT_TEXT"
	ToggleSetting ActionKind = "TOGGLE_SETTING"
	UploadImage   ActionKind = "UPLOAD_IMAGE"
	DownloadFile  ActionKind = "DOWNLOAD_FILE"

	// SYNCHRONIZATION
	Wait            ActionKind = "WAIT"
	WaitForElement  ActionKind = "WAIT_FOR_ELEMENT"

	// PROBES
	CheckElement ActionKind = "CHECK_ELEMENT"

	// VARIABLES & LOGGING
	SetVariable       ActionKind = "SET_VARIABLE"
	IncrementVariable ActionKind = "INCREMENT_VARIABLE"
	LogMessage        ActionKind = "LOG_MESSAGE"

	// CONTROL FLOW
	IfBegin         ActionKind = "IF_BEGIN"
	Elif            ActionKind = "ELIF"
	Else            ActionKind = "ELSE"
	IfEnd           ActionKind = "IF_END"
	WhileBegin      ActionKind = "WHILE_BEGIN"
	WhileEnd        ActionKind = "WHILE_END"
	Break           ActionKind = "BREAK"
	Continue        ActionKind = "CONTINUE"
	ConditionalWait ActionKind = "CONDITIONAL_WAIT"
	SkipIf          ActionKind = "SKIP_IF"
	TryBegin        ActionKind = "TRY_BEGIN"
	CatchBegin      ActionKind = "CATCH_BEGIN"
	CatchEnd        ActionKind = "CATCH_END"
	StopAutomation  ActionKind = "STOP_AUTOMATION"

	// DOMAIN
	StartGenerationDownloads ActionKind = "START_GENERATION_DOWNLOADS"
)

// ALLACTIONKINDS LISTS EVERY RECOGNIZED KIND IN DECLARATION ORDER. THE
// `list-actions` COMMAND AND THE LOADER GO THROUGH THE REGISTRY INSTEAD.
var AllActionKinds = []ActionKind{
	NavigateTo, RefreshPage, SwitchPanel, ExpandDialog,
	ClickButton, InputText, ToggleSetting, UploadImage, DownloadFile,
	Wait, WaitForElement,
	CheckElement,
	SetVariable, IncrementVariable, LogMessage,
	IfBegin, Elif, Else, IfEnd, WhileBegin, WhileEnd, Break, Continue,
	ConditionalWait, SkipIf, TryBegin, CatchBegin, CatchEnd, StopAutomation,
	StartGenerationDownloads,
}

// BLOCKBEGINS IS THE SET OF KINDS THAT OPEN A BLOCK FRAME.
var blockBegins = map[ActionKind]bool{
	IfBegin: true, WhileBegin: true, TryBegin: true,
}

// ISBLOCKBEGIN REPORTS WHETHER A KIND OPENS A BLOCK FRAME
func (k ActionKind) IsBlockBegin() bool { return blockBegins[k] }

// ACTION IS AN IMMUTABLE RECORD PRODUCED ONCE BY THE LOADER. JUMP TARGETS
// FILLED IN BY THE CONTROL-FLOW RESOLVER ARE STORED HERE RATHER THAN
// RE-DISCOVERED AT RUNTIME.
type Action struct {
	Kind             ActionKind     `json:"kind" yaml:"kind"`
	Selector         string         `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value            any            `json:"value,omitempty" yaml:"value,omitempty"`
	TimeoutMs        int            `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	Description      string         `json:"description,omitempty" yaml:"description,omitempty"`
	ContinueOnError  bool           `json:"continueOnError,omitempty" yaml:"continueOnError,omitempty"`

	// JUMP TARGETS, SET BY THE CONTROL-FLOW RESOLVER (§4.3). THEY STAY 0 UNTIL
	// THE RESOLVER STAMPS THEM.
	JumpTarget  int `json:"-" yaml:"-"` // TARGET FOR IF/ELIF/ELSE/WHILE_BEGIN-ON-FALSE/BREAK, AND THE LOOP-BACK TARGET FOR WHILE_END/CONTINUE
	MatchOpen   int `json:"-" yaml:"-"` // BACK-REFERENCE TO THE OPENING BEGIN FOR A TERMINATOR
	CatchTarget int `json:"-" yaml:"-"` // FOR TRY_BEGIN: IP OF ITS CATCH_BEGIN
}

// DEFAULTTIMEOUTMS IS THE DEFAULT EFFECTIVE TIMEOUT WHEN AN ACTION OMITS ONE.
const DefaultTimeoutMs = 10_000

// EFFECTIVETIMEOUT RETURNS THE ACTION'S TIMEOUT OR THE DEFAULT.
func (a *Action) EffectiveTimeout() int {
	if a.TimeoutMs > 0 {
		return a.TimeoutMs
	}
	return DefaultTimeoutMs
}

// VIEWPORT IS THE BROWSER WINDOW SIZE REQUESTED AT LAUNCH.
type Viewport struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// CONFIGURATION IS THE TOP-LEVEL, IMMUTABLE-DURING-A-RUN PROGRAM DEFINITION.
type Configuration struct {
	Name                string         `json:"name" yaml:"name"`
	URL                 string         `json:"url" yaml:"url"`
	Headless            bool           `json:"headless" yaml:"headless"`
	Viewport            Viewport       `json:"viewport" yaml:"viewport"`
	KeepBrowserOpen     bool           `json:"keepBrowserOpen" yaml:"keepBrowserOpen"`
	Actions             []Action       `json:"actions" yaml:"actions"`
	CredentialReferences map[string]string `json:"credentialReferences,omitempty" yaml:"credentialReferences,omitempty"`

	// EXTRA IS NOT FILLED BY config.Load AND NOT WRITTEN BY config.Save:
	// UNKNOWN TOP-LEVEL KEYS ARE IGNORED AND ARE NOT PRESERVED.
	Extra map[string]any `json:"-" yaml:"-"`
}
