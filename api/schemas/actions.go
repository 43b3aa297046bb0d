package schemas

// -- Action Schemas --

// ActionType names one of the closed set of local actions.
type ActionType string

const (
	ActionClick          ActionType = "click"
	ActionClickElement   ActionType = "click_element"
	ActionInputText      ActionType = "input_text"
	ActionScroll         ActionType = "scroll"
	ActionHover          ActionType = "hover"
	ActionSubmitForm     ActionType = "submit_form"
	ActionKeyPress       ActionType = "key_press"
	ActionExtract        ActionType = "extract"
	ActionExtractContent ActionType = "extract_content"
	ActionSelect         ActionType = "select"
	ActionDoubleClick    ActionType = "double_click"
	ActionRightClick     ActionType = "right_click"
	ActionNavigate       ActionType = "navigate"
	ActionVerify         ActionType = "verify"
	ActionWait           ActionType = "wait"
	ActionDone           ActionType = "done"
)

// KnownActionTypes lists every recognized action type in a stable order.
var KnownActionTypes = []ActionType{
	ActionClick, ActionClickElement, ActionInputText, ActionScroll, ActionHover,
	ActionSubmitForm, ActionKeyPress, ActionExtract, ActionExtractContent, ActionSelect,
	ActionDoubleClick, ActionRightClick, ActionNavigate, ActionVerify, ActionWait, ActionDone,
}

// ActionDescriptor is the loosely typed form in which a planner hands an
// action over. Data holds whichever of selector, xPath, index, frame, text,
// key, value, offset, direction, url and duration the type needs.
type ActionDescriptor struct {
	ID   string         `json:"id"`
	Type ActionType     `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Descriptor data keys.
const (
	KeySelector  = "selector"
	KeyXPath     = "xPath"
	KeyIndex     = "index"
	KeyFrame     = "frame"
	KeyText      = "text"
	KeyKey       = "key"
	KeyValue     = "value"
	KeyOffset    = "offset"
	KeyDirection = "direction"
	KeyURL       = "url"
	KeyDuration  = "duration"
)

// ActionsCompleted is the message reported for a batch that ran to the end
// without meeting a done action, including the empty batch.
const ActionsCompleted = "ACTIONS_COMPLETED"

// ExecutionOutcome is the caller-facing result of a batch run.
type ExecutionOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	// Data carries extracted text for extract actions.
	Data string `json:"data,omitempty"`
	// The following are only set on failure.
	ActionID   string     `json:"actionId,omitempty"`
	ActionType ActionType `json:"actionType,omitempty"`
	Position   int        `json:"position"`
	Kind       string     `json:"kind,omitempty"`
	Error      string     `json:"error,omitempty"`
}
