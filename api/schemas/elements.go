package schemas

// -- Element Inventory Schemas --

// BoundingBox is an element's rectangle in top-level viewport coordinates,
// already adjusted for the offsets of every ancestor iframe.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementRecord is one entry of an extraction pass. Index values are dense,
// start at 1 and are only meaningful for the pass that produced them.
type ElementRecord struct {
	Index           int               `json:"index"`
	TagName         string            `json:"tagName"`
	Selector        string            `json:"selector"`
	XPath           string            `json:"xPath"`
	Text            string            `json:"text"`
	FullText        string            `json:"fullText,omitempty"`
	Attributes      map[string]string `json:"attributes"`
	BoundingBox     BoundingBox       `json:"boundingBox"`
	Role            string            `json:"role,omitempty"`
	AccessibleLabel string            `json:"accessibleLabel,omitempty"`
	// Frame is the path of iframe positions from the top document to the
	// element's owning document. Empty means the top document.
	Frame []int `json:"frame"`
}

// InTopDocument reports whether the record lives in the top-level document.
func (r ElementRecord) InTopDocument() bool {
	return len(r.Frame) == 0
}

// ExtractRequest carries the options of one extraction pass.
type ExtractRequest struct {
	// ElementsTypeFilter restricts the pass to semantic categories such as
	// BUTTON or INPUT_FIELDS. Empty, or a single "ALL", selects the default
	// important tag set.
	ElementsTypeFilter []string `json:"elementsTypeFilter,omitempty"`
	MaxDepth           int      `json:"maxDepth,omitempty"`
	DebugHighlight     bool     `json:"debugHighlight,omitempty"`
	// Mode is "important" (default) or "interactive".
	Mode         string `json:"mode,omitempty"`
	ViewportOnly bool   `json:"viewportOnly,omitempty"`
}

// ExtractResult is the outcome of one extraction pass.
type ExtractResult struct {
	SessionID string          `json:"sessionId"`
	URL       string          `json:"url,omitempty"`
	Elements  []ElementRecord `json:"elements"`
	// SkippedFrames lists frame paths that could not be read.
	SkippedFrames [][]int `json:"skippedFrames,omitempty"`
}
