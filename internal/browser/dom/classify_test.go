package dom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

const classifyHTML = `<html><body>
	<button id="b">Save</button>
	<button id="hidden-btn" data-display="none">Hidden</button>
	<button id="invisible-btn" data-visibility="hidden">Invisible</button>
	<button id="flat-btn" data-rect="0,0,0,0">Flat</button>
	<a id="link" href="/next">Next</a>
	<a id="hash" href="#">Top</a>
	<a id="bare">No href</a>
	<p id="para">Some text</p>
	<p id="empty-para">   </p>
	<div id="plain">container</div>
	<div id="editable" contenteditable="true">write here</div>
	<div id="editable-hint" class="ql-editable">hint</div>
	<span id="role-span" role="button">act</span>
	<span id="presentation" role="presentation">none</span>
	<canvas id="cv" data-display="none"></canvas>
	<canvas id="flat-cv" data-rect="0,0,0,0"></canvas>
	<img id="logo" src="logo.png" alt="Logo">
	<section id="widget" role="tab">tab</section>
	<section id="sect">plain</section>
	<div id="below" data-rect="0,900,100,20">below the fold</div>
	<div id="left" data-rect="-200,0,100,20">off to the left</div>
</body></html>`

func TestIsVisible(t *testing.T) {
	doc := buildDoc(t, classifyHTML)
	tests := map[string]bool{
		"b":             true,
		"hidden-btn":    false,
		"invisible-btn": false,
		"flat-btn":      false,
	}
	for id, want := range tests {
		t.Run(id, func(t *testing.T) {
			assert.Equal(t, want, dom.IsVisible(mustFind(t, doc, `//*[@id="`+id+`"]`)))
		})
	}
	assert.False(t, dom.IsVisible(dom.Element{}))
}

func TestIsInViewport(t *testing.T) {
	doc := buildDoc(t, classifyHTML)
	assert.True(t, dom.IsInViewport(mustFind(t, doc, `//*[@id="b"]`)))
	assert.False(t, dom.IsInViewport(mustFind(t, doc, `//*[@id="below"]`)))
	assert.False(t, dom.IsInViewport(mustFind(t, doc, `//*[@id="left"]`)))
}

func TestIsInteractive(t *testing.T) {
	doc := buildDoc(t, classifyHTML)
	tests := map[string]bool{
		"b":            true,
		"link":         true,
		"hash":         false,
		"bare":         false,
		"para":         false,
		"role-span":    true,
		"presentation": false,
		"widget":       true,
		"sect":         false,
	}
	for id, want := range tests {
		t.Run(id, func(t *testing.T) {
			assert.Equal(t, want, dom.IsInteractive(mustFind(t, doc, `//*[@id="`+id+`"]`)))
		})
	}
}

func TestIsImportant(t *testing.T) {
	doc := buildDoc(t, classifyHTML)
	tests := []struct {
		id   string
		want bool
	}{
		{"b", true},
		{"hidden-btn", false},
		{"link", true},
		{"para", true},
		{"empty-para", false},
		{"plain", false},
		{"editable", true},
		{"editable-hint", true},
		// Containers need an editing marker; a widget role is not enough.
		{"role-span", false},
		{"presentation", false},
		// Canvas is judged by geometry only, even when display is none.
		{"cv", true},
		{"flat-cv", false},
		{"logo", true},
		{"widget", true},
		{"sect", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, dom.IsImportant(mustFind(t, doc, `//*[@id="`+tt.id+`"]`)))
		})
	}
}

func TestIsTextInput(t *testing.T) {
	doc := buildDoc(t, `<html><body>
		<input id="txt">
		<input id="email" type="email">
		<input id="chk" type="checkbox">
		<input id="sub" type="SUBMIT">
		<textarea id="ta"></textarea>
		<select id="sel"></select>
	</body></html>`)
	tests := map[string]bool{"txt": true, "email": true, "chk": false, "sub": false, "ta": true, "sel": false}
	for id, want := range tests {
		assert.Equal(t, want, dom.IsTextInput(mustFind(t, doc, `//*[@id="`+id+`"]`)), id)
	}
}

func TestIsContentEditable(t *testing.T) {
	doc := buildDoc(t, `<html><body>
		<div id="empty" contenteditable></div>
		<div id="yes" contenteditable="TRUE"></div>
		<div id="plain" contenteditable="plaintext-only"></div>
		<div id="no" contenteditable="false"></div>
		<div id="absent"></div>
	</body></html>`)
	tests := map[string]bool{"empty": true, "yes": true, "plain": true, "no": false, "absent": false}
	for id, want := range tests {
		assert.Equal(t, want, dom.IsContentEditable(mustFind(t, doc, `//*[@id="`+id+`"]`)), id)
	}
}

func TestRole(t *testing.T) {
	doc := buildDoc(t, `<html><body>
		<a id="a" href="/x">x</a>
		<a id="a-nohref">x</a>
		<button id="btn">b</button>
		<input id="cb" type="checkbox">
		<input id="search" type="search">
		<input id="pw" type="password">
		<input id="txt">
		<select id="one"></select>
		<select id="many" multiple></select>
		<h3 id="h">H</h3>
		<img id="deco" src="x.png" alt="">
		<div id="explicit" role="tab dialog">t</div>
		<div id="none">d</div>
	</body></html>`)
	tests := map[string]string{
		"a":        "link",
		"a-nohref": "",
		"btn":      "button",
		"cb":       "checkbox",
		"search":   "searchbox",
		"pw":       "",
		"txt":      "textbox",
		"one":      "combobox",
		"many":     "listbox",
		"h":        "heading",
		"deco":     "presentation",
		"explicit": "tab",
		"none":     "",
	}
	for id, want := range tests {
		assert.Equal(t, want, dom.Role(mustFind(t, doc, `//*[@id="`+id+`"]`)), id)
	}
}

func TestAccessibleLabel(t *testing.T) {
	doc := buildDoc(t, `<html><body>
		<button id="aria" aria-label="  Close   dialog ">X</button>
		<span id="first">Billing</span><span id="second">address</span>
		<input id="labelled" aria-labelledby="first second">
		<label for="email">Email</label><input id="email">
		<label>Remember <input id="wrapped" type="checkbox"></label>
		<input id="ph" placeholder="Search...">
		<img id="pic" alt="Portrait">
		<div id="titled" title="Tooltip"></div>
		<div id="nothing"></div>
	</body></html>`)
	tests := map[string]string{
		"aria":     "Close dialog",
		"labelled": "Billing address",
		"email":    "Email",
		"wrapped":  "Remember",
		"ph":       "Search...",
		"pic":      "Portrait",
		"titled":   "Tooltip",
		"nothing":  "",
	}
	for id, want := range tests {
		assert.Equal(t, want, dom.AccessibleLabel(mustFind(t, doc, `//*[@id="`+id+`"]`)), id)
	}
}
