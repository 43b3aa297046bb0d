// internal/browser/parser/css.go
package parser

import (
	"fmt"
	"strings"
)

// Property represents a CSS property (e.g., "display").
type Property string

// Value represents a CSS value (e.g., "none").
type Value string

// Declaration is a key-value pair (e.g., display: none).
type Declaration struct {
	Property  Property
	Value     Value
	Important bool
}

// RuleSet is one qualified rule. Selectors holds the raw text of each
// comma-separated selector; matching is left to a selector engine.
type RuleSet struct {
	Selectors    []string
	Declarations []Declaration
}

// StyleSheet is the top-level structure representing a parsed sheet.
type StyleSheet struct {
	Rules []RuleSet
}

// Parser holds the state of the CSS parser.
type Parser struct {
	input string
	pos   int
}

func NewParser(input string) *Parser {
	return &Parser{input: input, pos: 0}
}

// Parse analyzes the input CSS string and builds a StyleSheet. At-rules are
// skipped, so declarations inside @media blocks never apply.
func (p *Parser) Parse() StyleSheet {
	var rules []RuleSet
	for {
		p.consumeWhitespace()
		if p.eof() {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if p.currentChar() == '@' {
			p.skipAtRule()
			continue
		}

		selectors := p.parseSelectorList()
		if len(selectors) == 0 {
			p.skipTo('{')
			if !p.eof() && p.currentChar() == '{' {
				p.consumeChar()
				p.skipBlock('{', '}')
			}
			continue
		}

		declarations, err := p.parseDeclarations()
		if err != nil {
			continue
		}
		if len(declarations) > 0 {
			rules = append(rules, RuleSet{Selectors: selectors, Declarations: declarations})
		}
	}
	return StyleSheet{Rules: rules}
}

// ParseInline parses the body of a style attribute.
func ParseInline(style string) []Declaration {
	p := NewParser(style)
	var declarations []Declaration
	for {
		p.consumeWhitespace()
		if p.eof() {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if p.currentChar() == '}' {
			p.consumeChar()
			continue
		}
		if d, ok := p.parseDeclaration(); ok {
			declarations = append(declarations, d)
		}
	}
	return declarations
}

// parseSelectorList reads everything up to the opening brace and splits it
// on top-level commas. Commas inside brackets, parentheses or strings do not
// separate selectors.
func (p *Parser) parseSelectorList() []string {
	var (
		selectors []string
		current   strings.Builder
		depth     int
	)
	flush := func() {
		if sel := strings.Join(strings.Fields(current.String()), " "); sel != "" {
			selectors = append(selectors, sel)
		}
		current.Reset()
	}

	for !p.eof() {
		ch := p.currentChar()
		switch {
		case ch == '{' && depth == 0:
			flush()
			return selectors
		case ch == '"' || ch == '\'':
			start := p.pos
			p.skipQuotedString(ch)
			current.WriteString(p.input[start:p.pos])
			continue
		case p.startsWith("/*"):
			p.skipComment()
			current.WriteByte(' ')
			continue
		case ch == '\\':
			current.WriteByte(p.consumeChar())
			if !p.eof() {
				current.WriteByte(p.consumeChar())
			}
			continue
		case ch == '(' || ch == '[':
			depth++
		case (ch == ')' || ch == ']') && depth > 0:
			depth--
		case ch == ',' && depth == 0:
			p.consumeChar()
			flush()
			continue
		}
		current.WriteByte(p.consumeChar())
	}
	// A selector list without a block is not a rule.
	return nil
}

// parseDeclarations parses the content within { ... }.
func (p *Parser) parseDeclarations() ([]Declaration, error) {
	p.consumeWhitespace()
	if p.eof() || p.currentChar() != '{' {
		return nil, fmt.Errorf("expected '{' at start of declarations")
	}
	p.consumeChar()

	var declarations []Declaration
	for {
		p.consumeWhitespace()
		if p.eof() || p.currentChar() == '}' {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if d, ok := p.parseDeclaration(); ok {
			declarations = append(declarations, d)
		}
	}

	if !p.eof() && p.currentChar() == '}' {
		p.consumeChar()
	}
	return declarations, nil
}

// parseDeclaration parses a single 'property: value;' pair. Malformed input
// is skipped up to the next ';' or '}'.
func (p *Parser) parseDeclaration() (Declaration, bool) {
	skip := func() (Declaration, bool) {
		p.skipTo(';', '}')
		if !p.eof() && p.currentChar() == ';' {
			p.consumeChar()
		}
		return Declaration{}, false
	}

	if !isValidIdentifierStart(p.currentChar()) {
		return skip()
	}
	prop := p.parseIdentifier()
	p.consumeWhitespace()
	if p.eof() || p.currentChar() != ':' {
		return skip()
	}
	p.consumeChar()
	p.consumeWhitespace()

	val := p.parseValue()
	important := false
	if strings.HasSuffix(strings.ToLower(val), "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}

	p.consumeWhitespace()
	if !p.eof() && p.currentChar() == ';' {
		p.consumeChar()
	}
	if prop == "" || val == "" {
		return Declaration{}, false
	}
	return Declaration{
		Property:  Property(strings.ToLower(prop)),
		Value:     Value(val),
		Important: important,
	}, true
}

// parseValue reads a CSS value until a delimiter.
func (p *Parser) parseValue() string {
	start := p.pos
	for !p.eof() {
		ch := p.currentChar()
		if ch == ';' || ch == '}' {
			break
		}
		if ch == '"' || ch == '\'' {
			p.skipQuotedString(ch)
			continue
		}
		if ch == '(' {
			p.consumeChar()
			p.skipBlock('(', ')')
			continue
		}
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos])
}

// --- Lexer-like Helpers ---

func (p *Parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *Parser) currentChar() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) consumeChar() byte {
	ch := p.currentChar()
	if !p.eof() {
		p.pos++
	}
	return ch
}

func (p *Parser) consumeWhitespace() {
	for !p.eof() && isWhitespace(p.currentChar()) {
		p.pos++
	}
}

func (p *Parser) startsWith(s string) bool {
	if p.pos+len(s) > len(p.input) {
		return false
	}
	return p.input[p.pos:p.pos+len(s)] == s
}

func (p *Parser) skipComment() {
	p.pos += 2
	endIndex := strings.Index(p.input[p.pos:], "*/")
	if endIndex == -1 {
		p.pos = len(p.input)
	} else {
		p.pos += endIndex + 2
	}
}

func (p *Parser) skipTo(targets ...byte) {
	for !p.eof() {
		ch := p.currentChar()
		for _, target := range targets {
			if ch == target {
				return
			}
		}
		p.pos++
	}
}

// skipBlock consumes input up to and including the close that balances an
// already consumed open.
func (p *Parser) skipBlock(open, close byte) {
	depth := 1
	for !p.eof() {
		c := p.consumeChar()
		if c == open {
			depth++
		} else if c == close {
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *Parser) skipQuotedString(quote byte) {
	p.consumeChar()
	for !p.eof() {
		ch := p.consumeChar()
		if ch == '\\' {
			p.consumeChar()
		} else if ch == quote {
			return
		}
	}
}

func (p *Parser) skipAtRule() {
	p.consumeChar()
	_ = p.parseIdentifier()
	p.consumeWhitespace()
	for !p.eof() {
		ch := p.currentChar()
		if ch == '{' {
			p.consumeChar()
			p.skipBlock('{', '}')
			return
		}
		if ch == ';' {
			p.consumeChar()
			return
		}
		p.pos++
	}
}

func (p *Parser) parseIdentifier() string {
	start := p.pos
	for !p.eof() && isValidIdentifierChar(p.currentChar()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isValidIdentifierStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-'
}

func isValidIdentifierChar(ch byte) bool {
	return isValidIdentifierStart(ch) || (ch >= '0' && ch <= '9')
}
