package hook

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	envelopeTag = "submitResults"
	messageTag  = "message"

	// LegacyPrefix starts the free-text answer of hooks that predate the XML envelope
	LegacyPrefix = "Commit blocked by pre-commit hook (exit code 1) with output:\n"
)

// Parse errors
var (
	ErrInvalidEnvelope   = errors.New("invalid submit results envelope")
	ErrInvalidElement    = errors.New("unexpected element in submit results")
	ErrMissingAttribute  = errors.New("missing required attribute")
	ErrInvalidLineNumber = errors.New("invalid line number")
)

// Problem is a single finding reported by a server-side check
type Problem struct {
	Tool     Tool     `json:"tool"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// HasLine reports whether the problem points at a line
func (p Problem) HasLine() bool {
	return p.Line > 0
}

// Report is the parsed hook response. Legacy holds the pre-formatted text
// of hooks that answer without the XML envelope.
type Report struct {
	Problems []Problem `json:"problems"`
	Legacy   string    `json:"legacy,omitempty"`
}

// Localizer turns message keys into display text
type Localizer interface {
	Text(key string, args ...any) string
}

// Parser reads hook responses
type Parser struct {
	translations map[string]string
	localizer    Localizer
}

// NewParser creates a parser. Messages found in translations are replaced
// by the localized text of the mapped key.
func NewParser(translations map[string]string, localizer Localizer) *Parser {
	return &Parser{
		translations: translations,
		localizer:    localizer,
	}
}

// Parse extracts the problems from a hook response. Text around the
// envelope is ignored.
func (p *Parser) Parse(text string) (*Report, error) {
	if start := strings.Index(text, "<"+envelopeTag); start >= 0 {
		return p.parseEnvelope(extractEnvelope(text, start))
	}

	if rest, ok := strings.CutPrefix(text, LegacyPrefix); ok {
		return &Report{Legacy: rest}, nil
	}

	return p.parseEnvelope(text)
}

func extractEnvelope(text string, start int) string {
	closing := "</" + envelopeTag + ">"
	if end := strings.LastIndex(text, closing); end > start {
		return text[start : end+len(closing)]
	}

	// self-closing envelope
	if end := strings.IndexByte(text[start:], '>'); end > 0 && text[start+end-1] == '/' {
		return text[start : start+end+1]
	}
	return text[start:]
}

func (p *Parser) parseEnvelope(xml string) (*Report, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrInvalidEnvelope)
	}
	if root.Tag != envelopeTag {
		return nil, fmt.Errorf("%w: root element is <%s>", ErrInvalidEnvelope, root.Tag)
	}

	report := &Report{Problems: []Problem{}}
	for _, el := range root.ChildElements() {
		if el.Tag != messageTag {
			return nil, fmt.Errorf("%w: <%s>", ErrInvalidElement, el.Tag)
		}

		problem, err := p.parseMessage(el)
		if err != nil {
			return nil, err
		}
		report.Problems = append(report.Problems, problem)
	}

	return report, nil
}

func (p *Parser) parseMessage(el *etree.Element) (Problem, error) {
	var problem Problem

	tool, err := requiredAttr(el, "tool")
	if err != nil {
		return problem, err
	}
	severity, err := requiredAttr(el, "type")
	if err != nil {
		return problem, err
	}
	message, err := requiredAttr(el, "message")
	if err != nil {
		return problem, err
	}

	problem.Tool = LookupTool(tool)
	problem.Severity = LookupSeverity(severity)
	problem.Message = p.translate(message)

	if file := el.SelectAttr("file"); file != nil {
		problem.File = file.Value
	}

	if line := el.SelectAttr("line"); line != nil {
		n, err := strconv.ParseUint(line.Value, 10, 31)
		if err != nil {
			return problem, fmt.Errorf("%w: %q", ErrInvalidLineNumber, line.Value)
		}
		problem.Line = int(n)
	}

	return problem, nil
}

func (p *Parser) translate(message string) string {
	key, ok := p.translations[message]
	if !ok {
		return message
	}
	if p.localizer == nil {
		return key
	}
	return p.localizer.Text(key)
}

func requiredAttr(el *etree.Element, name string) (string, error) {
	attr := el.SelectAttr(name)
	if attr == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingAttribute, name)
	}
	return attr.Value, nil
}
