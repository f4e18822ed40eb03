package adapters

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// xmlNode is a minimal element tree of an MSBuild file. Attribute and element
// names are compared case-insensitively, as MSBuild does.
type xmlNode struct {
	Name     string
	Attrs    []xml.Attr
	Children []*xmlNode
	Text     string
}

func (n *xmlNode) Attr(name string) (string, bool) {
	for _, attr := range n.Attrs {
		if strings.EqualFold(attr.Name.Local, name) {
			return attr.Value, true
		}
	}
	return "", false
}

func (n *xmlNode) Is(name string) bool {
	return strings.EqualFold(n.Name, name)
}

// Child returns the first child element called name.
func (n *xmlNode) Child(name string) (*xmlNode, bool) {
	for _, child := range n.Children {
		if child.Is(name) {
			return child, true
		}
	}
	return nil, false
}

func parseXMLTree(data []byte) (*xmlNode, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var stack []*xmlNode
	var root *xmlNode
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			node := &xmlNode{Name: t.Name.Local, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			} else if root == nil {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return root, nil
}

// propertyBag holds evaluated properties. Names are case-insensitive and
// global properties cannot be overwritten by the project.
type propertyBag struct {
	values  map[string]string
	globals map[string]struct{}
}

func newPropertyBag(globals map[string]string) *propertyBag {
	bag := &propertyBag{values: map[string]string{}, globals: map[string]struct{}{}}
	for key, value := range globals {
		bag.values[strings.ToLower(key)] = value
		bag.globals[strings.ToLower(key)] = struct{}{}
	}
	return bag
}

func (b *propertyBag) Set(name string, value string) {
	key := strings.ToLower(name)
	if _, global := b.globals[key]; global {
		return
	}
	b.values[key] = value
}

// setReserved assigns a property the evaluator owns, even over a global.
func (b *propertyBag) setReserved(name string, value string) {
	b.values[strings.ToLower(name)] = value
}

func (b *propertyBag) Get(name string) string {
	return b.values[strings.ToLower(name)]
}

// ParsePropertyBag reads the "key=value;key=value" global property syntax.
// Keys compare case-insensitively; a later duplicate wins, keeping the
// casing of the first.
func ParsePropertyBag(raw string) (map[string]string, error) {
	out := map[string]string{}
	names := map[string]string{}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q, expected key=value", part)
		}
		if first, ok := names[strings.ToLower(key)]; ok {
			key = first
		} else {
			names[strings.ToLower(key)] = key
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// expand substitutes $(Name) references. Property functions are left as is.
func (b *propertyBag) expand(value string) string {
	if !strings.Contains(value, "$(") {
		return value
	}
	var out strings.Builder
	for i := 0; i < len(value); {
		if strings.HasPrefix(value[i:], "$(") {
			end := strings.IndexByte(value[i:], ')')
			name := ""
			if end > 0 {
				name = value[i+2 : i+end]
			}
			if end > 0 && isPropertyName(name) {
				out.WriteString(b.Get(name))
				i += end + 1
				continue
			}
		}
		out.WriteByte(value[i])
		i++
	}
	return out.String()
}

func isPropertyName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// conditionParser evaluates MSBuild conditions: operands (quoted strings,
// $(Property) references, numbers and bare words) compared with == and !=
// (case-insensitive) or the numeric <, <=, >, >=, the functions Exists and
// HasTrailingSlash, !, and, or, parentheses and boolean literals.
type conditionParser struct {
	tokens  []string
	pos     int
	baseDir string
	bag     *propertyBag
}

func evaluateCondition(raw string, bag *propertyBag, baseDir string) (bool, error) {
	if strings.TrimSpace(raw) == "" {
		return true, nil
	}
	tokens, err := tokenizeCondition(raw)
	if err != nil {
		return false, err
	}
	p := &conditionParser{tokens: tokens, baseDir: baseDir, bag: bag}
	result, err := p.parseOr()
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", raw, err)
	}
	if p.pos != len(p.tokens) {
		return false, fmt.Errorf("condition %q: unexpected %q", raw, p.tokens[p.pos])
	}
	return result, nil
}

var comparisonOperators = []string{"==", "!=", "<=", ">=", "<", ">"}

func tokenizeCondition(raw string) ([]string, error) {
	var tokens []string
	for i := 0; i < len(raw); {
		c := raw[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			end := strings.IndexByte(raw[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("unterminated string in condition %q", raw)
			}
			tokens = append(tokens, raw[i:i+end+2])
			i += end + 2
		case (c == '$' || c == '@' || c == '%') && i+1 < len(raw) && raw[i+1] == '(':
			end := closingParen(raw, i+1)
			if end < 0 {
				return nil, fmt.Errorf("unterminated reference in condition %q", raw)
			}
			tokens = append(tokens, raw[i:end+1])
			i = end + 1
		case isComparisonStart(raw[i:]):
			op := comparisonAt(raw[i:])
			tokens = append(tokens, op)
			i += len(op)
		case c == '(' || c == ')' || c == '!' || c == ',':
			tokens = append(tokens, string(c))
			i++
		case isWordByte(c):
			start := i
			for i < len(raw) && isWordByte(raw[i]) {
				i++
			}
			tokens = append(tokens, raw[start:i])
		default:
			return nil, fmt.Errorf("unsupported condition syntax %q", raw)
		}
	}
	return tokens, nil
}

// closingParen returns the index of the parenthesis closing the one at open,
// skipping quoted text, or -1.
func closingParen(raw string, open int) int {
	depth := 0
	quoted := false
	for i := open; i < len(raw); i++ {
		switch c := raw[i]; {
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func comparisonAt(s string) string {
	for _, op := range comparisonOperators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isComparisonStart(s string) bool {
	return comparisonAt(s) != ""
}

func isComparison(token string) bool {
	for _, op := range comparisonOperators {
		if token == op {
			return true
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '-' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

func (p *conditionParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *conditionParser) next() string {
	token := p.peek()
	p.pos++
	return token
}

func (p *conditionParser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for strings.EqualFold(p.peek(), "or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (p *conditionParser) parseAnd() (bool, error) {
	left, err := p.parseUnary()
	if err != nil {
		return false, err
	}
	for strings.EqualFold(p.peek(), "and") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

func (p *conditionParser) parseUnary() (bool, error) {
	if p.peek() == "!" {
		p.next()
		value, err := p.parseUnary()
		return !value, err
	}
	return p.parsePrimary()
}

func (p *conditionParser) parsePrimary() (bool, error) {
	token := p.peek()
	switch {
	case token == "":
		return false, fmt.Errorf("unexpected end of condition")
	case token == "(":
		p.next()
		value, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if p.next() != ")" {
			return false, fmt.Errorf("missing closing parenthesis")
		}
		return value, nil
	case p.pos+1 < len(p.tokens) && p.tokens[p.pos+1] == "(" && isWordByte(token[0]):
		p.next()
		return p.parseFunction(token)
	}

	left, err := p.parseOperand()
	if err != nil {
		return false, err
	}
	if !isComparison(p.peek()) {
		return parseBool(left)
	}
	op := p.next()
	right, err := p.parseOperand()
	if err != nil {
		return false, err
	}
	return compare(left, op, right)
}

// parseOperand consumes one operand and returns its expanded value.
func (p *conditionParser) parseOperand() (string, error) {
	token := p.next()
	switch {
	case token == "":
		return "", fmt.Errorf("unexpected end of condition")
	case isQuoted(token):
		return p.bag.expand(unquote(token)), nil
	case strings.HasPrefix(token, "$("), strings.HasPrefix(token, "@("), strings.HasPrefix(token, "%("):
		return p.bag.expand(token), nil
	case isWordByte(token[0]):
		return token, nil
	default:
		return "", fmt.Errorf("unexpected %q", token)
	}
}

func (p *conditionParser) parseFunction(name string) (bool, error) {
	if p.next() != "(" {
		return false, fmt.Errorf("%s needs an argument", name)
	}
	arg, err := p.parseOperand()
	if err != nil {
		return false, err
	}
	if p.next() != ")" {
		return false, fmt.Errorf("%s takes one argument", name)
	}
	switch {
	case strings.EqualFold(name, "Exists"):
		path := strings.TrimSpace(arg)
		if path == "" {
			return false, nil
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.baseDir, path)
		}
		_, err := os.Stat(path)
		return err == nil, nil
	case strings.EqualFold(name, "HasTrailingSlash"):
		return strings.HasSuffix(arg, "/") || strings.HasSuffix(arg, `\`), nil
	default:
		return false, fmt.Errorf("unsupported function %s", name)
	}
}

func compare(left string, op string, right string) (bool, error) {
	left, right = strings.TrimSpace(left), strings.TrimSpace(right)
	switch op {
	case "==":
		return strings.EqualFold(left, right), nil
	case "!=":
		return !strings.EqualFold(left, right), nil
	}
	l, lerr := strconv.ParseFloat(left, 64)
	r, rerr := strconv.ParseFloat(right, 64)
	if lerr != nil || rerr != nil {
		return false, fmt.Errorf("%q %s %q needs numeric operands", left, op, right)
	}
	switch op {
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	default:
		return l >= r, nil
	}
}

// parseBool reads a standalone operand the way MSBuild does.
func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "on", "yes":
		return true, nil
	case "false", "off", "no", "":
		return false, nil
	default:
		return false, fmt.Errorf("%q is not a boolean", value)
	}
}

func isQuoted(token string) bool {
	return len(token) >= 2 && token[0] == '\'' && token[len(token)-1] == '\''
}

func unquote(token string) string {
	return token[1 : len(token)-1]
}

func isTrue(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

// splitList splits MSBuild item/metadata lists on ';' (and ',' for NoWarn).
func splitList(value string, separators string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
