package grammar

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxPhrases bounds how many phrases an SRGS grammar may expand to.
const MaxPhrases = 10000

var ErrGrammarTooLarge = fmt.Errorf("grammar expands to more than %d phrases", MaxPhrases)

// srgsNode is an element or a run of character data.
type srgsNode struct {
	name     string
	text     string
	attrs    map[string]string
	children []*srgsNode
}

// parseSRGS expands the root rule into every phrase it accepts. Nested
// <item>/<one-of> sequences, optional items and local <ruleref> are resolved;
// <tag> content is ignored.
func parseSRGS(r io.Reader) ([]string, error) {
	root, err := readSRGS(r)
	if err != nil {
		return nil, err
	}

	x := &expander{rules: make(map[string]*srgsNode), active: make(map[string]bool)}
	var first, firstPublic *srgsNode
	for _, c := range root.children {
		if c.name != "rule" {
			continue
		}
		id := c.attrs["id"]
		x.rules[id] = c
		if first == nil {
			first = c
		}
		if firstPublic == nil && c.attrs["scope"] == "public" {
			firstPublic = c
		}
	}

	start := firstPublic
	if start == nil {
		start = first
	}
	if id := root.attrs["root"]; id != "" {
		rule, ok := x.rules[id]
		if !ok {
			return nil, fmt.Errorf("root rule %q is not defined", id)
		}
		start = rule
	}
	if start == nil {
		return nil, nil
	}
	return x.rule(start.attrs["id"], start)
}

func readSRGS(r io.Reader) (*srgsNode, error) {
	decoder := xml.NewDecoder(r)
	doc := &srgsNode{}
	stack := []*srgsNode{doc}

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &srgsNode{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.attrs[a.Name.Local] = a.Value
			}
			top.children = append(top.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if top != doc {
				top.children = append(top.children, &srgsNode{text: string(t)})
			}
		}
	}

	for _, c := range doc.children {
		if c.name == "grammar" {
			return c, nil
		}
	}
	return nil, errors.New("missing <grammar> root element")
}

type expander struct {
	rules  map[string]*srgsNode
	active map[string]bool
}

func (x *expander) rule(id string, n *srgsNode) ([]string, error) {
	if x.active[id] {
		return nil, fmt.Errorf("recursive rule reference %q", id)
	}
	x.active[id] = true
	defer delete(x.active, id)
	return x.sequence(n.children)
}

// sequence returns the cross product of the children's alternatives.
func (x *expander) sequence(children []*srgsNode) ([]string, error) {
	out := []string{""}
	for _, c := range children {
		alts, err := x.node(c)
		if err != nil {
			return nil, err
		}
		if len(alts) == 0 {
			return nil, nil
		}
		if len(alts) == 1 && alts[0] == "" {
			continue
		}

		next := make([]string, 0, len(out)*len(alts))
		for _, head := range out {
			for _, tail := range alts {
				next = append(next, joinWords(head, tail))
			}
		}
		if len(next) > MaxPhrases {
			return nil, ErrGrammarTooLarge
		}
		out = next
	}
	return out, nil
}

func (x *expander) node(n *srgsNode) ([]string, error) {
	switch n.name {
	case "":
		return []string{strings.Join(strings.Fields(n.text), " ")}, nil
	case "tag", "example", "meta", "metadata", "lexicon":
		return []string{""}, nil
	case "item":
		seq, err := x.sequence(n.children)
		if err != nil {
			return nil, err
		}
		if optional(n.attrs["repeat"]) {
			seq = append([]string{""}, seq...)
		}
		return seq, nil
	case "one-of":
		var alts []string
		for _, c := range n.children {
			if c.name == "" {
				continue
			}
			sub, err := x.node(c)
			if err != nil {
				return nil, err
			}
			alts = append(alts, sub...)
			if len(alts) > MaxPhrases {
				return nil, ErrGrammarTooLarge
			}
		}
		return alts, nil
	case "ruleref":
		return x.ruleref(n)
	default:
		return x.sequence(n.children)
	}
}

func (x *expander) ruleref(n *srgsNode) ([]string, error) {
	switch strings.ToUpper(n.attrs["special"]) {
	case "NULL", "GARBAGE":
		return []string{""}, nil
	case "VOID":
		return nil, nil
	}

	uri := n.attrs["uri"]
	if !strings.HasPrefix(uri, "#") {
		return nil, fmt.Errorf("external rule reference %q is not supported", uri)
	}
	id := strings.TrimPrefix(uri, "#")
	rule, ok := x.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %q is not defined", id)
	}
	return x.rule(id, rule)
}

// optional reports whether an item repeat allows zero occurrences ("0-1", "0-", "0").
func optional(repeat string) bool {
	repeat = strings.TrimSpace(repeat)
	return repeat == "0" || strings.HasPrefix(repeat, "0-")
}

func joinWords(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
