package tmpl

import (
	"fmt"
	"strings"
)

type node interface{ isNode() }

type textNode struct{ text string }

type varNode struct{ path []string }

type ifNode struct {
	cond     string
	then     []node
	elseBody []node
}

type forNode struct {
	item string
	list string
	body []node
}

func (textNode) isNode() {}
func (varNode) isNode()  {}
func (ifNode) isNode()   {}
func (forNode) isNode()  {}

// Template is a parsed template ready for repeated rendering.
type Template struct {
	nodes []node
}

// Parse lexes and parses a template. Structural errors such as unbalanced
// tags are reported here; runtime lookups never fail.
func Parse(input string) (*Template, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	nodes, err := p.parseNodes(stopNone)
	if err != nil {
		return nil, err
	}
	return &Template{nodes: nodes}, nil
}

type stopSet int

const (
	stopNone stopSet = iota
	stopEndIf // stops at else or endif
	stopElse  // stops at endif only (already past else)
	stopEndFor
)

type parser struct {
	tokens []token
	idx    int
}

func (p *parser) next() (token, bool) {
	if p.idx >= len(p.tokens) {
		return token{}, false
	}
	t := p.tokens[p.idx]
	p.idx++
	return t, true
}

func (p *parser) parseNodes(stop stopSet) ([]node, error) {
	var nodes []node
	for {
		t, ok := p.next()
		if !ok {
			if stop != stopNone {
				return nil, fmt.Errorf("unexpected end of template: unclosed block")
			}
			return nodes, nil
		}
		switch t.kind {
		case tkText:
			nodes = append(nodes, textNode{text: t.text})
		case tkVar:
			nodes = append(nodes, varNode{path: strings.Split(t.text, ".")})
		case tkIf:
			n, err := p.parseIf(t)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		case tkFor:
			body, err := p.parseNodes(stopEndFor)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, forNode{item: t.item, list: t.list, body: body})
		case tkElse:
			if stop == stopEndIf {
				p.idx-- // caller decides between else and endif
				return nodes, nil
			}
			return nil, fmt.Errorf("stray else at offset %d", t.pos)
		case tkEndIf:
			if stop == stopEndIf {
				p.idx--
				return nodes, nil
			}
			if stop == stopElse {
				return nodes, nil
			}
			return nil, fmt.Errorf("stray endif at offset %d", t.pos)
		case tkEndFor:
			if stop == stopEndFor {
				return nodes, nil
			}
			return nil, fmt.Errorf("stray endfor at offset %d", t.pos)
		}
	}
}

func (p *parser) parseIf(t token) (node, error) {
	then, err := p.parseNodes(stopEndIf)
	if err != nil {
		return nil, err
	}
	n := ifNode{cond: t.text, then: then}
	// parseNodes stops just before the else or endif token.
	next, _ := p.next()
	if next.kind == tkElse {
		elseBody, err := p.parseNodes(stopElse)
		if err != nil {
			return nil, err
		}
		n.elseBody = elseBody
	}
	return n, nil
}
