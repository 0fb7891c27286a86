// Package tmpl implements the template mini-language used in prompt and
// config strings: `{{var.path}}` substitution, `{{if cond}}...{{else}}...
// {{endif}}` conditionals and `{{for item in list}}...{{endfor}}` loops.
// 模板被词法分析为 token 流，解析为 AST，再对 context 求值。
package tmpl

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tkText tokenKind = iota
	tkVar
	tkIf
	tkElse
	tkEndIf
	tkFor
	tkEndFor
)

type token struct {
	kind tokenKind
	text string // tkText: raw text; tkVar: path; tkIf: condition
	item string // tkFor: loop variable
	list string // tkFor: list key
	pos  int    // byte offset of the token start, for error messages
}

// lex splits a template into text and tag tokens. Unterminated `{{` is a
// lex error; everything else is resolved by the parser.
func lex(input string) ([]token, error) {
	var tokens []token
	pos := 0
	for pos < len(input) {
		open := strings.Index(input[pos:], "{{")
		if open < 0 {
			tokens = append(tokens, token{kind: tkText, text: input[pos:], pos: pos})
			break
		}
		open += pos
		if open > pos {
			tokens = append(tokens, token{kind: tkText, text: input[pos:open], pos: pos})
		}
		closing := strings.Index(input[open:], "}}")
		if closing < 0 {
			return nil, fmt.Errorf("unterminated tag at offset %d", open)
		}
		closing += open
		tag, err := lexTag(strings.TrimSpace(input[open+2:closing]), open)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tag)
		pos = closing + 2
	}
	return tokens, nil
}

func lexTag(body string, pos int) (token, error) {
	switch {
	case body == "else":
		return token{kind: tkElse, pos: pos}, nil
	case body == "endif":
		return token{kind: tkEndIf, pos: pos}, nil
	case body == "endfor":
		return token{kind: tkEndFor, pos: pos}, nil
	case strings.HasPrefix(body, "if "):
		cond := strings.TrimSpace(strings.TrimPrefix(body, "if "))
		if cond == "" {
			return token{}, fmt.Errorf("empty condition at offset %d", pos)
		}
		return token{kind: tkIf, text: cond, pos: pos}, nil
	case strings.HasPrefix(body, "for "):
		rest := strings.TrimSpace(strings.TrimPrefix(body, "for "))
		fields := strings.Fields(rest)
		if len(fields) != 3 || fields[1] != "in" {
			return token{}, fmt.Errorf("malformed for tag %q at offset %d", body, pos)
		}
		return token{kind: tkFor, item: fields[0], list: fields[2], pos: pos}, nil
	case body == "":
		return token{}, fmt.Errorf("empty tag at offset %d", pos)
	default:
		return token{kind: tkVar, text: body, pos: pos}, nil
	}
}
