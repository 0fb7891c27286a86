package tmpl

import "fmt"

// Validate performs the static structure check and returns every problem
// found: unbalanced for/endfor, unbalanced if/endif, and else tags outside an
// if block or repeated within one. Runtime semantics such as variable
// existence are not checked.
func Validate(input string) []string {
	tokens, err := lex(input)
	if err != nil {
		return []string{err.Error()}
	}

	var problems []string

	type frame struct {
		kind    tokenKind // tkIf or tkFor
		pos     int
		sawElse bool
	}
	var stack []frame

	for _, t := range tokens {
		switch t.kind {
		case tkIf, tkFor:
			stack = append(stack, frame{kind: t.kind, pos: t.pos})
		case tkElse:
			if len(stack) == 0 || stack[len(stack)-1].kind != tkIf {
				problems = append(problems, fmt.Sprintf("else outside if block at offset %d", t.pos))
				continue
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				problems = append(problems, fmt.Sprintf("duplicate else at offset %d", t.pos))
				continue
			}
			top.sawElse = true
		case tkEndIf:
			if len(stack) == 0 || stack[len(stack)-1].kind != tkIf {
				problems = append(problems, fmt.Sprintf("endif without matching if at offset %d", t.pos))
				continue
			}
			stack = stack[:len(stack)-1]
		case tkEndFor:
			if len(stack) == 0 || stack[len(stack)-1].kind != tkFor {
				problems = append(problems, fmt.Sprintf("endfor without matching for at offset %d", t.pos))
				continue
			}
			stack = stack[:len(stack)-1]
		}
	}

	for _, f := range stack {
		switch f.kind {
		case tkIf:
			problems = append(problems, fmt.Sprintf("unclosed if at offset %d", f.pos))
		case tkFor:
			problems = append(problems, fmt.Sprintf("unclosed for at offset %d", f.pos))
		}
	}
	return problems
}
