package tmpl

import (
	"fmt"
	"reflect"
	"strings"
)

// Render evaluates the template against the context. Missing variables
// expand to the empty string, missing conditions are false, non-list loop
// targets expand to nothing. Rendering itself never fails.
func (t *Template) Render(context map[string]any) string {
	var b strings.Builder
	renderNodes(&b, t.nodes, context)
	return b.String()
}

// Render parses and evaluates a template in one call.
func Render(input string, context map[string]any) (string, error) {
	t, err := Parse(input)
	if err != nil {
		return "", err
	}
	return t.Render(context), nil
}

func renderNodes(b *strings.Builder, nodes []node, context map[string]any) {
	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			b.WriteString(n.text)
		case varNode:
			if v, ok := lookupPath(context, n.path); ok {
				b.WriteString(stringify(v))
			}
		case ifNode:
			if truthy(context, n.cond) {
				renderNodes(b, n.then, context)
			} else {
				renderNodes(b, n.elseBody, context)
			}
		case forNode:
			renderFor(b, n, context)
		}
	}
}

// renderFor iterates the named list. Each iteration renders the body with a
// child context carrying the item, its zero-based index and its one-based
// number.
func renderFor(b *strings.Builder, n forNode, context map[string]any) {
	v, ok := lookupPath(context, strings.Split(n.list, "."))
	if !ok {
		return
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return
	}
	for i := 0; i < rv.Len(); i++ {
		child := make(map[string]any, len(context)+3)
		for k, cv := range context {
			child[k] = cv
		}
		child[n.item] = rv.Index(i).Interface()
		child[n.item+"_index"] = i
		child[n.item+"_number"] = i + 1
		renderNodes(b, n.body, child)
	}
}

// lookupPath walks a dot path through nested maps.
func lookupPath(context map[string]any, path []string) (any, bool) {
	var current any = context
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// truthy resolves a condition key and applies loose truthiness: absent,
// false, zero and empty values are false.
func truthy(context map[string]any, cond string) bool {
	v, ok := lookupPath(context, strings.Split(cond, "."))
	if !ok {
		return false
	}
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return v != "" && !strings.EqualFold(v, "false")
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case nil:
		return false
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array || rv.Kind() == reflect.Map {
			return rv.Len() > 0
		}
		return true
	}
}

func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		// Whole numbers print without a decimal point.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
