package tmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		context map[string]any
		want    string
	}{
		{
			name:    "plain text",
			input:   "no tags at all",
			context: nil,
			want:    "no tags at all",
		},
		{
			name:    "variable substitution",
			input:   "hello {{name}}",
			context: map[string]any{"name": "world"},
			want:    "hello world",
		},
		{
			name:    "missing variable renders empty",
			input:   "[{{missing}}]",
			context: map[string]any{},
			want:    "[]",
		},
		{
			name:  "dot path",
			input: "{{user.profile.city}}",
			context: map[string]any{
				"user": map[string]any{"profile": map[string]any{"city": "Kyoto"}},
			},
			want: "Kyoto",
		},
		{
			name:    "path through non map renders empty",
			input:   "{{user.name}}",
			context: map[string]any{"user": "just a string"},
			want:    "",
		},
		{
			name:    "whole floats drop the decimal point",
			input:   "{{count}} and {{ratio}}",
			context: map[string]any{"count": 3.0, "ratio": 0.5},
			want:    "3 and 0.5",
		},
		{
			name:    "if true branch",
			input:   "{{if verbose}}details{{endif}}",
			context: map[string]any{"verbose": true},
			want:    "details",
		},
		{
			name:    "if false branch",
			input:   "{{if verbose}}details{{endif}}",
			context: map[string]any{"verbose": false},
			want:    "",
		},
		{
			name:    "missing condition is false",
			input:   "{{if missing}}a{{endif}}b",
			context: map[string]any{},
			want:    "b",
		},
		{
			name:    "else branch",
			input:   "{{if ok}}yes{{else}}no{{endif}}",
			context: map[string]any{"ok": false},
			want:    "no",
		},
		{
			name:    "loose truthiness",
			input:   "{{if n}}n {{endif}}{{if s}}s {{endif}}{{if list}}list{{endif}}",
			context: map[string]any{"n": 0, "s": "", "list": []any{}},
			want:    "",
		},
		{
			name:    "string false is false",
			input:   "{{if flag}}on{{else}}off{{endif}}",
			context: map[string]any{"flag": "false"},
			want:    "off",
		},
		{
			name:    "for loop with index and number",
			input:   "{{for step in steps}}{{step_number}}: {{step}}\n{{endfor}}",
			context: map[string]any{"steps": []any{"a", "b"}},
			want:    "1: a\n2: b\n",
		},
		{
			name:    "for over typed slice",
			input:   "{{for n in nums}}{{n_index}}{{endfor}}",
			context: map[string]any{"nums": []int{7, 8, 9}},
			want:    "012",
		},
		{
			name:    "for over non list renders empty",
			input:   "x{{for item in scalar}}{{item}}{{endfor}}y",
			context: map[string]any{"scalar": 42},
			want:    "xy",
		},
		{
			name:    "for over missing list renders empty",
			input:   "x{{for item in nope}}{{item}}{{endfor}}y",
			context: map[string]any{},
			want:    "xy",
		},
		{
			name:  "nested blocks",
			input: "{{for t in tools}}{{if t.enabled}}{{t.name}} {{endif}}{{endfor}}",
			context: map[string]any{"tools": []any{
				map[string]any{"name": "search", "enabled": true},
				map[string]any{"name": "shell", "enabled": false},
				map[string]any{"name": "calc", "enabled": true},
			}},
			want: "search calc ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.input, tt.context)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_SyntaxErrors(t *testing.T) {
	for _, input := range []string{
		"{{if a}}unclosed",
		"{{for x in y}}unclosed",
		"stray {{endif}}",
		"stray {{endfor}}",
		"stray {{else}}",
		"{{unterminated",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := Render(input, nil)
			require.Error(t, err)
		})
	}
}

func TestParse_RenderReuse(t *testing.T) {
	tpl, err := Parse("hi {{name}}")
	require.NoError(t, err)
	assert.Equal(t, "hi a", tpl.Render(map[string]any{"name": "a"}))
	assert.Equal(t, "hi b", tpl.Render(map[string]any{"name": "b"}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		problems []string
	}{
		{"valid", "{{if a}}{{for x in y}}{{x}}{{endfor}}{{else}}{{endif}}", nil},
		{"unclosed if", "{{if a}}", []string{"unclosed if"}},
		{"unclosed for", "{{for x in y}}", []string{"unclosed for"}},
		{"stray endif", "{{endif}}", []string{"endif without matching if"}},
		{"stray endfor", "{{endfor}}", []string{"endfor without matching for"}},
		{"stray else", "{{else}}", []string{"else outside if block"}},
		{"duplicate else", "{{if a}}{{else}}{{else}}{{endif}}", []string{"duplicate else"}},
		{"multiple problems", "{{endif}}{{for x in y}}", []string{"endif without matching if", "unclosed for"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.input)
			require.Len(t, got, len(tt.problems))
			for i, want := range tt.problems {
				assert.Contains(t, got[i], want)
			}
		})
	}
}
