package script

import (
	"strings"
	"unicode"

	"github.com/dop251/goja"
	"github.com/rivo/uniseg"
)

// TextModuleName is the require() name of the text helper module.
const TextModuleName = "turnbench:text"

// RequireText is the CommonJS loader for TextModuleName.
//
// API (JS):
//
//	const text = require('turnbench:text');
//	text.words("I SAY: hello there")  // ["I", "SAY:", "hello", "there"]
//	text.first("élan")                // "é"
//	text.last("naïve")                // "e"
//	text.width("abc")                 // 3
//	text.truncate("Long string", 5)   // "Lo..."
func RequireText(runtime *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").ToObject(runtime)

	_ = exports.Set("words", func(call goja.FunctionCall) goja.Value {
		return runtime.ToValue(strings.FieldsFunc(call.Argument(0).String(), unicode.IsSpace))
	})

	_ = exports.Set("first", func(call goja.FunctionCall) goja.Value {
		return runtime.ToValue(FirstGrapheme(call.Argument(0).String()))
	})

	_ = exports.Set("last", func(call goja.FunctionCall) goja.Value {
		return runtime.ToValue(LastGrapheme(call.Argument(0).String()))
	})

	_ = exports.Set("width", func(call goja.FunctionCall) goja.Value {
		return runtime.ToValue(uniseg.StringWidth(call.Argument(0).String()))
	})

	_ = exports.Set("truncate", func(call goja.FunctionCall) goja.Value {
		tail := "..."
		if len(call.Arguments) > 2 {
			tail = call.Argument(2).String()
		}
		return runtime.ToValue(Truncate(call.Argument(0).String(), int(call.Argument(1).ToInteger()), tail))
	})
}

// FirstGrapheme returns the first user-perceived character of s.
func FirstGrapheme(s string) string {
	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(s, -1)
	return cluster
}

// LastGrapheme returns the final user-perceived character of s.
func LastGrapheme(s string) string {
	var last string
	state := -1
	for len(s) > 0 {
		last, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
	}
	return last
}

// Truncate shortens s to at most maxWidth display columns, appending tail
// when anything was cut. A tail wider than maxWidth is returned on its own.
func Truncate(s string, maxWidth int, tail string) string {
	if uniseg.StringWidth(s) <= maxWidth {
		return s
	}
	tailWidth := uniseg.StringWidth(tail)
	if tailWidth > maxWidth {
		return tail
	}
	target := maxWidth - tailWidth

	var sb strings.Builder
	var width int
	state := -1
	var cluster string
	var w int
	for len(s) > 0 {
		cluster, s, w, state = uniseg.FirstGraphemeClusterInString(s, state)
		if width+w > target {
			break
		}
		width += w
		sb.WriteString(cluster)
	}
	sb.WriteString(tail)
	return sb.String()
}
