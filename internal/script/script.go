// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

// Package script generates the stage A filter script from a template.
//
// Templates use two substitution forms:
//
//	{{NAME}}                   a placeholder that must resolve
//	{{#NAME}} ... {{/NAME}}    an optional block; removed entirely
//	                           (through its line terminator) when NAME
//	                           is unset, otherwise the tags are stripped
//	                           and every inner {{NAME}} is substituted
package script

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

//go:embed default.vpy
var embeddedTemplate string

// ErrTemplateNotFound is returned when neither a template file nor the
// embedded fallback is available.
var ErrTemplateNotFound = errors.New("script template not found")

// WriteError reports a failure writing the generated script.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write script %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Engine renders filter scripts from a template file, falling back to
// the embedded default when no path is configured.
type Engine struct {
	templatePath string
}

// NewEngine creates an engine. An empty templatePath selects the
// embedded template.
func NewEngine(templatePath string) *Engine {
	return &Engine{templatePath: templatePath}
}

// Source returns the template text.
func (e *Engine) Source() (string, error) {
	if e.templatePath != "" {
		data, err := os.ReadFile(e.templatePath)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, e.templatePath)
		}
		return string(data), nil
	}
	if embeddedTemplate == "" {
		return "", ErrTemplateNotFound
	}
	return embeddedTemplate, nil
}

// Generate renders the template with the given values. Map membership
// is the presence decision for optional blocks.
func (e *Engine) Generate(values map[string]Value) (string, error) {
	tmpl, err := e.Source()
	if err != nil {
		return "", err
	}
	return Render(tmpl, values)
}

// WriteFile renders the template and writes the script to dest.
func (e *Engine) WriteFile(dest string, values map[string]Value) error {
	text, err := e.Generate(values)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, []byte(text), 0o644); err != nil {
		return &WriteError{Path: dest, Err: err}
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Render performs the substitution pass over tmpl.
func Render(tmpl string, values map[string]Value) (string, error) {
	out, err := renderBlocks(tmpl, values)
	if err != nil {
		return "", err
	}

	for name, v := range values {
		out = strings.ReplaceAll(out, "{{"+name+"}}", v.Literal())
	}

	if m := placeholderRe.FindStringSubmatch(out); m != nil {
		return "", fmt.Errorf("unresolved placeholder {{%s}}", m[1])
	}
	return out, nil
}

// renderBlocks repeatedly locates the next {{#NAME}}...{{/NAME}} pair.
// A set block keeps its interior with the tags stripped; an unset block
// is deleted through its line terminator so no blank line survives.
func renderBlocks(tmpl string, values map[string]Value) (string, error) {
	var b strings.Builder
	rest := tmpl

	for {
		start := strings.Index(rest, "{{#")
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}

		nameEnd := strings.Index(rest[start:], "}}")
		if nameEnd < 0 {
			return "", fmt.Errorf("malformed block tag near %q", clip(rest[start:]))
		}
		name := rest[start+3 : start+nameEnd]
		open := "{{#" + name + "}}"
		closeTag := "{{/" + name + "}}"

		end := strings.Index(rest[start:], closeTag)
		if end < 0 {
			return "", fmt.Errorf("unterminated block {{#%s}}", name)
		}
		end += start

		b.WriteString(rest[:start])
		inner := rest[start+len(open) : end]
		tail := rest[end+len(closeTag):]

		if _, set := values[name]; set {
			b.WriteString(inner)
			rest = tail
		} else {
			// Swallow the remainder of the closing tag's line.
			if i := strings.IndexByte(tail, '\n'); i >= 0 {
				rest = tail[i+1:]
			} else {
				rest = ""
			}
		}
	}
}

func clip(s string) string {
	if len(s) > 24 {
		return s[:24]
	}
	return s
}
