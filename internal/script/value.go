// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package script

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the typed filter parameter values.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
)

// Value is one typed filter parameter. Presence is expressed by map
// membership; a Value that exists is always "set".
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

// Int creates an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float creates a floating point value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Bool creates a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// String creates a string value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the value discriminator.
func (v Value) Kind() Kind { return v.kind }

var scriptEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Literal renders the value as a script literal: integers verbatim,
// floats at fixed precision, booleans as the interpreter's canonical
// tokens, strings with characters escaped that would break a quoted
// string literal (backslashes in Windows paths, embedded quotes).
func (v Value) Literal() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', 3, 64)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	default:
		return scriptEscaper.Replace(v.s)
	}
}

// UnmarshalJSON detects the kind from the raw JSON scalar. Numbers
// without a fraction or exponent become integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "true" || raw == "false":
		v.kind = KindBool
		v.b = raw == "true"
		return nil
	case strings.HasPrefix(raw, `"`):
		v.kind = KindString
		return json.Unmarshal(data, &v.s)
	case strings.ContainsAny(raw, ".eE"):
		v.kind = KindFloat
		return json.Unmarshal(data, &v.f)
	default:
		v.kind = KindInt
		if err := json.Unmarshal(data, &v.i); err != nil {
			return fmt.Errorf("invalid parameter value %s: %w", raw, err)
		}
		return nil
	}
}

// MarshalJSON emits the natural JSON scalar for the kind.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.s)
	}
}
