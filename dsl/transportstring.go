// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dsl implements the transport-string DSL: a case-insensitive
// ";"-separated key/value lexer (type String, ported from
// net/transport_string.cpp's TransportString) plus a Factory that turns
// a parsed String into a concrete transport.Transport (ported from
// net/transport_factory.cpp's TransportFactoryImpl).
package dsl

import (
	"sort"
	"strconv"
	"strings"
)

// Protocol is one of the DSL's mutually exclusive protocol flags.
type Protocol int

const (
	ProtocolTCP Protocol = iota
	ProtocolUDP
	ProtocolSerial
	ProtocolPipe
	ProtocolWS
	ProtocolInprocess
	protocolCount
)

// protocolNames is also the precedence order GetProtocol scans in when
// a string somehow carries more than one protocol flag, matching the
// original's kProtocolNames array.
var protocolNames = [...]string{"TCP", "UDP", "SERIAL", "PIPE", "WS", "INPROCESS"}

func (p Protocol) String() string {
	if p < 0 || int(p) >= len(protocolNames) {
		return "UNKNOWN"
	}
	return protocolNames[p]
}

// Canonical parameter names, ported from TransportString's kParam*
// constants.
const (
	ParamActive      = "Active"
	ParamPassive     = "Passive"
	ParamHost        = "Host"
	ParamPort        = "Port"
	ParamName        = "Name"
	ParamBaudRate    = "BaudRate"
	ParamByteSize    = "ByteSize"
	ParamParity      = "Parity"
	ParamStopBits    = "StopBits"
	ParamFlowControl = "FlowControl"
)

// paramOrder is the set of parameters Serialize emits, in order,
// immediately after the protocol and active/passive flags. Ported from
// kParamOrder; ByteSize and FlowControl are deliberately absent here
// (they fall through to the case-insensitive "remaining params" tail),
// matching spec.md §6's canonical order exactly.
var paramOrder = []string{ParamHost, ParamPort, ParamName, ParamBaudRate, ParamParity, ParamStopBits}

type param struct {
	name  string // original casing, as first set
	value string
}

// String is a parsed transport string: an unordered, case-insensitive
// set of flags and key/value parameters. The zero value is an empty,
// valid String.
type String struct {
	params map[string]param // keyed by strings.ToLower(name)
}

// New returns an empty String ready for SetParam calls.
func New() *String {
	return &String{params: make(map[string]param)}
}

// Parse splits s on ";" into flag or "name=value" tokens, per
// spec.md §6: case-insensitive, whitespace around names and values is
// trimmed. A malformed string (there is no such thing in this grammar,
// since any token at all is accepted as a bare flag) never errors;
// Parse always succeeds, matching the original constructor which has no
// failure mode either.
func Parse(s string) *String {
	ts := New()
	for _, tok := range strings.Split(s, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, value, hasValue := strings.Cut(tok, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if hasValue {
			value = strings.TrimSpace(value)
			ts.SetParam(name, value)
		} else {
			ts.SetFlag(name)
		}
	}
	return ts
}

// SetFlag sets a valueless parameter (e.g. a protocol or Active/Passive
// marker).
func (ts *String) SetFlag(name string) {
	ts.SetParam(name, "")
}

// SetParam sets name=value, preserving the casing of the first call
// that introduced this (case-insensitive) key, matching the original's
// case-insensitive std::map semantics.
func (ts *String) SetParam(name, value string) {
	key := strings.ToLower(name)
	if existing, ok := ts.params[key]; ok {
		existing.value = value
		ts.params[key] = existing
		return
	}
	ts.params[key] = param{name: name, value: value}
}

// SetParamInt sets name to the base-10 string form of value.
func (ts *String) SetParamInt(name string, value int) {
	ts.SetParam(name, strconv.Itoa(value))
}

// RemoveParam deletes name, case-insensitively.
func (ts *String) RemoveParam(name string) {
	delete(ts.params, strings.ToLower(name))
}

// HasParam reports whether name is present, case-insensitively.
func (ts *String) HasParam(name string) bool {
	_, ok := ts.params[strings.ToLower(name)]
	return ok
}

// ParamStr returns name's value, or "" if absent.
func (ts *String) ParamStr(name string) string {
	return ts.params[strings.ToLower(name)].value
}

// ParamInt returns name's value parsed as base-10 int, or 0 if absent
// or unparsable, matching the original's StringToNumber-fails-means-zero
// behavior.
func (ts *String) ParamInt(name string) int {
	v, err := strconv.Atoi(ts.ParamStr(name))
	if err != nil {
		return 0
	}
	return v
}

// GetProtocol scans protocolNames in order and returns the first one
// present as a flag, or protocolCount (an out-of-range sentinel) if
// none is set.
func (ts *String) GetProtocol() Protocol {
	for i, name := range protocolNames {
		if ts.HasParam(name) {
			return Protocol(i)
		}
	}
	return protocolCount
}

// SetProtocol clears every protocol flag and sets p's.
func (ts *String) SetProtocol(p Protocol) {
	for _, name := range protocolNames {
		ts.RemoveParam(name)
	}
	if p >= 0 && int(p) < len(protocolNames) {
		ts.SetFlag(protocolNames[p])
	}
}

// Active reports whether the string requests a client (true, the
// default) or a listener (false), per spec.md §6's "direction ...
// default Active".
func (ts *String) Active() bool {
	return !ts.HasParam(ParamPassive)
}

// SetActive clears Active/Passive and sets the one matching active.
func (ts *String) SetActive(active bool) {
	ts.RemoveParam(ParamActive)
	ts.RemoveParam(ParamPassive)
	if active {
		ts.SetFlag(ParamActive)
	} else {
		ts.SetFlag(ParamPassive)
	}
}

func (ts *String) Host() string        { return ts.ParamStr(ParamHost) }
func (ts *String) Port() int           { return ts.ParamInt(ParamPort) }
func (ts *String) Name() string        { return ts.ParamStr(ParamName) }
func (ts *String) BaudRate() int       { return ts.ParamInt(ParamBaudRate) }
func (ts *String) ByteSize() int       { return ts.ParamInt(ParamByteSize) }
func (ts *String) Parity() string      { return ts.ParamStr(ParamParity) }
func (ts *String) StopBits() string    { return ts.ParamStr(ParamStopBits) }
func (ts *String) FlowControl() string { return ts.ParamStr(ParamFlowControl) }

// Serialize renders ts back to its canonical string form: protocol
// flag first, then the active/passive flag, then Host/Port/Name/
// BaudRate/Parity/StopBits (whichever are present), then every
// remaining parameter in case-insensitive name order. Ported from
// TransportString::ToString.
func (ts *String) Serialize() string {
	var b strings.Builder
	emitted := make(map[string]bool, len(ts.params))

	appendParam := func(key string) {
		p, ok := ts.params[key]
		if !ok {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		b.WriteString(p.name)
		if p.value != "" {
			b.WriteByte('=')
			b.WriteString(p.value)
		}
		emitted[key] = true
	}

	if proto := ts.GetProtocol(); proto != protocolCount {
		appendParam(strings.ToLower(protocolNames[proto]))
	}
	if ts.HasParam(ParamActive) {
		appendParam(strings.ToLower(ParamActive))
	} else if ts.HasParam(ParamPassive) {
		appendParam(strings.ToLower(ParamPassive))
	}
	for _, name := range paramOrder {
		appendParam(strings.ToLower(name))
	}

	remaining := make([]string, 0, len(ts.params))
	for key := range ts.params {
		if !emitted[key] {
			remaining = append(remaining, key)
		}
	}
	sort.Strings(remaining)
	for _, key := range remaining {
		appendParam(key)
	}

	return b.String()
}

func (ts *String) String() string { return ts.Serialize() }
