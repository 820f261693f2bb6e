// SPDX-License-Identifier: Apache-2.0

package llmqueue

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Priority is the client-assigned urgency of an LLMRequest. Lower values are
// more urgent.
type Priority int

const (
	Urgent Priority = iota
	High
	Normal
	Low

	lastPriority
)

var ErrPriorityInvalid = errors.New("priority is invalid")

var (
	priorityUnmarshal = map[string]Priority{
		"urgent": Urgent,
		"high":   High,
		"normal": Normal,
		"low":    Low,
	}
	priorityMarshal = map[Priority]string{
		Urgent: "urgent",
		High:   "high",
		Normal: "normal",
		Low:    "low",
	}
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	if value, ok := priorityMarshal[p]; ok {
		return value
	}
	return "unknown"
}

// Valid reports whether p is one of the four recognized priority levels.
func (p Priority) Valid() bool {
	return p >= Urgent && p < lastPriority
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrPriorityInvalid, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	r, ok := priorityUnmarshal[s]
	if !ok {
		return fmt.Errorf("%w: '%s' does not match any valid options: %s",
			ErrPriorityInvalid, s, priorityKeys())
	}

	*p = r
	return nil
}

func priorityKeys() string {
	keys := make([]string, 0, len(priorityUnmarshal))
	for k := range priorityUnmarshal {
		keys = append(keys, "'"+k+"'")
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
