// Package chunk splits raw input text into ordered text units for embedding.
package chunk

import (
	"regexp"
	"strings"
)

// Strategy names a rule for splitting text into units.
type Strategy string

const (
	// StrategyWhole keeps the entire trimmed input as one unit.
	StrategyWhole Strategy = "whole"
	// StrategySentence splits on runs of '.', '!' and '?'.
	StrategySentence Strategy = "sentence"
	// StrategyParagraph splits on one or more blank lines.
	StrategyParagraph Strategy = "paragraph"
	// StrategyManual splits on single line breaks.
	StrategyManual Strategy = "manual"
)

var (
	sentenceSep  = regexp.MustCompile(`[.!?]+`)
	paragraphSep = regexp.MustCompile(`\n\s*\n`)
)

// Strategies lists the recognized strategies in display order.
func Strategies() []Strategy {
	return []Strategy{StrategyWhole, StrategySentence, StrategyParagraph, StrategyManual}
}

// ParseStrategy maps a strategy name to a Strategy. Unrecognized names fall back to whole.
func ParseStrategy(name string) Strategy {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategySentence, StrategyParagraph, StrategyManual:
		return s
	default:
		return StrategyWhole
	}
}

// TextUnit is one piece of the source text and its position in the split sequence.
type TextUnit struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Split breaks raw into units according to strategy. Units keep their left-to-right
// order and are never blank. ok is false when nothing usable remains, in which case
// units is empty.
func Split(raw string, strategy Strategy) (units []TextUnit, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	var pieces []string
	switch strategy {
	case StrategySentence:
		pieces = sentenceSep.Split(trimmed, -1)
	case StrategyParagraph:
		pieces = paragraphSep.Split(trimmed, -1)
	case StrategyManual:
		pieces = strings.Split(trimmed, "\n")
	default:
		pieces = []string{trimmed}
	}
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		units = append(units, TextUnit{Index: len(units), Text: p})
	}
	return units, len(units) > 0
}

// Texts returns the text of each unit in order.
func Texts(units []TextUnit) []string {
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}
	return texts
}

// Policy resolves strategy names against a configured default before splitting.
type Policy struct {
	fallback Strategy
}

// NewPolicy returns a policy that uses defaultStrategy when a caller names none.
func NewPolicy(defaultStrategy string) *Policy {
	return &Policy{fallback: ParseStrategy(defaultStrategy)}
}

// Default returns the strategy used for empty names.
func (p *Policy) Default() Strategy {
	return p.fallback
}

// Resolve returns the strategy for name, using the policy default when name is empty.
func (p *Policy) Resolve(name string) Strategy {
	if strings.TrimSpace(name) == "" {
		return p.fallback
	}
	return ParseStrategy(name)
}

// Split splits raw with the strategy resolved from name.
func (p *Policy) Split(raw, name string) ([]TextUnit, bool) {
	return Split(raw, p.Resolve(name))
}
