package chunk

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		strategy Strategy
		want     []string
	}{
		{"sentence", "A. B! C?", StrategySentence, []string{"A", "B", "C"}},
		{"sentence runs of punctuation", "Wait... what?! Fine.", StrategySentence, []string{"Wait", "what", "Fine"}},
		{"paragraph", "P1 line\n\nP2 line", StrategyParagraph, []string{"P1 line", "P2 line"}},
		{"paragraph multiple blank lines", "one\nstill one\n\n  \n\ntwo", StrategyParagraph, []string{"one\nstill one", "two"}},
		{"manual", "first\n  second  \n\nthird", StrategyManual, []string{"first", "second", "third"}},
		{"manual crlf", "a\r\nb\r\n", StrategyManual, []string{"a", "b"}},
		{"whole", "  keep. all! of it?  ", StrategyWhole, []string{"keep. all! of it?"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, ok := Split(tt.text, tt.strategy)
			if !ok {
				t.Fatalf("Split(%q) reported no units", tt.text)
			}
			if got := Texts(units); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q, %s) = %q, want %q", tt.text, tt.strategy, got, tt.want)
			}
			for i, u := range units {
				if u.Index != i {
					t.Errorf("unit %d has Index %d", i, u.Index)
				}
			}
		})
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	inputs := []string{"", "   ", "\n\n\t", "\n \n"}
	for _, in := range inputs {
		for _, s := range Strategies() {
			units, ok := Split(in, s)
			if ok || len(units) != 0 {
				t.Errorf("Split(%q, %s) = %v, %v; want no units", in, s, units, ok)
			}
		}
	}
	if units, ok := Split("...!?", StrategySentence); ok || len(units) != 0 {
		t.Errorf("punctuation-only sentence split = %v, %v; want no units", units, ok)
	}
}

func TestSplit_OrderAndNoBlankUnits(t *testing.T) {
	text := "Alpha one. Beta two!\n\nGamma three?\nDelta four.\n\n\nEpsilon"
	for _, s := range Strategies() {
		units, ok := Split(text, s)
		if !ok {
			t.Fatalf("%s: no units", s)
		}
		pos := 0
		for _, u := range units {
			if strings.TrimSpace(u.Text) == "" {
				t.Errorf("%s: blank unit %d", s, u.Index)
			}
			at := strings.Index(text[pos:], u.Text)
			if at < 0 {
				t.Fatalf("%s: unit %q not found after offset %d", s, u.Text, pos)
			}
			pos += at + len(u.Text)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := map[string]Strategy{
		"sentence":  StrategySentence,
		"Paragraph": StrategyParagraph,
		" manual ":  StrategyManual,
		"whole":     StrategyWhole,
		"tokens":    StrategyWhole,
		"":          StrategyWhole,
	}
	for in, want := range tests {
		if got := ParseStrategy(in); got != want {
			t.Errorf("ParseStrategy(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPolicy_Resolve(t *testing.T) {
	p := NewPolicy("sentence")
	if p.Default() != StrategySentence {
		t.Errorf("Default() = %s", p.Default())
	}
	if got := p.Resolve(""); got != StrategySentence {
		t.Errorf("Resolve(\"\") = %s, want sentence", got)
	}
	if got := p.Resolve("manual"); got != StrategyManual {
		t.Errorf("Resolve(manual) = %s", got)
	}
	if got := p.Resolve("bogus"); got != StrategyWhole {
		t.Errorf("Resolve(bogus) = %s, want whole", got)
	}
	units, ok := p.Split("One. Two.", "")
	if !ok || len(units) != 2 {
		t.Errorf("Split with default strategy: %v, %v", units, ok)
	}
}
