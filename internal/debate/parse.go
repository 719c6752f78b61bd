package debate

import (
	"regexp"
	"strings"

	"Shurahub/internal/protocol"
)

// Stances an argument can take
const (
	StancePro     = "Pro"
	StanceCon     = "Con"
	StanceNeutral = "Neutral"
)

// Argument is the card view of an opener or critiquer response
type Argument struct {
	Claim           string
	Explanation     string
	Evidence        string
	Counterargument string
	Stance          string
	RawText         string
}

// Synthesis is the card view of the judge's verdict
type Synthesis struct {
	Summary   []string
	Consensus string
	Breakdown string
	Citations []Citation
	RawText   string
}

// Citation links an inline marker such as [O1] to the quoted argument
type Citation struct {
	Marker string // "O1", "C2", ...
	Source string // protocol.RoleOpener or protocol.RoleCritiquer
	Quote  string
}

const claimPreviewChars = 100

var argumentFields = []struct {
	prefix string
	set    func(*Argument, string)
}{
	{"claim:", func(a *Argument, v string) { a.Claim = v }},
	{"explanation:", func(a *Argument, v string) { a.Explanation = v }},
	{"evidence:", func(a *Argument, v string) { a.Evidence = v }},
	{"counterargument:", func(a *Argument, v string) { a.Counterargument = v }},
	{"stance:", func(a *Argument, v string) { a.Stance = v }},
}

// ParseArgument extracts "Key: value" fields from an argument response
func ParseArgument(text string) Argument {
	arg := Argument{Stance: StanceNeutral, RawText: text}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, f := range argumentFields {
			if v, ok := cutPrefixFold(trimmed, f.prefix); ok {
				f.set(&arg, v)
				break
			}
		}
	}

	if arg.Claim == "" && strings.TrimSpace(text) != "" {
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			arg.Claim = truncate(line, claimPreviewChars)
			break
		}
	}
	return arg
}

// ParseSynthesis extracts the summary, consensus, breakdown and citations
// sections from a verdict. The verdict prefix is ignored if present.
func ParseSynthesis(text string) Synthesis {
	text = StripVerdict(text)
	syn := Synthesis{RawText: text}

	lines := strings.Split(text, "\n")
	var citations strings.Builder
	section := ""

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if name, value, ok := sectionHeader(trimmed); ok {
			section = name
			switch name {
			case "consensus":
				syn.Consensus = value
			case "breakdown":
				syn.Breakdown = value
			}
			continue
		}

		switch {
		case section == "summary" && strings.HasPrefix(trimmed, "-"):
			syn.Summary = append(syn.Summary, strings.TrimSpace(trimmed[1:]))
		case section == "breakdown" && trimmed != "":
			if syn.Breakdown != "" {
				syn.Breakdown += " "
			}
			syn.Breakdown += trimmed
		case section == "citations" && trimmed != "":
			citations.WriteString(line)
			citations.WriteString("\n")
		case section == "consensus" && trimmed != "" && syn.Consensus == "":
			syn.Consensus = trimmed
		}
	}

	if syn.Consensus == "" && len(strings.TrimSpace(text)) > 20 {
		for _, line := range lines {
			t := strings.TrimSpace(line)
			if len(t) > 30 && !strings.HasPrefix(t, "-") {
				syn.Consensus = t
				break
			}
		}
	}

	syn.Citations = ParseCitations(citations.String())
	return syn
}

var citationLine = regexp.MustCompile(`^\s*\[([OC])(\d+)\]\s*:\s*"?(.*?)"?\s*$`)

// ParseCitations reads `[O1]: "quote"` lines. Unrecognized lines are skipped.
func ParseCitations(block string) []Citation {
	var out []Citation
	for _, line := range strings.Split(block, "\n") {
		m := citationLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		source := protocol.RoleOpener
		if m[1] == "C" {
			source = protocol.RoleCritiquer
		}
		out = append(out, Citation{Marker: m[1] + m[2], Source: source, Quote: m[3]})
	}
	return out
}

// StripVerdict removes the verdict prefix and surrounding whitespace
func StripVerdict(text string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), protocol.VerdictPrefix))
}

var synthesisHeaders = []struct {
	prefix  string
	section string
}{
	{"summary:", "summary"},
	{"consensus:", "consensus"},
	{"decision breakdown:", "breakdown"},
	{"breakdown:", "breakdown"},
	{"citations:", "citations"},
}

func sectionHeader(line string) (section, value string, ok bool) {
	for _, h := range synthesisHeaders {
		if v, found := cutPrefixFold(line, h.prefix); found {
			return h.section, v, true
		}
	}
	return "", "", false
}

// cutPrefixFold reports whether s starts with the ASCII prefix, ignoring
// case, and returns the trimmed rest of s
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(s[len(prefix):]), true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
