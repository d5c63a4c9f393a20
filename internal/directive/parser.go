package directive

import "strings"

// Parse matches one raw command string against the grammar. Case and
// surrounding whitespace are insignificant. Anything that matches no pattern,
// or matches a pattern but carries an unparsable number, comes back as
// Unknown rather than an error: parse failures are directive-level data, not
// faults.
func Parse(raw string) Directive {
	command := strings.ToUpper(strings.TrimSpace(raw))
	for _, r := range grammar {
		if groups := r.pattern.FindStringSubmatch(command); groups != nil {
			return r.build(raw, groups)
		}
	}
	return Unknown{RawText: raw, Reason: ReasonNoGrammarMatch}
}

// ParseAll parses a batch of command strings, order-preserving. One element
// per input; a bad command never blocks the rest.
func ParseAll(raws []string) []Directive {
	out := make([]Directive, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Parse(raw))
	}
	return out
}
