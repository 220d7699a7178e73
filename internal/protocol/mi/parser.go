package mi

import "github.com/dd86k/aliceserver/internal/shellsplit"

// parsedLine is one input line broken into its MI-grammar parts, per
// spec §4.3: `[<id-digits>][-]<name> <args…>`.
type parsedLine struct {
	id            int
	hasID         bool
	leadingHyphen bool
	name          string
	nameOriginal  string
	args          []string
	echoText      string
}

// parseLine implements spec §4.3's parser. It never fails: an
// id-digit run that overflows a plausible bound is simply clamped,
// and any line shape not otherwise recognized degrades to an empty
// command name (treated by the adapter as a no-op).
func parseLine(line string) parsedLine {
	i := 0
	id := 0
	hasID := false
	const maxIDDigits = 9 // bounded-length id buffer, spec §4.3
	digits := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		if digits < maxIDDigits {
			id = id*10 + int(line[i]-'0')
			hasID = true
			digits++
		}
		i++
	}

	leadingHyphen := false
	if i < len(line) && line[i] == '-' {
		leadingHyphen = true
		i++
	}

	rest := line[i:]
	echoText := trimLine(rest)

	tokens := shellsplit.Split(rest)
	name := ""
	nameOriginal := ""
	var args []string
	if len(tokens) > 0 {
		nameOriginal = tokens[0]
		name = toLower(tokens[0])
		args = tokens[1:]
	}

	return parsedLine{
		id:            id,
		hasID:         hasID,
		leadingHyphen: leadingHyphen,
		name:          name,
		nameOriginal:  nameOriginal,
		args:          args,
		echoText:      echoText,
	}
}

// shouldEcho reports whether this line's command should be traced
// with a log-stream record before processing (spec §4.3: CLI-style
// commands without a leading '-').
func (p parsedLine) shouldEcho() bool {
	return !p.leadingHyphen && p.name != ""
}

func trimLine(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
