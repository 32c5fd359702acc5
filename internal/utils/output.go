package utils

import (
	"regexp"
	"strings"
)

var (
	transactionIDRe  = regexp.MustCompile(`Transaction Id ([1-9A-HJ-NP-Za-km-z]+)`)
	missingAccountRe = regexp.MustCompile(`(?i)(account\s+\S+\s+(does not|doesn't) exist|unknown_account|accountdoesnotexist|account .* not found)`)
	missingCodeRe    = regexp.MustCompile(`(?i)contract doesn't exist`)
	alreadyStoredRe  = regexp.MustCompile(`ERR_ALREADY_EXISTS`)
)

// LastValue returns the value a near CLI call printed last.
// Values spanning several lines (arrays, objects) are returned whole.
func LastValue(stdout string) string {
	lines := strings.Split(strings.ReplaceAll(stdout, "\r\n", "\n"), "\n")
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if end == 0 {
		return ""
	}

	last := strings.TrimSpace(lines[end-1])
	if !strings.HasSuffix(last, "]") && !strings.HasSuffix(last, "}") {
		return last
	}

	for start := end - 1; start >= 0; start-- {
		block := strings.Join(lines[start:end], "\n")
		if bracketDepth(block) == 0 {
			return strings.TrimSpace(block)
		}
	}
	return last
}

// TrimQuotes strips one surrounding pair of single or double quotes.
func TrimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ParseTransactionID extracts the transaction id from near CLI output.
// Returns an empty string when the output has none.
func ParseTransactionID(stdout string) string {
	matches := transactionIDRe.FindStringSubmatch(stdout)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// IsMissingAccountError reports whether msg says the account does not exist.
func IsMissingAccountError(msg string) bool {
	return missingAccountRe.MatchString(msg)
}

// IsMissingCodeError reports whether msg says the factory has no code for a hash.
func IsMissingCodeError(msg string) bool {
	return missingCodeRe.MatchString(msg)
}

// IsAlreadyStoredError reports whether msg says the factory already holds the code.
func IsAlreadyStoredError(msg string) bool {
	return alreadyStoredRe.MatchString(msg)
}

// bracketDepth returns the number of unclosed brackets in s, ignoring quoted text.
func bracketDepth(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '[', '{':
			depth++
		case ']', '}':
			depth--
		}
	}
	return depth
}
