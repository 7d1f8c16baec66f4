// Package validate holds the pure input checks for the server-creation
// flow. Every function is total: any string in, true or false out.
package validate

import "regexp"

var (
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
)

// Email reports whether s has a local@domain.tld shape. No DNS or MX
// lookup is performed.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// Username reports whether s is 3-20 characters of letters, digits and
// underscores.
func Username(s string) bool {
	return usernameRe.MatchString(s)
}

// Password reports whether s is at least 8 characters and mixes a
// letter, a digit and a symbol.
func Password(s string) bool {
	if len(s) < 8 {
		return false
	}
	var letter, digit, symbol bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	return letter && digit && symbol
}
