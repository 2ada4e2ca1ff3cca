package resources

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Two-character codes are stored as-is. Three-character codes are packed
// into the same two bytes: each character becomes a 5-bit offset from the
// base ('a' for languages, '0' for numeric regions) and bit 7 of the
// first byte marks the packed form.
func packLanguageOrRegion(s string, base byte) [2]uint8 {
	var out [2]uint8
	switch len(s) {
	case 2:
		out[0] = s[0]
		out[1] = s[1]
	case 3:
		first := (s[0] - base) & 0x7f
		second := (s[1] - base) & 0x7f
		third := (s[2] - base) & 0x7f
		out[0] = 0x80 | third<<2 | second>>3
		out[1] = second<<5 | first
	}
	return out
}

func unpackLanguageOrRegion(in [2]uint8, base byte) string {
	if in[0] == 0 && in[1] == 0 {
		return ""
	}
	if in[0]&0x80 != 0 {
		first := in[1] & 0x1f
		second := (in[1]&0xe0)>>5 | (in[0]&0x03)<<3
		third := (in[0] & 0x7c) >> 2
		return string([]byte{first + base, second + base, third + base})
	}
	return string(in[:])
}

func (c *Config) language() string {
	return unpackLanguageOrRegion(c.Language, 'a')
}

func (c *Config) country() string {
	return unpackLanguageOrRegion(c.Country, '0')
}

// SetLocale parses a BCP-47 tag and distributes its subtags over the
// locale fields. An empty tag clears them.
func (c *Config) SetLocale(locale string) error {
	c.Language = [2]uint8{}
	c.Country = [2]uint8{}
	c.LocaleScript = [4]uint8{}
	c.LocaleVariant = [8]uint8{}
	if locale == "" {
		return nil
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("parse locale %q: %w", locale, err)
	}

	// The canonical form is language[-script][-region][-variant], so the
	// subtags classify by shape alone.
	parts := strings.Split(tag.String(), "-")
	c.Language = packLanguageOrRegion(parts[0], 'a')
	for _, part := range parts[1:] {
		switch {
		case len(part) == 1:
			// extension subtags follow, none of which are config axes
			return nil
		case len(part) == 4 && isAlpha(part):
			copy(c.LocaleScript[:], part)
		case len(part) == 2 && isAlpha(part):
			c.Country = packLanguageOrRegion(strings.ToUpper(part), '0')
		case len(part) == 3 && isDigit(part):
			c.Country = packLanguageOrRegion(part, '0')
		default:
			copy(c.LocaleVariant[:], part)
		}
	}
	return nil
}

// Locale reassembles the BCP-47 tag from the locale fields. Empty when no
// language is set.
func (c *Config) Locale() string {
	lang := c.language()
	if lang == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(lang)
	if c.LocaleScript[0] != 0 {
		sb.WriteByte('-')
		sb.Write(trimNul(c.LocaleScript[:]))
	}
	if ctry := c.country(); ctry != "" {
		sb.WriteByte('-')
		sb.WriteString(ctry)
	}
	if c.LocaleVariant[0] != 0 {
		sb.WriteByte('-')
		sb.Write(trimNul(c.LocaleVariant[:]))
	}
	return sb.String()
}

func trimNul(b []byte) []byte {
	for i, ch := range b {
		if ch == 0 {
			return b[:i]
		}
	}
	return b
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch < 'a' || ch > 'z') && (ch < 'A' || ch > 'Z') {
			return false
		}
	}
	return true
}

func isDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
