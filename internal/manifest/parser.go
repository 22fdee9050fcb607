package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// Parser extracts the entry for one platform out of a raw manifest document.
// Two interchangeable backends exist: a structured JSON parser and a
// pattern-based fallback. Both accept and reject exactly the same inputs.
type Parser interface {
	Extract(document []byte, platformID string) (*Entry, error)
}

// SelectParser probes the structured backend with a known-good document and
// returns it when the probe round-trips; otherwise the pattern-based fallback
// is selected. Run once at startup.
func SelectParser() Parser {
	probe := []byte(`{"platforms":{"probe":{"url":"u","sha256":"s"}}}`)

	var doc manifestDocument
	if err := json.Unmarshal(probe, &doc); err == nil {
		if p, ok := doc.Platforms["probe"]; ok && p.URL == "u" && p.SHA256 == "s" {
			return jsonParser{}
		}
	}

	return textParser{}
}

// manifestDocument mirrors the manifest wire format. Entries for platforms
// other than the requested one are carried along and ignored.
type manifestDocument struct {
	Platforms map[string]struct {
		URL    string `json:"url"`
		SHA256 string `json:"sha256"`
	} `json:"platforms"`
}

// jsonParser is the structured backend.
type jsonParser struct{}

// Extract implements Parser via encoding/json.
func (jsonParser) Extract(document []byte, platformID string) (*Entry, error) {
	var doc manifestDocument
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	raw, ok := doc.Platforms[platformID]
	if !ok {
		return nil, errPlatformMissing
	}

	entry := &Entry{URL: raw.URL, SHA256: raw.SHA256}
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// textParser is the resilient fallback backend. It normalizes whitespace and
// carves the platform sub-object out of the document by balanced-brace
// matching instead of general JSON parsing.
type textParser struct{}

var (
	// Field values are captured with their escape sequences intact so a
	// value containing an escaped quote is not truncated at the backslash.
	urlFieldPattern      = regexp.MustCompile(`"url"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	checksumFieldPattern = regexp.MustCompile(`"sha256"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	whitespaceRun        = regexp.MustCompile(`[\t\r\n ]+`)
)

var errBadStringEscape = errors.New("invalid escape sequence in manifest string")

// Extract implements Parser via bracket-balanced text matching.
func (textParser) Extract(document []byte, platformID string) (*Entry, error) {
	normalized := whitespaceRun.ReplaceAllString(string(document), " ")

	object, err := platformObject(normalized, platformID)
	if err != nil {
		return nil, err
	}

	entry := new(Entry)
	if m := urlFieldPattern.FindStringSubmatch(object); m != nil {
		if entry.URL, err = decodeFieldValue(m[1]); err != nil {
			return nil, err
		}
	}

	if m := checksumFieldPattern.FindStringSubmatch(object); m != nil {
		if entry.SHA256, err = decodeFieldValue(m[1]); err != nil {
			return nil, err
		}
	}

	if err = validateEntry(entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// decodeFieldValue resolves the escape sequences a JSON string value may
// carry, so both backends report identical values for the same document.
func decodeFieldValue(raw string) (string, error) {
	if !strings.ContainsRune(raw, '\\') {
		return raw, nil
	}

	var b strings.Builder

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}

		i++
		if i >= len(raw) {
			return "", errBadStringEscape
		}

		switch raw[i] {
		case '"', '\\', '/':
			b.WriteByte(raw[i])
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			decoded, consumed, err := decodeUnicodeEscape(raw[i+1:])
			if err != nil {
				return "", err
			}

			b.WriteRune(decoded)

			i += consumed
		default:
			return "", fmt.Errorf("%w: \\%c", errBadStringEscape, raw[i])
		}
	}

	return b.String(), nil
}

// decodeUnicodeEscape reads the hex digits following a \u prefix and returns
// the decoded rune and the number of bytes consumed. Surrogate pairs combine;
// a lone surrogate becomes the replacement character, as encoding/json does.
func decodeUnicodeEscape(s string) (rune, int, error) {
	if len(s) < 4 {
		return 0, 0, errBadStringEscape
	}

	hi, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: \\u%s", errBadStringEscape, s[:4])
	}

	r := rune(hi)
	if !utf16.IsSurrogate(r) {
		return r, 4, nil
	}

	if len(s) >= 10 && s[4] == '\\' && s[5] == 'u' {
		if lo, loErr := strconv.ParseUint(s[6:10], 16, 32); loErr == nil {
			if combined := utf16.DecodeRune(r, rune(lo)); combined != unicode.ReplacementChar {
				return combined, 10, nil
			}
		}
	}

	return unicode.ReplacementChar, 4, nil
}

// platformObject locates the sub-object keyed by platformID and returns its
// text, including the surrounding braces.
func platformObject(document, platformID string) (string, error) {
	keyPattern := regexp.MustCompile(`"` + regexp.QuoteMeta(platformID) + `"\s*:\s*\{`)

	loc := keyPattern.FindStringIndex(document)
	if loc == nil {
		return "", errPlatformMissing
	}

	// loc[1]-1 points at the opening brace matched by the pattern.
	start := loc[1] - 1
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(document); i++ {
		c := document[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}

			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return document[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("%w: unbalanced object", errPlatformMissing)
}
