package proposal

import (
	"encoding/json"
	"strings"
)

// Sentinel markers the agent is told to wrap its payload in. Marker
// extraction is tried first; a bare JSON object anywhere in the
// transcript is the fallback.
const (
	BeginMarker = "BEGIN_JSON"
	EndMarker   = "END_JSON"
)

// Extract parses a raw agent transcript into zero or more proposals.
//
// Extract fails softly: transcripts with no payload, or with a payload
// that does not parse, yield an empty slice rather than an error. A
// garbled transcript is an expected outcome of calling a generative
// agent, not a pipeline fault. Extract is a pure function of its input.
func Extract(transcript string) []Proposal {
	raw, ok := markerPayload(transcript)
	if !ok {
		raw, ok = firstJSONObject(transcript)
		if !ok {
			return nil
		}
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil
	}
	return p.Proposals
}

// markerPayload returns the text between the first BEGIN_JSON/END_JSON
// pair, if both markers are present in order.
func markerPayload(text string) (string, bool) {
	start := strings.Index(text, BeginMarker)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(BeginMarker):]
	end := strings.Index(rest, EndMarker)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// firstJSONObject scans for the first balanced top-level JSON object,
// honoring string literals and escapes so braces inside patch bodies
// don't terminate the scan early.
func firstJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escape := false
	for i, r := range text {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			if escape {
				escape = false
				continue
			}
			switch r {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
