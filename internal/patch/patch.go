// Package patch canonicalizes unified diffs produced by the agent.
//
// Agent-emitted patches routinely carry git object-id metadata ("index"
// lines with fabricated hashes) and mixed line endings, both of which
// make `git apply --check` fail spuriously. Normalize strips exactly
// that and nothing else: the hunks, context lines, and file headers are
// preserved byte for byte.
package patch

import "strings"

// DiffStartMarker is the first line of a git unified diff. Repair
// responses are cut from this marker to end of text.
const DiffStartMarker = "diff --git"

// Normalize canonicalizes a raw patch body: CRLF/CR become LF, pure
// object-identity "index " lines are dropped, and the result ends with
// exactly one trailing newline. Normalize is idempotent.
func Normalize(raw string) string {
	unified := strings.ReplaceAll(raw, "\r\n", "\n")
	unified = strings.ReplaceAll(unified, "\r", "\n")

	var cleaned []string
	for _, line := range strings.Split(unified, "\n") {
		if strings.HasPrefix(line, "index ") {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.TrimRight(strings.Join(cleaned, "\n"), " \t\n") + "\n"
}

// ExtractDiff cuts the first unified diff out of free-form text: from
// the first DiffStartMarker line to the end. Returns "" when the text
// contains no diff at all.
func ExtractDiff(text string) string {
	idx := strings.Index(text, DiffStartMarker)
	if idx < 0 {
		return ""
	}
	// Only accept the marker at the start of a line; "diff --git" quoted
	// mid-sentence in prose is not a patch.
	for idx > 0 && text[idx-1] != '\n' {
		next := strings.Index(text[idx+1:], DiffStartMarker)
		if next < 0 {
			return ""
		}
		idx += 1 + next
	}
	return text[idx:]
}
