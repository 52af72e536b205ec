// Package respparse parses the model's transcript format: an optional
// explanation segment followed by delimited file blocks. The format is
// a wire contract with the model prompt:
//
//	%%EXPLANATION%%
//	why these files were chosen
//	%%FILE: folder/note.md%%
//	file content until the next marker
//
// Parsing is deliberately tolerant. Malformed markers skip their block,
// missing closing delimiters degrade to newline termination, and no
// input ever produces an error.
package respparse

import (
	"regexp"
	"strings"
)

var fileMarkerRe = regexp.MustCompile(`%%FILE:\s*`)

// FileBlock is one proposed file extracted from a transcript.
type FileBlock struct {
	Path    string
	Content string
}

// Result is the structured form of a model transcript.
type Result struct {
	Explanation string
	Files       []FileBlock
}

// Parse splits a raw transcript into an explanation and an ordered
// list of file blocks.
func Parse(text string) Result {
	result := Result{Files: []FileBlock{}}

	if strings.TrimSpace(text) == "" {
		return result
	}

	normalized := strings.TrimSpace(strings.ReplaceAll(text, "%%EXPLANATION%%", ""))

	parts := fileMarkerRe.Split(normalized, -1)
	if len(parts) == 1 {
		// No file markers: the whole transcript is explanation.
		result.Explanation = normalized
		return result
	}

	result.Explanation = strings.TrimSpace(parts[0])

	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "" {
			continue
		}
		path, content, ok := splitBlock(part)
		if !ok {
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		result.Files = append(result.Files, FileBlock{Path: path, Content: content})
	}

	return result
}

// splitBlock separates the path from the content of one file block.
// The path runs until the closing %%, or until the first newline when
// the closing delimiter is missing, or to the end of the block.
func splitBlock(part string) (path, content string, ok bool) {
	delim := strings.Index(part, "%%")
	newline := strings.Index(part, "\n")

	switch {
	case delim >= 0 && (newline < 0 || delim < newline):
		path, content = part[:delim], part[delim+2:]
	case newline >= 0:
		path, content = part[:newline], part[newline+1:]
	default:
		path, content = part, ""
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return "", "", false
	}
	return path, content, true
}
