// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"encoding/json"
	"strings"
)

// CodeBlock is a fenced code block extracted from an LLM response.
type CodeBlock struct {
	// Language is the fence info string language, e.g. "python".
	Language string

	// Path is the target file path when the info string carries a
	// path=... attribute, e.g. ```python path=app/main.py
	Path string

	// Content is the code inside the fence, without the fence lines.
	Content string
}

// ExtractCodeBlocks parses all fenced code blocks from text. Providers
// are prompted to tag blocks with the target path in the fence info
// string; untagged blocks come back with an empty Path.
func ExtractCodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock
	lines := strings.Split(text, "\n")

	inBlock := false
	var current CodeBlock
	var body []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if inBlock {
				current.Content = strings.Join(body, "\n")
				blocks = append(blocks, current)
				inBlock = false
				body = nil
				continue
			}

			inBlock = true
			current = CodeBlock{}
			info := strings.TrimPrefix(trimmed, "```")
			for i, field := range strings.Fields(info) {
				if after, found := strings.CutPrefix(field, "path="); found {
					current.Path = strings.Trim(after, `"`)
				} else if i == 0 {
					current.Language = field
				}
			}
			continue
		}

		if inBlock {
			body = append(body, line)
		}
	}

	// An unterminated fence still yields its content
	if inBlock {
		current.Content = strings.Join(body, "\n")
		blocks = append(blocks, current)
	}

	return blocks
}

// FirstCodeBlock returns the content of the first fenced block, or the
// whole text when the response has no fences (providers sometimes return
// bare code despite the prompt).
func FirstCodeBlock(text string) string {
	blocks := ExtractCodeBlocks(text)
	if len(blocks) == 0 {
		return strings.TrimSpace(text)
	}
	return blocks[0].Content
}

// CodeBlocksByPath collects path-tagged blocks into a file map. Blocks
// without a path are skipped.
func CodeBlocksByPath(text string) map[string]string {
	files := make(map[string]string)
	for _, block := range ExtractCodeBlocks(text) {
		if block.Path != "" {
			files[block.Path] = block.Content
		}
	}
	return files
}

// ExtractJSON finds the first JSON object in text, preferring a fenced
// json block, and unmarshals it. Returns false when no parseable object
// is present.
func ExtractJSON(text string) (map[string]any, bool) {
	for _, block := range ExtractCodeBlocks(text) {
		if block.Language == "json" || block.Language == "" {
			if obj, ok := tryUnmarshal(block.Content); ok {
				return obj, true
			}
		}
	}

	// Fall back to the first balanced {...} span
	start := strings.Index(text, "{")
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return tryUnmarshal(text[start : i+1])
			}
		}
	}

	return nil, false
}

func tryUnmarshal(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// ExtractSections splits a response into sections keyed by numbered or
// markdown headings. Used as the heuristic fallback when a structured
// JSON answer was requested but prose came back.
func ExtractSections(text string) map[string]string {
	sections := make(map[string]string)
	var currentKey string
	var body []string

	flush := func() {
		if currentKey != "" {
			sections[currentKey] = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if key, ok := headingKey(trimmed); ok {
			flush()
			currentKey = key
			continue
		}
		body = append(body, line)
	}
	flush()

	return sections
}

// headingKey normalizes "## Data Models" or "3. Data Models" style
// headings to "data models".
func headingKey(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "#"):
		return strings.ToLower(strings.TrimSpace(strings.TrimLeft(line, "#"))), true
	case len(line) > 2 && line[0] >= '1' && line[0] <= '9' && (line[1] == '.' || line[1] == ')'):
		return strings.ToLower(strings.TrimSpace(line[2:])), true
	default:
		return "", false
	}
}
