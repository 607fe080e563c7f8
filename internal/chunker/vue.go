package chunker

import (
	"strings"

	"github.com/codegrove/chunkdex/internal/chunk"
)

// VueChunker splits Vue single-file components into their top-level blocks
// (template, script, style, plus any custom blocks), one chunk per block,
// and aggregates any stray top-level text into a module-level chunk.
// See https://vuejs.org/api/sfc-spec
type VueChunker struct{}

// NewVueChunker creates a Vue SFC chunker.
func NewVueChunker() *VueChunker {
	return &VueChunker{}
}

func (v *VueChunker) Name() string { return "vue" }

// CanChunk accepts .vue files.
func (v *VueChunker) CanChunk(_, path string) bool {
	return strings.HasSuffix(path, ".vue")
}

// Chunk scans the source for top-level <tag>...</tag> regions. Blocks of
// the same tag may nest (a template containing <template v-slot>), so the
// closing tag is matched by depth. Content outside any block is collected,
// stripped, and emitted as a single "outer_content" chunk when non-blank.
func (v *VueChunker) Chunk(source, _ string) ([]*chunk.Chunk, error) {
	var (
		chunks []*chunk.Chunk
		outer  []string
		pos    = 0
	)
	flushOuter := func(upTo int) {
		if text := strings.TrimSpace(source[pos:upTo]); text != "" {
			outer = append(outer, text)
		}
	}

	for pos < len(source) {
		open := strings.Index(source[pos:], "<")
		if open < 0 {
			flushOuter(len(source))
			break
		}
		open += pos

		// Skip comments.
		if strings.HasPrefix(source[open:], "<!--") {
			end := strings.Index(source[open:], "-->")
			if end < 0 {
				flushOuter(open)
				pos = len(source)
				break
			}
			flushOuter(open)
			pos = open + end + len("-->")
			continue
		}

		tag := tagNameAt(source, open)
		if tag == "" {
			// Not an opening tag; treat the '<' as text.
			flushOuter(open + 1)
			pos = open + 1
			continue
		}

		blockEnd := findBlockEnd(source, open, tag)
		if blockEnd < 0 {
			// Unterminated block: take the rest of the file as the block.
			blockEnd = len(source)
		}
		flushOuter(open)
		line := 1 + strings.Count(source[:open], "\n")
		chunks = append(chunks, chunk.New(
			chunk.CategoryOther, tag, chunk.LineAt(line), source[open:blockEnd]))
		pos = blockEnd
	}

	if len(outer) > 0 {
		chunks = append(chunks, chunk.New(
			chunk.CategoryModuleLevel, "outer_content", nil, strings.Join(outer, "\n")))
	}
	return chunks, nil
}

// tagNameAt returns the tag name of an opening tag starting at index i
// (which must point at '<'), or "" when the text there is not an opening
// tag.
func tagNameAt(s string, i int) string {
	j := i + 1
	start := j
	for j < len(s) && (isTagNameChar(s[j])) {
		j++
	}
	if j == start || j >= len(s) {
		return ""
	}
	// Must be followed by whitespace, '>' or attribute text, not '/' of a
	// closing tag (that case is excluded by start==j above since the char
	// after '<' would be '/').
	switch s[j] {
	case ' ', '\t', '\n', '\r', '>', '/':
		return s[start:j]
	}
	return ""
}

func isTagNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-'
}

// findBlockEnd returns the index just past the closing tag that matches the
// opening tag at start, accounting for nested same-name tags. Returns -1
// when the block never closes.
func findBlockEnd(s string, start int, tag string) int {
	openMark := "<" + tag
	closeMark := "</" + tag
	depth := 0
	i := start
	for i < len(s) {
		if strings.HasPrefix(s[i:], closeMark) && boundaryAfter(s, i+len(closeMark)) {
			depth--
			gt := strings.IndexByte(s[i:], '>')
			if gt < 0 {
				return -1
			}
			if depth == 0 {
				return i + gt + 1
			}
			i += gt + 1
			continue
		}
		if strings.HasPrefix(s[i:], openMark) && boundaryAfter(s, i+len(openMark)) {
			depth++
			gt := strings.IndexByte(s[i:], '>')
			if gt < 0 {
				return -1
			}
			// Self-closing tags don't raise the depth.
			if gt >= 1 && s[i+gt-1] == '/' {
				depth--
				if depth == 0 {
					return i + gt + 1
				}
			}
			i += gt + 1
			continue
		}
		i++
	}
	return -1
}

// boundaryAfter reports whether position i ends a tag name (so "<template"
// is not confused with "<templates").
func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	return !isTagNameChar(s[i])
}
