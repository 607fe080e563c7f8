// Package filetree renders a compact listing of a set of files under a
// root, for consumption by a language model. Two representations are built,
// a nested JSON mapping and a flat per-directory text listing, and the
// shorter one wins unless the caller forces a structure.
package filetree

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codegrove/chunkdex/internal/chunk"
)

// Structure selects the rendered representation.
type Structure string

const (
	// StructureAuto returns whichever representation is shorter.
	StructureAuto Structure = ""
	// StructureDict forces the nested JSON mapping.
	StructureDict Structure = "dict"
	// StructurePlainText forces the flat listing.
	StructurePlainText Structure = "plain_text"
)

// Options tunes the rendering.
type Options struct {
	// Filter keeps only paths containing at least one of the given
	// substrings. Nil keeps everything.
	Filter []string
	// LimitDepth truncates the tree this many levels below the root.
	// Zero or negative means unlimited.
	LimitDepth int
	// Structure forces a representation; default is whichever is shorter.
	Structure Structure
}

// node is one directory in the nested representation. Files holds the
// directory's file names, or "..." when only the directory itself was
// included.
type node map[string]any

func newNode() node { return node{"f": "..."} }

// Render builds the tree for the given absolute file paths under root.
// Parent directories between each file and the root are always included so
// a deep file does not hide the directories above it. The second return is
// false when nothing survived filtering.
func Render(root string, files []string, opts Options) (string, bool) {
	root = filepath.Clean(root)

	dirSet := map[string]bool{}
	fileSet := map[string]bool{}
	for _, f := range files {
		f = filepath.Clean(f)
		fileSet[f] = true
		for dir := filepath.Dir(f); len(dir) > len(root) && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
			dirSet[dir] = true
		}
	}

	keep := func(path string) bool {
		if !chunk.MatchesFilter(opts.Filter, path) {
			return false
		}
		return opts.LimitDepth <= 0 || depthFromRoot(root, path) <= opts.LimitDepth
	}

	var dirs, kept []string
	for d := range dirSet {
		if keep(d) {
			dirs = append(dirs, d)
		}
	}
	for f := range fileSet {
		if keep(f) {
			kept = append(kept, f)
		}
	}
	// Shallow entries first so parents exist before children.
	sort.Slice(dirs, func(i, j int) bool { return depthLess(dirs[i], dirs[j]) })
	sort.Slice(kept, func(i, j int) bool { return depthLess(kept[i], kept[j]) })

	tree := node{"root": newNode()}
	empty := true
	for _, dir := range dirs {
		parent := tree["root"].(node)
		for _, part := range relParts(root, dir) {
			child, ok := parent[part].(node)
			if !ok {
				child = newNode()
				parent[part] = child
			}
			parent = child
		}
		empty = false
	}
	for _, file := range kept {
		parts := relParts(root, file)
		if len(parts) == 0 {
			continue
		}
		parent := tree["root"].(node)
		for _, part := range parts[:len(parts)-1] {
			child, ok := parent[part].(node)
			if !ok {
				child = node{"f": []string{}}
				parent[part] = child
			}
			parent = child
		}
		names, _ := parent["f"].([]string)
		names = append(names, filepath.Base(file))
		sort.Strings(names)
		parent["f"] = names
		empty = false
	}
	if empty {
		return "", false
	}

	plain := renderPlain(root, kept)

	switch opts.Structure {
	case StructureDict:
		return marshalTree(tree), true
	case StructurePlainText:
		return plain, true
	default:
		dict := marshalTree(tree)
		if len(plain) < len(dict) {
			return plain, true
		}
		return dict, true
	}
}

// renderPlain builds the flat representation: either one relative path per
// line, or one line per directory listing its files, whichever is shorter.
func renderPlain(root string, files []string) string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	var perFile strings.Builder
	byDir := map[string][]string{}
	for _, f := range sorted {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			rel = f
		}
		perFile.WriteString(rel + "\n")
		dir := filepath.Dir(f)
		byDir[dir] = append(byDir[dir], filepath.Base(f))
	}

	dirKeys := make([]string, 0, len(byDir))
	for d := range byDir {
		dirKeys = append(dirKeys, d)
	}
	sort.Strings(dirKeys)
	var perDir strings.Builder
	for _, d := range dirKeys {
		rel, err := filepath.Rel(root, d)
		if err != nil {
			rel = d
		}
		perDir.WriteString(rel + ": " + strings.Join(byDir[d], "; ") + "\n")
	}

	if perDir.Len() < perFile.Len() {
		return perDir.String()
	}
	return perFile.String()
}

func marshalTree(tree node) string {
	// Map keys marshal in sorted order, keeping the output deterministic.
	out, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return ""
	}
	return string(out)
}

func relParts(root, path string) []string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return nil
	}
	return strings.Split(rel, string(filepath.Separator))
}

func depthFromRoot(root, path string) int {
	return len(relParts(root, path))
}

func depthLess(a, b string) bool {
	da, db := strings.Count(a, string(filepath.Separator)), strings.Count(b, string(filepath.Separator))
	if da != db {
		return da < db
	}
	return a < b
}
