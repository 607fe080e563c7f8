package chunker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codegrove/chunkdex/internal/chunk"
)

// languageSpec describes how to classify one grammar's top-level nodes.
type languageSpec struct {
	language *sitter.Language
	// importTypes are node types aggregated into the imports chunk.
	importTypes map[string]bool
	// callableTypes are node types emitted as one callable chunk each.
	callableTypes map[string]bool
	// wrapperTypes are nodes whose real definition is a child (e.g.
	// python decorated_definition, js/ts export_statement).
	wrapperTypes map[string]bool
}

// TreeSitterChunker breaks Python, JavaScript and TypeScript source into an
// imports chunk, a module-level chunk and one callable chunk per top-level
// function or class, using tree-sitter grammars.
type TreeSitterChunker struct {
	specs map[string]*languageSpec // extension (with dot) -> spec
}

// NewTreeSitterChunker creates a chunker with the built-in grammar
// registry.
func NewTreeSitterChunker() *TreeSitterChunker {
	pySpec := &languageSpec{
		language:      python.GetLanguage(),
		importTypes:   set("import_statement", "import_from_statement", "future_import_statement"),
		callableTypes: set("function_definition", "class_definition"),
		wrapperTypes:  set("decorated_definition"),
	}
	jsSpec := &languageSpec{
		language:      javascript.GetLanguage(),
		importTypes:   set("import_statement"),
		callableTypes: set("function_declaration", "generator_function_declaration", "class_declaration"),
		wrapperTypes:  set("export_statement"),
	}
	tsSpec := &languageSpec{
		language:      typescript.GetLanguage(),
		importTypes:   set("import_statement"),
		callableTypes: set("function_declaration", "generator_function_declaration", "class_declaration", "interface_declaration", "enum_declaration"),
		wrapperTypes:  set("export_statement"),
	}
	return &TreeSitterChunker{specs: map[string]*languageSpec{
		".py": pySpec,
		".js": jsSpec,
		".ts": tsSpec,
	}}
}

func (t *TreeSitterChunker) Name() string { return "tree-sitter" }

// CanChunk accepts files whose extension has a registered grammar.
func (t *TreeSitterChunker) CanChunk(_, path string) bool {
	_, ok := t.specs[filepath.Ext(path)]
	return ok
}

// Chunk parses the source with the registered grammar and classifies the
// root's named children. Tree-sitter produces a tree even for broken input,
// so malformed regions just fall into the module-level chunk.
func (t *TreeSitterChunker) Chunk(source, path string) ([]*chunk.Chunk, error) {
	spec, ok := t.specs[filepath.Ext(path)]
	if !ok {
		return nil, fmt.Errorf("no grammar registered for %s", path)
	}

	src := []byte(source)
	parser := sitter.NewParser()
	parser.SetLanguage(spec.language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	var (
		callables   []*chunk.Chunk
		imports     []string
		moduleLevel []string
	)
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		content := node.Content(src)
		line := int(node.StartPoint().Row) + 1

		def := node
		if spec.wrapperTypes[node.Type()] {
			if inner := firstCallableChild(node, spec); inner != nil {
				def = inner
			}
		}

		switch {
		case spec.importTypes[node.Type()]:
			imports = append(imports, content)
		case spec.callableTypes[def.Type()]:
			callables = append(callables, chunk.New(chunk.CategoryCallable, nodeName(def, src), chunk.LineAt(line), content))
		default:
			moduleLevel = append(moduleLevel, content)
		}
	}

	var out []*chunk.Chunk
	if joined := strings.Join(imports, "\n"); strings.TrimSpace(joined) != "" {
		out = append(out, chunk.New(chunk.CategoryImports, "imports", nil, joined))
	}
	if joined := strings.Join(moduleLevel, "\n"); strings.TrimSpace(joined) != "" {
		out = append(out, chunk.New(chunk.CategoryModuleLevel, "module_level_statements", nil, joined))
	}
	return append(out, callables...), nil
}

// firstCallableChild finds the definition wrapped by a decorator or export
// node.
func firstCallableChild(node *sitter.Node, spec *languageSpec) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if spec.callableTypes[child.Type()] {
			return child
		}
	}
	return nil
}

// nodeName extracts the declared name from a definition node, falling back
// to the node type when the grammar has no name field (e.g. inside broken
// input).
func nodeName(node *sitter.Node, src []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	return node.Type()
}

func set(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}
