package chunker

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/codegrove/chunkdex/internal/chunk"
)

// GoChunker breaks Go source into an imports chunk, a module-level chunk
// for top-level const/var declarations, and one callable chunk per
// function, method, and type declaration.
type GoChunker struct{}

// NewGoChunker creates a Go source chunker.
func NewGoChunker() *GoChunker {
	return &GoChunker{}
}

func (g *GoChunker) Name() string { return "go" }

// CanChunk accepts .go files.
func (g *GoChunker) CanChunk(_, path string) bool {
	return strings.HasSuffix(path, ".go")
}

// Chunk parses the source and emits chunks. A syntax error fails the whole
// extraction so the chain can fall back to the whole-file strategy.
func (g *GoChunker) Chunk(source, path string) ([]*chunk.Chunk, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, source, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	lines := strings.Split(source, "\n")
	sliceLines := func(node ast.Node) (string, int) {
		start := fset.Position(node.Pos()).Line
		end := fset.Position(node.End()).Line
		if end > len(lines) {
			end = len(lines)
		}
		return strings.Join(lines[start-1:end], "\n"), start
	}

	var (
		chunks      []*chunk.Chunk
		imports     []string
		moduleLevel []string
	)
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			content, line := sliceLines(d)
			chunks = append(chunks, chunk.New(chunk.CategoryCallable, funcName(d), chunk.LineAt(line), content))
		case *ast.GenDecl:
			switch d.Tok {
			case token.IMPORT:
				content, _ := sliceLines(d)
				imports = append(imports, content)
			case token.TYPE:
				content, line := sliceLines(d)
				for _, spec := range d.Specs {
					if ts, ok := spec.(*ast.TypeSpec); ok {
						chunks = append(chunks, chunk.New(chunk.CategoryCallable, ts.Name.Name, chunk.LineAt(line), content))
						break // one chunk per declaration block, named after the first spec
					}
				}
			default: // const, var
				content, _ := sliceLines(d)
				moduleLevel = append(moduleLevel, content)
			}
		}
	}

	var out []*chunk.Chunk
	if joined := strings.Join(imports, "\n"); strings.TrimSpace(joined) != "" {
		out = append(out, chunk.New(chunk.CategoryImports, "imports", nil, joined))
	}
	if joined := strings.Join(moduleLevel, "\n"); strings.TrimSpace(joined) != "" {
		out = append(out, chunk.New(chunk.CategoryModuleLevel, "module_level_statements", nil, joined))
	}
	return append(out, chunks...), nil
}

// funcName returns "Recv.Name" for methods and the plain name for
// functions.
func funcName(d *ast.FuncDecl) string {
	name := d.Name.Name
	if d.Recv == nil || len(d.Recv.List) == 0 {
		return name
	}
	if recv := receiverTypeName(d.Recv.List[0].Type); recv != "" {
		return recv + "." + name
	}
	return name
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr: // generic receiver
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	}
	return ""
}
