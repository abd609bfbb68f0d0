package api

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Packages allowed to write chain state through the backend overlay.
var injectingPackages = map[string]bool{
	"api":     true,
	"backend": true,
	"genesis": true,
}

// overlayWriters returns the names of the backend methods that write state.
func overlayWriters(t *testing.T) map[string]bool {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), filepath.Join("..", "backend", "backend.go"), nil, 0)
	require.NoError(t, err)

	writers := make(map[string]bool)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil {
			continue
		}
		name := fn.Name.Name
		if strings.HasPrefix(name, "Inject") || strings.HasPrefix(name, "Remove") {
			writers[name] = true
		}
	}
	return writers
}

func TestStateInjectionOnlyFromRequestHandlers(t *testing.T) {
	writers := overlayWriters(t)
	require.Contains(t, writers, "InjectSystemAccountInfo")
	require.Contains(t, writers, "RemoveCodeInfo")

	roots := []string{"..", filepath.Join("..", "..", "cmd")}
	for _, root := range roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			rel, err := filepath.Rel("..", path)
			if err != nil {
				return err
			}
			if pkg := strings.Split(filepath.ToSlash(rel), "/")[0]; injectingPackages[pkg] {
				return nil
			}

			file, err := parser.ParseFile(token.NewFileSet(), path, nil, 0)
			if err != nil {
				return err
			}
			ast.Inspect(file, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				if sel, ok := call.Fun.(*ast.SelectorExpr); ok && writers[sel.Sel.Name] {
					assert.Failf(t, "state injection outside request handlers", "%s calls %s", path, sel.Sel.Name)
				}
				return true
			})
			return nil
		})
		if os.IsNotExist(err) {
			continue
		}
		require.NoError(t, err)
	}
}
