package secretcheck

import (
	"go/types"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/wbrc/legacy"

// approved may call Secret.Reveal.
var approved = map[string]bool{
	modulePath:                       true,
	modulePath + "/agetool":          true,
	modulePath + "/internal/agetest": true,
}

func isReveal(obj types.Object) bool {
	fn, ok := obj.(*types.Func)
	if !ok || fn.Name() != "Reveal" || fn.Pkg() == nil || fn.Pkg().Path() != modulePath {
		return false
	}
	recv := fn.Type().(*types.Signature).Recv()
	if recv == nil {
		return false
	}
	named, ok := recv.Type().(*types.Named)
	return ok && named.Obj().Name() == "Secret"
}

func TestRevealOnlyInApprovedPackages(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the whole module")
	}
	pkgs, err := packages.Load(&packages.Config{
		Mode:  packages.NeedName | packages.NeedFiles | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo,
		Dir:   "../..",
		Tests: true,
	}, "./...")
	require.NoError(t, err)
	require.NotEmpty(t, pkgs)

	callers := make(map[string]bool)
	var offending []string
	for _, pkg := range pkgs {
		require.Empty(t, pkg.Errors, "loading %s", pkg.ID)
		path := strings.TrimSuffix(pkg.PkgPath, "_test")
		for ident, obj := range pkg.TypesInfo.Uses {
			if !isReveal(obj) {
				continue
			}
			callers[path] = true
			if !approved[path] {
				offending = append(offending, pkg.Fset.Position(ident.Pos()).String())
			}
		}
	}
	require.Empty(t, offending, "Secret.Reveal called outside the approved packages")
	require.True(t, callers[modulePath+"/agetool"], "the check found no caller at all")
}
