package validation

import (
	"net/http"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/features"
)

// coordinateCycleDepth stops expansion at a schema coordinate once it recurs
// more often along one path than the configured limits allow.
type coordinateCycleDepth struct{ BaseVisitor }

func (coordinateCycleDepth) EnterField(c *Context, f *ast.Field) Action {
	parent := c.ParentType()
	if parent == nil {
		return Continue
	}
	coord := parent.Name + "." + f.Name
	if !c.Cycles.Add(coord) {
		c.Report(at(f.Position), `Maximum allowed coordinate cycle depth was exceeded for "%s".`, coord)
		return Skip
	}
	return Continue
}

func (coordinateCycleDepth) LeaveField(c *Context, f *ast.Field) {
	if parent := c.ParentType(); parent != nil {
		c.Cycles.Remove(parent.Name + "." + f.Name)
	}
}

// introspectionNotAllowed rejects root fields reserved for introspection
// unless the request context lifts the restriction.
func introspectionNotAllowed(c *Context) {
	if allowed, _ := c.ContextData[features.AllowIntrospection.Name()].(bool); allowed {
		return
	}
	for _, op := range c.document.Operations {
		clear(c.Visited)
		for _, f := range collectRootFields(c, op.SelectionSet, nil) {
			if strings.HasPrefix(f.Name, "__") {
				c.ReportCode(CodeIntrospectionNotAllowed, at(f.Position), "Introspection is not allowed for the current request.")
				c.SetStatusCode(http.StatusBadRequest)
			}
		}
	}
}
