// Package operation compiles a validated document into a prepared operation:
// the selected operation definition, its root type and field plans with
// fragments expanded per concrete object type.
package operation

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/schema"
)

// Extensions codes of compile errors.
const (
	CodeOperationNotFound  = "OPERATION_NOT_FOUND"
	CodeOperationAmbiguous = "OPERATION_AMBIGUOUS"
	CodeRootTypeNotFound   = "ROOT_TYPE_NOT_FOUND"
)

// Prepared is an immutable compiled view of one operation. It is shared by
// every request served from the operation cache.
type Prepared struct {
	ID            string
	Document      *language.QueryDocument
	Definition    *ast.OperationDefinition
	RootType      *schema.Type
	SchemaName    string
	SchemaVersion string
	// Root holds the merged root selection for RootType.
	Root SelectionSet
}

func (p *Prepared) Name() string        { return p.Definition.Name }
func (p *Prepared) Kind() ast.Operation { return p.Definition.Operation }

// ID derives the operation id from the document id and the requested
// operation name. Without a name the document id is used unchanged.
func ID(documentID, operationName string) string {
	if operationName == "" {
		return documentID
	}
	return documentID + "+" + operationName
}

// Select returns the operation definition for name.
func Select(doc *language.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if name == "" {
		switch len(doc.Operations) {
		case 0:
			return nil, compileError(CodeOperationNotFound, "Document does not contain any operations.")
		case 1:
			return doc.Operations[0], nil
		default:
			return nil, compileError(CodeOperationAmbiguous, "Must provide operation name if query contains multiple operations.")
		}
	}
	var found *ast.OperationDefinition
	for _, op := range doc.Operations {
		if op.Name != name {
			continue
		}
		if found != nil {
			return nil, compileError(CodeOperationAmbiguous, fmt.Sprintf("Multiple operations are named %q.", name))
		}
		found = op
	}
	if found == nil {
		return nil, compileError(CodeOperationNotFound, fmt.Sprintf("Unknown operation named %q.", name))
	}
	return found, nil
}

// Compile prepares the named operation of doc for execution against s.
func Compile(s *schema.Schema, doc *language.QueryDocument, documentID, operationName string) (*Prepared, error) {
	def, err := Select(doc, operationName)
	if err != nil {
		return nil, err
	}
	root := s.ResolveRootType(def.Operation)
	if root == nil {
		err := compileError(CodeRootTypeNotFound, fmt.Sprintf("Schema is not configured to execute %s operation.", def.Operation))
		err.Locations = language.Locations(def.Position)
		return nil, err
	}
	c := &compiler{schema: s, doc: doc, visiting: map[string]bool{}}
	return &Prepared{
		ID:            ID(documentID, operationName),
		Document:      doc,
		Definition:    def,
		RootType:      root,
		SchemaName:    s.Name,
		SchemaVersion: s.Version,
		Root:          c.selectionSet([]ast.SelectionSet{def.SelectionSet}, root),
	}, nil
}

func compileError(code, message string) *gqlerror.Error {
	return &gqlerror.Error{Message: message, Extensions: map[string]any{"code": code}}
}
