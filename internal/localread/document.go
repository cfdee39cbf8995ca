package localread

import (
	"errors"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// parse parses a query document and picks its first operation.
func parse(document string) (*ast.QueryDocument, *ast.OperationDefinition, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "document", Input: document})
	if err != nil {
		var gqlErr *gqlerror.Error
		if errors.As(err, &gqlErr) {
			qe := &QueryError{Message: gqlErr.Message}
			if len(gqlErr.Locations) > 0 {
				qe.Line = gqlErr.Locations[0].Line
				qe.Column = gqlErr.Locations[0].Column
			}
			return nil, nil, qe
		}
		return nil, nil, &QueryError{Message: err.Error()}
	}
	if len(doc.Operations) == 0 {
		return nil, nil, &QueryError{Message: "document has no operation"}
	}
	return doc, doc.Operations[0], nil
}

// RootKeys returns the response keys (alias, else field name) of the first
// operation's root selection, in document order. Fragment spreads at the root
// are expanded.
func RootKeys(document string) ([]string, error) {
	fields, err := rootFields(document)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Alias
	}
	return keys, nil
}

// RootAliases maps each aliased root response key to the field it selects.
// Unaliased fields are left out.
func RootAliases(document string) (map[string]string, error) {
	fields, err := rootFields(document)
	if err != nil {
		return nil, err
	}
	aliases := make(map[string]string)
	for _, f := range fields {
		if f.Alias != f.Name {
			aliases[f.Alias] = f.Name
		}
	}
	return aliases, nil
}

// rootFields lists the first operation's root fields, one per response key.
func rootFields(document string) ([]*ast.Field, error) {
	doc, op, err := parse(document)
	if err != nil {
		return nil, err
	}
	var fields []*ast.Field
	seen := make(map[string]bool)
	visited := make(map[string]bool)
	var walk func(set ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *ast.Field:
				if !seen[s.Alias] {
					seen[s.Alias] = true
					fields = append(fields, s)
				}
			case *ast.InlineFragment:
				walk(s.SelectionSet)
			case *ast.FragmentSpread:
				if visited[s.Name] {
					continue
				}
				visited[s.Name] = true
				if frag := doc.Fragments.ForName(s.Name); frag != nil {
					walk(frag.SelectionSet)
				}
			}
		}
	}
	walk(op.SelectionSet)
	return fields, nil
}
