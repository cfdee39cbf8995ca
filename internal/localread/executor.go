package localread

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/schema"
)

// Result is shaped like a network response.
type Result struct {
	Data ir.Object
}

// Executor evaluates documents against an entity table. The zero value is
// ready to use.
type Executor struct {
	Logger *slog.Logger
}

// Execute evaluates the first operation of document against table.
// params supplies the document's variables.
func (e *Executor) Execute(ctx context.Context, desc *schema.Descriptor, table ir.EntityTable, document string, params ir.Object) (Result, error) {
	if desc == nil {
		return Result{}, ir.NewConfigurationError("schema", "local read requires a schema descriptor")
	}
	doc, op, err := parse(document)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	rootOp := schema.OpQuery
	if op.Operation == ast.Mutation {
		rootOp = schema.OpMutation
	}

	ev := &evaluation{
		desc:   desc,
		table:  table,
		doc:    doc,
		vars:   variables(op, params),
		rootOp: rootOp,
	}

	data := ir.Object{}
	for _, f := range ev.collect(op.SelectionSet, "") {
		v, err := ev.root(f)
		if err != nil {
			return Result{}, err
		}
		data[f.Alias] = v
	}

	e.logger().Debug("local read evaluated",
		"operation", op.Name,
		"root_fields", len(data))
	return Result{Data: data}, nil
}

func (e *Executor) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// variables builds the variable map from params and declared defaults.
func variables(op *ast.OperationDefinition, params ir.Object) map[string]any {
	vars, _ := ir.ToGo(params).(map[string]any)
	if vars == nil {
		vars = map[string]any{}
	}
	for _, def := range op.VariableDefinitions {
		if _, ok := vars[def.Variable]; ok || def.DefaultValue == nil {
			continue
		}
		if v, err := def.DefaultValue.Value(nil); err == nil {
			vars[def.Variable] = v
		}
	}
	return vars
}

type evaluation struct {
	desc   *schema.Descriptor
	table  ir.EntityTable
	doc    *ast.QueryDocument
	vars   map[string]any
	rootOp schema.Operation
}

// root resolves one root field.
func (ev *evaluation) root(f *ast.Field) (ir.Value, error) {
	if f.Name == "__typename" {
		return ir.String(rootTypeName(ev.rootOp)), nil
	}

	rf, ok := ev.desc.RootField(ev.rootOp, f.Name)
	if !ok || !ev.desc.IsEntity(rf.Base) {
		return ir.Null{}, nil
	}

	args, err := ev.arguments(f)
	if err != nil {
		return nil, err
	}

	if rf.IsList() {
		out := ir.Array{}
		for _, id := range ev.table.IDs(rf.Base) {
			rec := ev.table[rf.Base][id]
			if matches(rec, args) {
				out = append(out, ev.record(rf.Base, rec, f.SelectionSet))
			}
		}
		return out, nil
	}

	if len(args) == 0 {
		return ir.Null{}, nil
	}
	td, _ := ev.desc.Type(rf.Base)
	if idArg, ok := args[td.Identity]; ok && len(args) == 1 {
		id, ok := ir.IDString(idArg)
		if !ok {
			return ir.Null{}, nil
		}
		rec, ok := ev.table.Lookup(rf.Base, id)
		if !ok {
			return ir.Null{}, nil
		}
		return ev.record(rf.Base, rec, f.SelectionSet), nil
	}
	for _, id := range ev.table.IDs(rf.Base) {
		rec := ev.table[rf.Base][id]
		if matches(rec, args) {
			return ev.record(rf.Base, rec, f.SelectionSet), nil
		}
	}
	return ir.Null{}, nil
}

func rootTypeName(op schema.Operation) string {
	if op == schema.OpMutation {
		return "Mutation"
	}
	return "Query"
}

func (ev *evaluation) arguments(f *ast.Field) (map[string]ir.Value, error) {
	if len(f.Arguments) == 0 {
		return nil, nil
	}
	args := make(map[string]ir.Value, len(f.Arguments))
	for _, arg := range f.Arguments {
		raw, err := arg.Value.Value(ev.vars)
		if err != nil {
			return nil, &QueryError{Message: fmt.Sprintf("argument %q: %v", arg.Name, err)}
		}
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, &QueryError{Message: fmt.Sprintf("argument %q: %v", arg.Name, err)}
		}
		args[arg.Name] = v
	}
	return args, nil
}

// matches reports whether every argument equals the record field of the same
// name. Identity values compare across String and Int.
func matches(rec ir.Record, args map[string]ir.Value) bool {
	for name, want := range args {
		got, ok := rec[name]
		if !ok {
			return false
		}
		if ir.Equal(got, want) {
			continue
		}
		gs, gok := ir.IDString(got)
		ws, wok := ir.IDString(want)
		if !gok || !wok || gs != ws {
			return false
		}
	}
	return true
}

// record resolves a selection set against one entity or embedded object.
func (ev *evaluation) record(typeName string, rec ir.Record, set ast.SelectionSet) ir.Value {
	if len(set) == 0 {
		return ir.Object(rec.Clone())
	}
	td, _ := ev.desc.Type(typeName)

	out := ir.Object{}
	for _, f := range ev.collect(set, typeName) {
		if f.Name == "__typename" {
			out[f.Alias] = ir.String(typeName)
			continue
		}
		hint := ""
		if td != nil {
			if fd, ok := td.Field(f.Name); ok && fd.Kind != schema.KindScalar {
				hint = fd.Base
			}
		}
		out[f.Alias] = ev.value(rec[f.Name], hint, f.SelectionSet)
	}
	return out
}

// value resolves a field value, following references.
func (ev *evaluation) value(v ir.Value, typeHint string, set ast.SelectionSet) ir.Value {
	switch val := v.(type) {
	case nil, ir.Null:
		return ir.Null{}
	case ir.Ref:
		rec, ok := ev.table.Resolve(val)
		if !ok {
			return ir.Null{}
		}
		return ev.record(val.Type, rec, set)
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, elem := range val {
			out[i] = ev.value(elem, typeHint, set)
		}
		return out
	case ir.Object:
		if len(set) == 0 {
			return val
		}
		typeName := typeHint
		if tn, ok := val["__typename"].(ir.String); ok {
			typeName = string(tn)
		}
		return ev.record(typeName, ir.Record(val), set)
	default:
		return v
	}
}

// collect flattens a selection set into its fields, expanding fragments whose
// type condition applies to typeName and dropping fields excluded by @skip or
// @include. Fields are returned in document order.
func (ev *evaluation) collect(set ast.SelectionSet, typeName string) []*ast.Field {
	var out []*ast.Field
	visited := make(map[string]bool)
	var walk func(set ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *ast.Field:
				if ev.included(s.Directives) {
					out = append(out, s)
				}
			case *ast.InlineFragment:
				if ev.included(s.Directives) && applies(s.TypeCondition, typeName) {
					walk(s.SelectionSet)
				}
			case *ast.FragmentSpread:
				if visited[s.Name] || !ev.included(s.Directives) {
					continue
				}
				visited[s.Name] = true
				frag := ev.doc.Fragments.ForName(s.Name)
				if frag != nil && applies(frag.TypeCondition, typeName) {
					walk(frag.SelectionSet)
				}
			}
		}
	}
	walk(set)
	return out
}

func applies(condition, typeName string) bool {
	return condition == "" || typeName == "" || condition == typeName
}

func (ev *evaluation) included(directives ast.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil && ev.directiveIf(d) {
		return false
	}
	if d := directives.ForName("include"); d != nil && !ev.directiveIf(d) {
		return false
	}
	return true
}

func (ev *evaluation) directiveIf(d *ast.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	v, err := arg.Value.Value(ev.vars)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
