package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/graphcache/internal/ir"
)

func TestIsSliceEqual(t *testing.T) {
	shared := map[string]any{"x": 1}
	list := []any{1, 2}
	fn := func() {}
	n := 3

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil and map", nil, map[string]any{}, false},
		{"same map", shared, shared, true},
		{"equal primitives", 1, 1, true},
		{"different primitives", 1, 2, false},
		{"primitive and map", 1, map[string]any{}, false},
		{"different types", int64(1), 1, false},
		{"equal flat maps", map[string]any{"a": 1, "b": "x"}, map[string]any{"a": 1, "b": "x"}, true},
		{"missing key", map[string]any{"a": 1}, map[string]any{"b": 1}, false},
		{"extra key", map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}, false},
		{"different value", map[string]any{"a": 1}, map[string]any{"a": 2}, false},
		{"shared nested map", map[string]any{"n": shared}, map[string]any{"n": shared}, true},
		{"equal but distinct nested maps", map[string]any{"n": map[string]any{"x": 1}}, map[string]any{"n": map[string]any{"x": 1}}, false},
		{"shared nested slice", map[string]any{"l": list}, map[string]any{"l": list}, true},
		{"distinct nested slices", map[string]any{"l": []any{1, 2}}, map[string]any{"l": []any{1, 2}}, false},
		{"same pointer", map[string]any{"p": &n}, map[string]any{"p": &n}, true},
		{"same func", map[string]any{"f": fn}, map[string]any{"f": fn}, true},
		{"nil values", map[string]any{"e": nil}, map[string]any{"e": nil}, true},
		{"nil and absent", map[string]any{"e": nil}, map[string]any{"f": nil}, false},
		{"ir scalars", Slice{"s": ir.String("a")}, Slice{"s": ir.String("a")}, true},
		{"ir null", Slice{"s": ir.Null{}}, Slice{"s": ir.Null{}}, true},
		{"distinct ir objects", Slice{"o": ir.Object{"a": ir.Int(1)}}, Slice{"o": ir.Object{"a": ir.Int(1)}}, false},
		{"slice and plain map", Slice{"a": 1}, map[string]any{"a": 1}, true},
		{"same top-level list", list, list, true},
		{"equal distinct top-level lists", []any{1, "x"}, []any{1, "x"}, true},
		{"top-level lists of different length", []any{1}, []any{1, 2}, false},
		{"top-level lists with different element", []any{1, 2}, []any{1, 3}, false},
		{"top-level lists with distinct nested maps", []any{map[string]any{}}, []any{map[string]any{}}, false},
		{"top-level lists with shared nested map", []any{shared}, []any{shared}, true},
		{"ir arrays compared one level deep", ir.Array{ir.Int(1)}, ir.Array{ir.Int(1)}, true},
		{"lists of different types", []any{1}, []int{1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSliceEqual(tt.a, tt.b))
			assert.Equal(t, tt.want, IsSliceEqual(tt.b, tt.a))
		})
	}
}
