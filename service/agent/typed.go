package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/viant/structology/conv"
	"github.com/viant/x"

	"github.com/flowvia/flowvia/model/types"
)

// Typed adapts a strongly typed agent function to the map-based Executor
// contract. The input map is converted into *I; the returned *O is flattened
// back into a map keyed by the output struct's JSON field names.
func Typed[I, O any](fn func(ctx context.Context, input *I) (*O, error)) types.Executor {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true
	converter := conv.NewConverter(options)

	return types.ExecutorFunc(func(ctx context.Context, in map[string]interface{}) (map[string]interface{}, error) {
		input := new(I)
		if err := converter.Convert(in, input); err != nil {
			return nil, fmt.Errorf("failed to convert input into %T: %w", input, err)
		}
		output, err := fn(ctx, input)
		if err != nil {
			return nil, err
		}
		return flatten(output)
	})
}

// RegisterTyped binds a typed agent function to an agent type and records
// its input/output Go types in the registry's type registry.
func RegisterTyped[I, O any](r *Registry, agentType string, fn func(ctx context.Context, input *I) (*O, error)) {
	r.types.Register(x.NewType(reflect.TypeOf((*I)(nil)).Elem()))
	r.types.Register(x.NewType(reflect.TypeOf((*O)(nil)).Elem()))
	r.Register(agentType, Typed(fn))
}

// flatten serialises a typed output into the executor output map.
func flatten(output interface{}) (map[string]interface{}, error) {
	if output == nil {
		return map[string]interface{}{}, nil
	}
	data, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output %T: %w", output, err)
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to flatten output %T: %w", output, err)
	}
	return out, nil
}
