package executor

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// renderCommand evaluates a task's command template with the resolved
// artifact paths bound as `in.<key>` and `out.<key>` variables. The engine
// never inspects the resulting string beyond this substitution; tool flags
// stay opaque.
func renderCommand(expr hcl.Expression, inputs, outputs map[string]string) (string, error) {
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"in":  pathsToObject(inputs),
			"out": pathsToObject(outputs),
		},
	}

	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", fmt.Errorf("failed to evaluate command template: %w", diags)
	}

	strVal, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("command template must produce a string: %w", err)
	}
	if strVal.IsNull() {
		return "", fmt.Errorf("command template produced a null value")
	}
	return strVal.AsString(), nil
}

// pathsToObject converts a key→path map into a cty object value. An empty
// map becomes an empty object so `in`/`out` are always defined during
// evaluation.
func pathsToObject(paths map[string]string) cty.Value {
	if len(paths) == 0 {
		return cty.EmptyObjectVal
	}
	vals := make(map[string]cty.Value, len(paths))
	for k, v := range paths {
		vals[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(vals)
}
