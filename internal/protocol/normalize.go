package protocol

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// NormalizeParams converts outgoing call arguments into plain JSON values
// (float64, string, bool, nil, []any, map[string]any). Byte slices become
// base64 strings.
func NormalizeParams(params []any) ([]any, error) {
	out := make([]any, len(params))
	for i, param := range params {
		value, err := NormalizeValue(param)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		out[i] = value
	}
	return out, nil
}

// NormalizeValue converts one value into its JSON value tree.
func NormalizeValue(v any) (any, error) {
	if pv, err := structpb.NewValue(v); err == nil {
		return pv.AsInterface(), nil
	}

	// Typed slices, structs and other encodable values take the JSON detour.
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value of type %T is not JSON-compatible: %w", v, err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("value of type %T is not JSON-compatible: %w", v, err)
	}
	pv, err := structpb.NewValue(generic)
	if err != nil {
		return nil, fmt.Errorf("value of type %T is not JSON-compatible: %w", v, err)
	}
	return pv.AsInterface(), nil
}
