package loadinput

import (
	"encoding/json"
	"fmt"

	"github.com/cheshbon/cheshbon/internal/bindings"
)

func unmarshalBindings(data []byte) (*bindings.Bindings, error) {
	var b bindings.Bindings
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("loadinput: invalid bindings json: %w", err)
	}
	return &b, nil
}

func unmarshalRawSchema(data []byte) (*bindings.RawSchema, error) {
	var s bindings.RawSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("loadinput: invalid raw_schema json: %w", err)
	}
	return &s, nil
}
