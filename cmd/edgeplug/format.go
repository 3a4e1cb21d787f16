package main

import (
	"encoding/json"
	"fmt"
)

// fmtValue renders plugin output data for the terminal, preferring JSON.
func fmtValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
