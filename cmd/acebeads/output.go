package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// printJSON writes v to stdout as indented JSON, matching spec.md
// Section 7's "JSON mode always returns ... a success object" contract.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// errorObject is the shape of a JSON-mode error response
// (spec.md Section 7: "{ error: { code, message } }").
type errorObject struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func printJSONError(code int, err error) {
	var obj errorObject
	obj.Error.Code = code
	obj.Error.Message = err.Error()
	data, marshalErr := json.MarshalIndent(obj, "", "  ")
	if marshalErr != nil {
		fmt.Fprintln(os.Stderr, "acebeads:", err)
		return
	}
	fmt.Fprintln(os.Stdout, string(data))
}
