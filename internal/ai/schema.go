package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema validates JSON documents produced by a model.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustSchema compiles a JSON schema and panics if it is malformed. Schemas
// are package constants, so a failure is a programming error.
func MustSchema(name, source string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("compile %s schema: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

// Decode extracts the JSON object from a model reply, validates it and
// unmarshals it into v. Every failure is an Upstream error.
func (s *Schema) Decode(reply string, v any) error {
	doc := ExtractJSON(reply)
	if doc == "" {
		return upstream("ai", "parse "+s.name, fmt.Errorf("reply contains no JSON object"))
	}

	result, err := s.schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return upstream("ai", "parse "+s.name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return upstream("ai", "validate "+s.name, fmt.Errorf("%s", strings.Join(msgs, "; ")))
	}

	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return upstream("ai", "decode "+s.name, err)
	}
	return nil
}

// ExtractJSON returns the outermost JSON object in s, tolerating markdown
// code fences and prose around it.
func ExtractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
