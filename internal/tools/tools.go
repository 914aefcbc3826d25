// Package tools models the caller's tool selection and the catalog of tools the
// pipeline generator knows how to wire into a job.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Category names accepted in a selection. They are matched case-sensitively.
const (
	CategoryUnitTests   = "Unit Tests"
	CategoryE2ETests    = "End-to-End Tests"
	CategoryCodeQuality = "Code Quality"
	CategorySecurity    = "Security"

	CategoryDeploy            = "Deploy"
	CategoryDeployOptions     = "Deploy Options"
	CategoryAWSServices       = "AWS Services"
	CategoryCustomDeployment  = "Custom Deployment"
	CategoryCustomDescription = "Custom Deploy Description"
)

// Category is one entry of a Selection.
type Category struct {
	Name  string
	Tools []string
}

// Selection maps category names to tool ids while keeping the order the caller
// supplied them in. Generation output follows this order.
type Selection []Category

// Get returns the tools of the named category.
func (s Selection) Get(name string) ([]string, bool) {
	for _, c := range s {
		if c.Name == name {
			return c.Tools, true
		}
	}
	return nil, false
}

// Has reports whether the named category is present.
func (s Selection) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Set replaces the tools of an existing category in place or appends a new one.
func (s *Selection) Set(name string, tools []string) {
	for i := range *s {
		if (*s)[i].Name == name {
			(*s)[i].Tools = tools
			return
		}
	}
	*s = append(*s, Category{Name: name, Tools: tools})
}

// Names returns the category names in order.
func (s Selection) Names() []string {
	names := make([]string, 0, len(s))
	for _, c := range s {
		names = append(names, c.Name)
	}
	return names
}

// Count is the total number of tool ids across all categories.
func (s Selection) Count() int {
	n := 0
	for _, c := range s {
		n += len(c.Tools)
	}
	return n
}

// UnmarshalJSON decodes a JSON object of string arrays, keeping key order.
// A repeated key keeps its first position and takes the last value.
func (s *Selection) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("tool selection must be a JSON object, got %v", tok)
	}

	out := Selection{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected tool selection key %v", keyTok)
		}
		var ids []string
		if err := dec.Decode(&ids); err != nil {
			return fmt.Errorf("tools for category %q: %w", key, err)
		}
		out.Set(key, ids)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// MarshalJSON encodes the selection as a JSON object in selection order.
func (s Selection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		ids := c.Tools
		if ids == nil {
			ids = []string{}
		}
		val, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseSelection decodes a JSON tool selection.
func ParseSelection(data []byte) (Selection, error) {
	var s Selection
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse tool selection: %w", err)
	}
	return s, nil
}
