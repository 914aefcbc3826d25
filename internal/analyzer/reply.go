package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/techopsonedev/onedev/apimodels"
)

// modelReply is the part of the model's answer the analyzer trusts.
type modelReply struct {
	TestsExecuted int                    `json:"tests_executed" jsonschema:"minimum=0"`
	Failures      int                    `json:"failures" jsonschema:"minimum=0"`
	Suggestions   []apimodels.Suggestion `json:"suggestions" jsonschema:"minItems=1"`
}

var (
	replySchemaOnce sync.Once
	replySchema     *jsonschema.Schema
	replySchemaErr  error
)

// compiledReplySchema reflects modelReply into a JSON Schema and compiles it.
func compiledReplySchema() (*jsonschema.Schema, error) {
	replySchemaOnce.Do(func() {
		r := &invopop.Reflector{
			AllowAdditionalProperties: true,
			DoNotReference:            true,
			Anonymous:                 true,
		}
		raw, err := json.Marshal(r.Reflect(&modelReply{}))
		if err != nil {
			replySchemaErr = fmt.Errorf("marshaling reply schema: %w", err)
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			replySchemaErr = fmt.Errorf("unmarshaling reply schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("reply.json", doc); err != nil {
			replySchemaErr = fmt.Errorf("adding reply schema: %w", err)
			return
		}
		replySchema, replySchemaErr = c.Compile("reply.json")
	})
	return replySchema, replySchemaErr
}

var fences = regexp.MustCompile("```[a-zA-Z]*\n|```")

// stripFences removes markdown code fences such as ```json ... ```.
func stripFences(text string) string {
	return strings.TrimSpace(fences.ReplaceAllString(text, ""))
}

// firstObject returns the first balanced {...} substring of text that is valid JSON.
func firstObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := objectEnd(text, start); ok && json.Valid([]byte(text[start:end])) {
			return text[start:end], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// objectEnd finds the index just past the brace closing the one at start,
// skipping braces inside JSON strings.
func objectEnd(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

var errNoObject = errors.New("reply contains no JSON object")

// parseReply extracts and validates the structured part of a model reply.
func parseReply(content string) (*modelReply, error) {
	obj, ok := firstObject(stripFences(content))
	if !ok {
		return nil, errNoObject
	}

	var doc any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	schema, err := compiledReplySchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("reply does not match schema: %w", err)
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(obj), &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	for i, s := range reply.Suggestions {
		if strings.TrimSpace(s.Category) == "" || strings.TrimSpace(s.Recommendation) == "" {
			return nil, fmt.Errorf("suggestion %d is blank", i)
		}
	}
	return &reply, nil
}
