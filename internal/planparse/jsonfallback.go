package planparse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fencedBlockRe matches fenced code blocks, capturing the language tag (if
// any) and the body.
var fencedBlockRe = regexp.MustCompile("(?s)```([a-zA-Z0-9]*)\\n(.*?)```")

const planSchemaJSON = `{
  "type": "object",
  "required": ["goal", "tasks"],
  "properties": {
    "goal": {"type": "string"},
    "tasks": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["description"],
        "properties": {
          "description": {"type": "string"},
          "dependencies": {
            "type": "array",
            "items": {"type": "string"}
          },
          "timeout_seconds": {"type": "integer", "minimum": 1},
          "instructions": {"type": "string"},
          "role": {"type": "string"}
        }
      }
    }
  }
}`

var planSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("plan.json", strings.NewReader(planSchemaJSON)); err != nil {
		panic(fmt.Sprintf("planparse: invalid embedded plan schema: %v", err))
	}
	s, err := c.Compile("plan.json")
	if err != nil {
		panic(fmt.Sprintf("planparse: invalid embedded plan schema: %v", err))
	}
	planSchema = s
}

// ExtractJSONBlock finds the first fenced code block in doc whose contents
// parse as a JSON object, returning its raw bytes.
func ExtractJSONBlock(doc string) ([]byte, bool) {
	for _, m := range fencedBlockRe.FindAllStringSubmatch(doc, -1) {
		body := strings.TrimSpace(m[2])
		if body == "" {
			continue
		}
		if !json.Valid([]byte(body)) {
			continue
		}
		var probe any
		if err := json.Unmarshal([]byte(body), &probe); err != nil {
			continue
		}
		if _, ok := probe.(map[string]any); !ok {
			continue
		}
		return []byte(body), true
	}
	return nil, false
}

// ParseJSONFallback parses the embedded-JSON fallback form: a fenced code
// block containing an object matching the PlanDefinition schema.
func ParseJSONFallback(doc string) (*PlanDefinition, error) {
	raw, ok := ExtractJSONBlock(doc)
	if !ok {
		return nil, fmt.Errorf("plan document is neither structured Markdown nor embedded JSON")
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("embedded JSON plan: %w", err)
	}
	if err := planSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("embedded JSON plan does not match the plan schema: %w", err)
	}

	var p PlanDefinition
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("embedded JSON plan: %w", err)
	}

	p.TaskOrder = make([]string, 0, len(p.Tasks))
	for id, t := range p.Tasks {
		if t.TimeoutSeconds <= 0 {
			t.TimeoutSeconds = defaultTimeoutSeconds
			p.Tasks[id] = t
		}
		p.TaskOrder = append(p.TaskOrder, id)
	}
	sort.Strings(p.TaskOrder)

	if err := ValidateDAG(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
