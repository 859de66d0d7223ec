package planparse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskkern/taskkernd/internal/planparse"
)

const linearPlan = `
**Goal:** Ship the feature

| Task Group | Tasks | Notes |
|---|---|---|
| Group 1 | 1 | setup |
| Group 2 | 2 | build on setup |
| Group 3 | 3 | ship |

### Task 1: Set up scaffolding
Do the setup work.

### Task 2: Build the feature
Depends on setup.

### Task 3: Ship it
Depends on build.
`

func TestParseMarkdownLinearPlan(t *testing.T) {
	p, err := planparse.Parse(linearPlan)
	require.NoError(t, err)
	assert.Equal(t, "Ship the feature", p.Goal)
	require.Len(t, p.Tasks, 3)

	assert.Empty(t, p.Tasks["1"].Dependencies)
	assert.Equal(t, []string{"1"}, p.Tasks["2"].Dependencies)
	assert.Equal(t, []string{"2"}, p.Tasks["3"].Dependencies)
	assert.Equal(t, "Set up scaffolding", p.Tasks["1"].Description)
	assert.Contains(t, p.Tasks["1"].Instructions, "Do the setup work.")
}

func TestParseWithoutGoalTokenIsNotMarkdownForm(t *testing.T) {
	doc := `
| Task Group | Tasks | Notes |
|---|---|---|
| Group 1 | 1 | setup |

### Task 1
body
`
	p, err := planparse.Parse(doc)
	// No "**Goal:**" token and no "| Task Group |" detection path matters:
	// this doc lacks **Goal:** entirely, so it is NOT markdown-form and
	// falls through to the JSON fallback, which fails since there is no
	// JSON block either.
	require.Error(t, err)
	assert.Nil(t, p)
}

func TestParseMarkdownPhantomTaskRejected(t *testing.T) {
	doc := `
**Goal:** Ship it

| Task Group | Tasks | Notes |
|---|---|---|
| Group 1 | 1, 2 | setup |

### Task 1
body

### Task2
misspelled heading, missing space before colon-less id
`
	_, err := planparse.Parse(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2")
	assert.Contains(t, err.Error(), "typo")
}

func TestParseMarkdownOrphanTaskRejected(t *testing.T) {
	doc := `
**Goal:** Ship it

| Task Group | Tasks | Notes |
|---|---|---|
| Group 1 | 1 | setup |

### Task 1
body

### Task 2
orphan, never appears in a group row
`
	_, err := planparse.Parse(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orphan")
	assert.Contains(t, err.Error(), "2")
}

func TestParseMarkdownFanInDependencies(t *testing.T) {
	doc := `
**Goal:** Fan in

| Task Group | Tasks | Notes |
|---|---|---|
| Group 1 | a, b | parallel |
| Group 2 | c | fan-in |

### Task a
### Task b
### Task c
`
	p, err := planparse.Parse(doc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, p.Tasks["c"].Dependencies)
	assert.Empty(t, p.Tasks["a"].Dependencies)
	assert.Empty(t, p.Tasks["b"].Dependencies)
}

func TestParseJSONFallback(t *testing.T) {
	doc := "Here is the plan:\n```json\n" + `{
  "goal": "Do the thing",
  "tasks": {
    "1": {"description": "first", "dependencies": []},
    "2": {"description": "second", "dependencies": ["1"]}
  }
}` + "\n```\n"

	p, err := planparse.Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "Do the thing", p.Goal)
	assert.Equal(t, []string{"1"}, p.Tasks["2"].Dependencies)
	assert.Equal(t, planparse.DefaultTimeoutSeconds(), p.Tasks["1"].TimeoutSeconds)
}

func TestParseJSONFallbackSchemaViolation(t *testing.T) {
	doc := "```json\n" + `{"goal": "x", "tasks": {"1": {"dependencies": []}}}` + "\n```"
	_, err := planparse.Parse(doc)
	require.Error(t, err)
}

func TestParseCycleRejected(t *testing.T) {
	doc := "```json\n" + `{
  "goal": "cycle",
  "tasks": {
    "A": {"description": "a", "dependencies": ["B"]},
    "B": {"description": "b", "dependencies": ["A"]}
  }
}` + "\n```"
	_, err := planparse.Parse(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestParseMissingDependencyRejected(t *testing.T) {
	doc := "```json\n" + `{
  "goal": "missing dep",
  "tasks": {
    "1": {"description": "a", "dependencies": ["ghost"]}
  }
}` + "\n```"
	_, err := planparse.Parse(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestParseEmptyDocument(t *testing.T) {
	_, err := planparse.Parse("   ")
	require.ErrorIs(t, err, planparse.ErrEmptyDocument)
}

func TestValidateOnlyDoesNotRequireResult(t *testing.T) {
	require.NoError(t, planparse.Validate(linearPlan))
}
