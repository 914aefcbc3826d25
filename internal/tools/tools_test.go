package tools

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelectionKeepsOrder(t *testing.T) {
	sel, err := ParseSelection([]byte(`{"Security":["bandit"],"Unit Tests":["pytest"],"Code Quality":["pylint","flake8"]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Security", "Unit Tests", "Code Quality"}, sel.Names())
	assert.Equal(t, 4, sel.Count())

	ids, ok := sel.Get("Code Quality")
	require.True(t, ok)
	assert.Equal(t, []string{"pylint", "flake8"}, ids)
}

func TestParseSelectionRepeatedKey(t *testing.T) {
	sel, err := ParseSelection([]byte(`{"Unit Tests":["unittest"],"Security":["bandit"],"Unit Tests":["pytest"]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Unit Tests", "Security"}, sel.Names())
	ids, _ := sel.Get("Unit Tests")
	assert.Equal(t, []string{"pytest"}, ids)
}

func TestParseSelectionNullAndEmpty(t *testing.T) {
	sel, err := ParseSelection([]byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, sel)

	sel, err = ParseSelection([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, sel)

	sel, err = ParseSelection([]byte(`{"Unit Tests":null}`))
	require.NoError(t, err)
	assert.True(t, sel.Has("Unit Tests"))
	assert.Equal(t, 0, sel.Count())
}

func TestParseSelectionRejectsNonObject(t *testing.T) {
	_, err := ParseSelection([]byte(`["pytest"]`))
	assert.Error(t, err)

	_, err = ParseSelection([]byte(`{"Unit Tests":"pytest"}`))
	assert.Error(t, err)
}

func TestSelectionMarshalRoundTripsOrder(t *testing.T) {
	sel := Selection{
		{Name: CategorySecurity, Tools: []string{"safety"}},
		{Name: CategoryUnitTests},
	}
	out, err := json.Marshal(sel)
	require.NoError(t, err)
	assert.Equal(t, `{"Security":["safety"],"Unit Tests":[]}`, string(out))
}

func TestKindOf(t *testing.T) {
	for _, name := range []string{CategoryDeploy, CategoryDeployOptions, CategoryAWSServices, CategoryCustomDeployment} {
		k, ok := KindOf(name)
		assert.True(t, ok, name)
		assert.Equal(t, KindDeploy, k, name)
	}

	k, ok := KindOf(CategoryCodeQuality)
	require.True(t, ok)
	assert.Equal(t, "code_quality", k.Info().Job)
	assert.True(t, k.Info().AllowFailure)
	assert.Equal(t, "logs/code-quality/quality.log", k.Info().LogPath())

	_, ok = KindOf(CategoryCustomDescription)
	assert.False(t, ok)
	_, ok = KindOf("unit tests")
	assert.False(t, ok)
}

func TestLookup(t *testing.T) {
	pytest, ok := Lookup(KindUnitTests, "pytest")
	require.True(t, ok)
	assert.Equal(t, []string{"pytest", "pytest-cov", "pytest-html"}, pytest.Packages)

	_, ok = Lookup(KindSecurity, "pytest")
	assert.False(t, ok, "lookup is scoped to the kind")

	assert.Equal(t, []string{"bandit", "safety"}, Known(KindSecurity))
}

func TestNewDeployment(t *testing.T) {
	sel, err := ParseSelection([]byte(`{
		"Deploy": ["docker", "aws-lambda"],
		"Unit Tests": ["pytest"],
		"AWS Services": ["aws-lambda", "aws-ecs"],
		"Custom Deployment": ["custom-deploy", "rocket"],
		"Custom Deploy Description": ["", "ship it\nto prod"]
	}`))
	require.NoError(t, err)

	d := NewDeployment(sel)
	assert.Equal(t, []string{"docker", "aws-lambda", "aws-ecs", "custom-deploy", "rocket"}, d.Tools)
	assert.Equal(t, "ship it\nto prod", d.Description)
	assert.True(t, d.HasAWS())

	var ids []string
	for _, tool := range d.Recognized() {
		ids = append(ids, tool.ID)
	}
	assert.Equal(t, []string{"docker", "aws-lambda", "aws-ecs", "custom-deploy"}, ids)

	var keys []string
	for _, v := range d.Variables() {
		keys = append(keys, v.Key)
	}
	assert.Equal(t, []string{"LAMBDA_FUNCTION_NAME", "ECR_REPOSITORY", "ECS_CLUSTER", "ECS_SERVICE"}, keys)
	assert.Equal(t, []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"}, d.Secrets())
}

func TestDeploymentWithoutAWS(t *testing.T) {
	d := NewDeployment(Selection{{Name: CategoryDeploy, Tools: []string{"heroku"}}})
	assert.False(t, d.HasAWS())
	assert.Empty(t, d.Variables())
	assert.Equal(t, []string{"HEROKU_API_KEY", "HEROKU_APP_NAME"}, d.Secrets())
}

func TestCustomDeployScript(t *testing.T) {
	tool, ok := Lookup(KindDeploy, "custom-deploy")
	require.True(t, ok)

	lines := tool.Lines(Fragment{Log: "logs/deploy/deploy.log", Dir: "deploy", Description: "it's\nlive"})
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, `echo 'Custom deployment: it'\''s live' >> logs/deploy/deploy.log`)

	lines = tool.Lines(Fragment{Log: "logs/deploy/deploy.log", Dir: "deploy"})
	assert.Contains(t, strings.Join(lines, "\n"), "No description provided")
}
