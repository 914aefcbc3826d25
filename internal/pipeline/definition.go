package pipeline

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/techopsonedev/onedev/internal/tools"
)

// Stage names of every generated pipeline, in execution order.
const (
	StageTest       = "test"
	StageUploadLogs = "upload-logs"
	StageDeploy     = "deploy"
)

// Trailing job names.
const (
	JobUploadAllLogs    = "upload_all_logs"
	JobDeployProduction = "deploy_production"
)

// Definition is a generated .gitlab-ci.yml document.
type Definition struct {
	Image        string
	Stages       []string
	Variables    []tools.Variable
	CachePaths   []string
	BeforeScript []string
	Tags         []string
	Jobs         []Job
}

type Artifacts struct {
	When     string
	ExpireIn string
	Paths    []string
}

type Environment struct {
	Name string
	URL  string
}

// Job is one entry of the definition. Zero-valued optional fields are omitted
// from the YAML output, except Dependencies on jobs that declare them.
type Job struct {
	Name            string
	Stage           string
	Image           string
	Script          []string
	AfterScript     []string
	Artifacts       *Artifacts
	AllowFailure    bool
	When            string
	Only            []string
	Dependencies    []string
	HasDependencies bool
	Environment     *Environment
}

// Job returns the named job.
func (d *Definition) Job(name string) (Job, bool) {
	for _, j := range d.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// JobNames lists the jobs in emission order.
func (d *Definition) JobNames() []string {
	names := make([]string, 0, len(d.Jobs))
	for _, j := range d.Jobs {
		names = append(names, j.Name)
	}
	return names
}

// Variable returns the value of a global variable.
func (d *Definition) Variable(key string) (string, bool) {
	for _, v := range d.Variables {
		if v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// MarshalYAML emits the definition as an ordered mapping so that output is
// stable across runs.
func (d *Definition) MarshalYAML() (interface{}, error) {
	root := mapping()
	add(root, "image", str(d.Image))
	add(root, "stages", strs(d.Stages))

	vars := mapping()
	for _, v := range d.Variables {
		add(vars, v.Key, str(v.Value))
	}
	add(root, "variables", vars)

	cache := mapping()
	add(cache, "paths", strs(d.CachePaths))
	add(root, "cache", cache)

	add(root, "before_script", strs(d.BeforeScript))

	def := mapping()
	add(def, "tags", strs(d.Tags))
	add(root, "default", def)

	seen := make(map[string]bool, len(d.Jobs))
	for _, j := range d.Jobs {
		if seen[j.Name] {
			return nil, fmt.Errorf("duplicate job %q", j.Name)
		}
		seen[j.Name] = true
		add(root, j.Name, j.node())
	}
	return root, nil
}

func (j Job) node() *yaml.Node {
	n := mapping()
	add(n, "stage", str(j.Stage))
	if j.Image != "" {
		add(n, "image", str(j.Image))
	}
	add(n, "script", strs(j.Script))
	if len(j.AfterScript) > 0 {
		add(n, "after_script", strs(j.AfterScript))
	}
	if j.Artifacts != nil {
		a := mapping()
		add(a, "when", str(j.Artifacts.When))
		add(a, "expire_in", str(j.Artifacts.ExpireIn))
		add(a, "paths", strs(j.Artifacts.Paths))
		add(n, "artifacts", a)
	}
	if j.AllowFailure {
		add(n, "allow_failure", boolean(true))
	}
	if j.When != "" {
		add(n, "when", str(j.When))
	}
	if len(j.Only) > 0 {
		add(n, "only", strs(j.Only))
	}
	if j.HasDependencies || len(j.Dependencies) > 0 {
		add(n, "dependencies", strs(j.Dependencies))
	}
	if j.Environment != nil {
		e := mapping()
		add(e, "name", str(j.Environment.Name))
		add(e, "url", str(j.Environment.URL))
		add(n, "environment", e)
	}
	return n
}

// YAML serializes the definition.
func (d *Definition) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode pipeline definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode pipeline definition: %w", err)
	}
	return buf.Bytes(), nil
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func add(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, str(key), value)
}

func str(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func boolean(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
}

func strs(items []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	if len(items) == 0 {
		n.Style = yaml.FlowStyle
	}
	for _, s := range items {
		n.Content = append(n.Content, str(s))
	}
	return n
}
