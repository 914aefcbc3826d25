package tools

import "strings"

var deployCategories = map[string]bool{
	CategoryDeploy:           true,
	CategoryDeployOptions:    true,
	CategoryAWSServices:      true,
	CategoryCustomDeployment: true,
}

// IsDeployCategory reports whether name is one of the keys merged into a Deployment.
func IsDeployCategory(name string) bool {
	return deployCategories[name]
}

// Deployment is the normalized deployment part of a selection: the tools of every
// deploy-related category, in selection order and without duplicates, plus the
// free-text custom deployment description.
type Deployment struct {
	Tools       []string
	Description string
}

// NewDeployment assembles the Deployment of sel.
func NewDeployment(sel Selection) Deployment {
	var d Deployment
	seen := make(map[string]bool)
	for _, c := range sel {
		if c.Name == CategoryCustomDescription {
			for _, text := range c.Tools {
				if text = strings.TrimSpace(text); text != "" {
					d.Description = text
					break
				}
			}
			continue
		}
		if !IsDeployCategory(c.Name) {
			continue
		}
		for _, id := range c.Tools {
			if seen[id] {
				continue
			}
			seen[id] = true
			d.Tools = append(d.Tools, id)
		}
	}
	return d
}

// Recognized returns the catalog entries of the deployment tools, dropping unknown ids.
func (d Deployment) Recognized() []Tool {
	var out []Tool
	for _, id := range d.Tools {
		if t, ok := Lookup(KindDeploy, id); ok {
			out = append(out, t)
		}
	}
	return out
}

// HasAWS reports whether any selected deployment tool targets AWS.
func (d Deployment) HasAWS() bool {
	for _, t := range d.Recognized() {
		if t.AWS {
			return true
		}
	}
	return false
}

// Variables returns the pipeline variable placeholders of the recognized tools, in
// tool order.
func (d Deployment) Variables() []Variable {
	var out []Variable
	seen := make(map[string]bool)
	for _, t := range d.Recognized() {
		for _, v := range t.Variables {
			if seen[v.Key] {
				continue
			}
			seen[v.Key] = true
			out = append(out, v)
		}
	}
	return out
}

// Secrets returns the CI/CD variable names the recognized tools expect to be
// configured in the project settings.
func (d Deployment) Secrets() []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range d.Recognized() {
		for _, s := range t.Secrets {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
