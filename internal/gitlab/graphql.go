package gitlab

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Khan/genqlient/graphql"
)

const groupAccessQuery = `query GroupAccess($fullPath: ID!) {
  group(fullPath: $fullPath) {
    id
    name
    fullPath
    webUrl
  }
}`

// Group is the subset of a GitLab group the service checks.
type Group struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullPath string `json:"fullPath"`
	WebURL   string `json:"webUrl"`
}

// VerifyGroup checks through the GraphQL API that the token can see the
// configured group.
func (c *Client) VerifyGroup(ctx context.Context) (*Group, error) {
	slog.Debug("Executing GraphQL query", "operation", "GroupAccess", "group", c.cfg.GroupPath)

	var data struct {
		Group *Group `json:"group"`
	}
	req := &graphql.Request{
		OpName:    "GroupAccess",
		Query:     groupAccessQuery,
		Variables: map[string]any{"fullPath": c.cfg.GroupPath},
	}
	resp := &graphql.Response{Data: &data}

	if err := c.gql.MakeRequest(ctx, req, resp); err != nil {
		return nil, &APIError{Op: "verify group", Err: err}
	}
	if data.Group == nil {
		return nil, &APIError{Op: "verify group", Err: fmt.Errorf("group %q not visible to this token", c.cfg.GroupPath)}
	}
	return data.Group, nil
}
