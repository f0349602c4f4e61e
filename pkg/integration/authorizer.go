package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/blueragesoftware/backend/pkg/models"
)

// ToolsMissingAuthenticationError fails an execution whose requested tools
// are not all connected by the owning user. Partial tool availability is not
// accepted: steps may depend on every requested tool.
type ToolsMissingAuthenticationError struct {
	Missing []string
}

func (e *ToolsMissingAuthenticationError) Error() string {
	return fmt.Sprintf("Tools missing authentication: %s", strings.Join(e.Missing, ", "))
}

// Authorizer checks requested tool slugs against the supported-toolkit
// allowlist and the user's live connections on the integration platform.
type Authorizer struct {
	client Client
	// supported maps an uppercase toolkit slug to its auth config id.
	supported map[string]string
}

func NewAuthorizer(client Client, supported map[string]string) *Authorizer {
	normalized := make(map[string]string, len(supported))
	for slug, authConfigID := range supported {
		normalized[strings.ToUpper(slug)] = authConfigID
	}
	return &Authorizer{client: client, supported: normalized}
}

// AuthorizeTools resolves the requested slugs against live authorization
// state. It returns every requested tool with its connection handle, or a
// ToolsMissingAuthenticationError naming each slug the user has not
// connected. Always queried live: connections can be revoked between agent
// creation and task execution.
func (a *Authorizer) AuthorizeTools(ctx context.Context, userID string, slugs []string) ([]models.AuthorizedTool, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	var supported []string
	for _, slug := range slugs {
		if _, ok := a.supported[strings.ToUpper(slug)]; ok {
			supported = append(supported, strings.ToUpper(slug))
		}
	}

	var accounts []ConnectedAccount
	if len(supported) > 0 {
		var err error
		accounts, err = a.client.ListConnectedAccounts(ctx, userID, supported)
		if err != nil {
			return nil, err
		}
	}

	connected := make(map[string]ConnectedAccount, len(accounts))
	for _, account := range accounts {
		connected[account.ToolkitSlug] = account
	}

	var missing []string
	for _, slug := range slugs {
		if _, ok := connected[strings.ToUpper(slug)]; !ok {
			missing = append(missing, slug)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &ToolsMissingAuthenticationError{Missing: missing}
	}

	// Toolkit metadata lookups are independent; fetch them concurrently and
	// fail the whole authorization on the first error.
	tools := make([]models.AuthorizedTool, len(slugs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, slug := range slugs {
		i, slug := i, strings.ToUpper(slug)
		g.Go(func() error {
			toolkit, err := a.client.GetToolkit(gctx, slug)
			if err != nil {
				return err
			}
			account := connected[slug]
			mu.Lock()
			tools[i] = models.AuthorizedTool{
				Toolkit:      toolkit,
				AuthConfigID: a.supported[slug],
				ConnectionID: account.ConnectionID,
				Status:       account.Status,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tools, nil
}
