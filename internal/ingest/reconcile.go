package ingest

import (
	"context"
	"strings"

	"github.com/aryankumar/lomsync/internal/catalog"
)

// Lister lists stored resources; catalog.Repository satisfies it
type Lister interface {
	List(ctx context.Context) ([]catalog.Resource, error)
}

// Reconcile finds items recorded as timed out or cancelled that were stored
// anyway, because cancellation reached them after creation committed. Matches
// are made on trimmed title and locator.
func Reconcile(ctx context.Context, repo Lister, batch *BatchResult) ([]catalog.Resource, error) {
	type key struct{ title, locator string }

	wanted := make(map[key]bool)
	for _, o := range batch.Outcomes {
		if o.Kind == OutcomeTimedOut || o.Kind == OutcomeCancelled {
			wanted[key{strings.TrimSpace(o.Item.Title), strings.TrimSpace(o.Item.Locator)}] = true
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	all, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var found []catalog.Resource
	for _, r := range all {
		if wanted[key{r.Title, r.Locator}] {
			found = append(found, r)
		}
	}
	return found, nil
}
