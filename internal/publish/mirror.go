package publish

import (
	"context"
	"fmt"

	"github.com/malwarescan/oracle/internal/apierr"
	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/storage"
)

// Mirror returns the currently active MarkdownVersion for a (domain, path)
// pair, the authoritative truth source for that page.
func (p *Publisher) Mirror(ctx context.Context, domainName, path string) (*domain.MarkdownVersion, error) {
	mv, err := p.store.GetActiveMarkdown(ctx, domainName, path)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, apierr.New(apierr.NotFound, fmt.Sprintf("no active mirror for %s/%s", domainName, path))
		}
		return nil, fmt.Errorf("publish: mirror: %w", err)
	}
	return mv, nil
}
