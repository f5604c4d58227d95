// Package company caches employer research used to ground suggest, refine
// and copilot prompts. Fetching fresh intel is a regular orchestrator task;
// this package only reads and writes the cache.
package company

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/models"
)

// cacheTTL is how long a research document stays fresh.
const cacheTTL = 7 * 24 * time.Hour

// Loader reads and writes the company context cache.
type Loader struct {
	store docstore.Store
}

// NewLoader creates a loader over the given store.
func NewLoader(store docstore.Store) *Loader {
	return &Loader{store: store}
}

// Key normalizes a company name into a cache key.
func Key(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), "-")
}

// Cached returns the fresh cached context for a company, or nil when absent
// or stale. Never an error path for enrichment: a missing cache simply means
// the prompt goes out ungrounded.
func (l *Loader) Cached(ctx context.Context, companyName string) (*models.CompanyContext, error) {
	if strings.TrimSpace(companyName) == "" {
		return nil, nil
	}
	doc, err := docstore.GetTyped[models.CompanyContext](ctx, l.store, models.CollectionCompanies, Key(companyName))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load company context: %w", err)
	}
	if time.Since(doc.FetchedAt) > cacheTTL {
		return nil, nil
	}
	return doc, nil
}

// Save stores a refreshed context document.
func (l *Loader) Save(ctx context.Context, doc *models.CompanyContext) error {
	if doc.ID == "" {
		doc.ID = Key(doc.Name)
	}
	now := time.Now().UTC()
	if doc.FetchedAt.IsZero() {
		doc.FetchedAt = now
	}
	doc.UpdatedAt = now
	doc.SchemaVersion = models.SchemaVersion
	if err := l.store.Save(ctx, models.CollectionCompanies, doc.ID, doc); err != nil {
		return fmt.Errorf("save company context: %w", err)
	}
	return nil
}

// ConfirmName marks the cached context as user-confirmed.
func (l *Loader) ConfirmName(ctx context.Context, companyName string, approved bool) error {
	return docstore.UpdateTyped(ctx, l.store, models.CollectionCompanies, Key(companyName),
		func(doc *models.CompanyContext, exists bool) error {
			if !exists {
				doc.ID = Key(companyName)
				doc.Name = companyName
				doc.SchemaVersion = models.SchemaVersion
			}
			doc.NameConfirmed = approved
			doc.UpdatedAt = time.Now().UTC()
			return nil
		})
}

// FormatForPrompt renders the context as a compact prompt section.
func FormatForPrompt(doc *models.CompanyContext) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", doc.Name)
	if doc.Profile.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", doc.Profile.Website)
	}
	if doc.Profile.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", doc.Profile.Industry)
	}
	if doc.Profile.Size != "" {
		fmt.Fprintf(&b, "Size: %s\n", doc.Profile.Size)
	}
	if doc.Profile.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", doc.Profile.Summary)
	}
	if len(doc.Profile.Culture) > 0 {
		fmt.Fprintf(&b, "Culture: %s\n", strings.Join(doc.Profile.Culture, ", "))
	}
	if len(doc.Jobs) > 0 {
		b.WriteString("Open roles:\n")
		for _, j := range doc.Jobs {
			fmt.Fprintf(&b, "- %s (%s)\n", j.Title, j.Location)
		}
	}
	return b.String()
}
