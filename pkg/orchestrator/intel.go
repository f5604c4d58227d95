package orchestrator

import (
	"context"
	"time"

	"github.com/hirepilot/hirepilot/pkg/models"
	"github.com/hirepilot/hirepilot/pkg/services"
)

// runCompanyIntel researches an employer with search grounding and refreshes
// the company context cache. The grounded prompt never carries a native
// response schema; the engine parses and validates the text output post-hoc.
func (o *Orchestrator) runCompanyIntel(ctx context.Context, req *TaskRequest) (*TaskResult, error) {
	name := req.Str(CtxCompanyName)
	location := req.Str(CtxLocation)
	if name == "" {
		job, err := o.ownedJob(ctx, req)
		if err != nil {
			return nil, err
		}
		name = job.Intake.CompanyName
		location = job.Intake.Location
	}
	if name == "" {
		return nil, services.NewValidationError(CtxCompanyName, "missing company name")
	}

	if !req.Bool(CtxForceRefresh) {
		cached, err := o.companies.Cached(ctx, name)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return &TaskResult{
				TaskType:  req.TaskType,
				Refreshed: false,
				Payload:   companyPayload(cached),
			}, nil
		}
	}

	outcome, err := o.engine.Invoke(ctx, Invocation{
		UserID:   req.UserID,
		JobID:    req.Str(CtxJobID),
		TaskType: models.TaskCompanyIntel,
		Vars: map[string]any{
			"CompanyName": name,
			"Location":    location,
		},
	})
	if err != nil {
		return nil, err
	}
	if outcome.Failure != nil {
		outcome.Settle(ctx)
		return &TaskResult{TaskType: req.TaskType, Failure: outcome.Failure, Credits: outcome.Credits}, nil
	}

	doc := parseCompanyContext(name, outcome.Payload)
	doc.Provider = outcome.Vendor
	doc.Model = outcome.Model
	doc.FetchedAt = time.Now().UTC()
	if err := o.companies.Save(ctx, doc); err != nil {
		outcome.Release(ctx)
		return nil, err
	}
	outcome.Settle(ctx)

	return &TaskResult{
		TaskType:  req.TaskType,
		Refreshed: true,
		Payload:   companyPayload(doc),
		Credits:   outcome.Credits,
	}, nil
}

// parseCompanyContext maps the intel payload onto the cache document. The
// requested name stays the identity; a renamed result would otherwise orphan
// the cache entry.
func parseCompanyContext(requestedName string, payload map[string]any) *models.CompanyContext {
	doc := &models.CompanyContext{Name: requestedName}
	if profile, ok := payload["profile"].(map[string]any); ok {
		doc.Profile.Website, _ = profile["website"].(string)
		doc.Profile.Industry, _ = profile["industry"].(string)
		doc.Profile.Size, _ = profile["size"].(string)
		doc.Profile.Summary, _ = profile["summary"].(string)
		if culture, ok := profile["culture"].([]any); ok {
			for _, c := range culture {
				if s, ok := c.(string); ok && s != "" {
					doc.Profile.Culture = append(doc.Profile.Culture, s)
				}
			}
		}
	}
	if jobs, ok := payload["jobs"].([]any); ok {
		for _, j := range jobs {
			m, ok := j.(map[string]any)
			if !ok {
				continue
			}
			title, _ := m["title"].(string)
			if title == "" {
				continue
			}
			listing := models.DiscoveredJob{Title: title}
			listing.Location, _ = m["location"].(string)
			listing.URL, _ = m["url"].(string)
			doc.Jobs = append(doc.Jobs, listing)
		}
	}
	return doc
}

func companyPayload(doc *models.CompanyContext) map[string]any {
	return map[string]any{
		"name":          doc.Name,
		"nameConfirmed": doc.NameConfirmed,
		"profile":       doc.Profile,
		"jobs":          doc.Jobs,
	}
}
