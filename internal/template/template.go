// Package template implements C2: resolution of a user's journal
// template, falling back to a process-wide default when the user has
// never saved an override. Grounded on the original's TemplateLoader
// (app/templates/loader.py): a cached default template plus a
// reload() that drops the cache, generalized here to also resolve a
// per-user override stored via internal/store.
package template

import (
	"context"
	"sync"

	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/store"
)

// DefaultName is the template name used when a user has no saved
// override.
const DefaultName = "Personal Journal"

// DefaultSections is the default journal template, ported from the
// original's USER_TEMPLATE (app/templates/user_template.py), trimmed of
// its author's personal sections.
var DefaultSections = []domain.TemplateSection{
	{
		Name:        "Open Reflection",
		Description: "General thoughts, daily reflections, or free-form journaling content that doesn't fit other categories",
		Aliases:     []string{"Daily Notes", "Journal", "Reflection", "General", "Miscellaneous"},
	},
	{
		Name:        "Things Done",
		Description: "Specific tasks completed, accomplishments, actions taken, or work already finished",
		Aliases:     []string{"Completed", "Accomplishments", "Activities Completed", "Work Done", "Achievements", "Finished"},
	},
	{
		Name:        "To Do",
		Description: "Future tasks, things to buy, errands to run, or actions that need to be taken",
		Aliases:     []string{"Tasks", "Todo", "Need to do", "Shopping", "Errands", "Action Items"},
	},
	{
		Name:        "Events",
		Description: "Important events, meetings, appointments, dates, deadlines, or scheduled activities with specific times",
		Aliases:     []string{"Schedule", "Meetings", "Appointments", "Important Dates", "Calendar", "Deadlines"},
	},
	{
		Name:        "Emotional State",
		Description: "Emotional state, mood, thoughts, feelings, concerns, or personal reflections",
		Aliases:     []string{"Emotions", "Mood", "Feelings", "Thoughts", "Concerns", "Worries", "Personal"},
	},
	{
		Name:        "Trading Journal",
		Description: "Actual trades made, positions opened or closed, and other investment actions taken",
		Aliases:     []string{"Trades", "Transactions", "Positions", "Investments", "Trading"},
	},
	{
		Name:        "Market Thoughts",
		Description: "Analysis, predictions, or observations about financial markets, crypto, stocks, or economic trends",
		Aliases:     []string{"Market Analysis", "Trading Ideas", "Economic Views", "Market Predictions", "Financial Outlook"},
	},
	{
		Name:        "Strategy & Planning",
		Description: "Portfolio allocation decisions, risk assessment, rebalancing plans, and other forward-looking strategy notes",
		Aliases:     []string{"Planning", "Allocation", "Risk Review", "Portfolio Strategy"},
	},
	{
		Name:        "Goals",
		Description: "Long-term goals, progress toward them, and milestones worth recording",
		Aliases:     []string{"Long Term Goals", "Milestones", "Objectives"},
	},
	{
		Name:        "Gratitude",
		Description: "Expressions of gratitude for people, events, achievements, or circumstances",
		Aliases:     []string{"Grateful", "Thankful", "Appreciation", "Blessings"},
	},
	{
		Name:        "Weekly Review",
		Description: "Retrospective notes looking back on the past week's events and decisions",
		Aliases:     []string{"Retrospective", "Week in Review"},
	},
}

// Provider resolves templates, caching the process-wide default in
// memory (the original's _cached_template) and reading per-user
// overrides from the store on every call, since overrides are rare
// writes but the default read path must stay cheap.
type Provider struct {
	store *store.Store

	mu      sync.RWMutex
	cached  *domain.UserTemplate
}

func NewProvider(s *store.Store) *Provider {
	return &Provider{store: s}
}

func (p *Provider) defaultTemplate() domain.UserTemplate {
	p.mu.RLock()
	if p.cached != nil {
		t := *p.cached
		p.mu.RUnlock()
		return t
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached == nil {
		t := domain.UserTemplate{Name: DefaultName, Sections: DefaultSections, IsActive: true}
		p.cached = &t
	}
	return *p.cached
}

// ForUser returns the user's active override template, or the default
// if they have none.
func (p *Provider) ForUser(ctx context.Context, userID string) (domain.UserTemplate, error) {
	t, err := p.store.GetActiveTemplate(ctx, p.store.DB(), userID)
	if err == store.ErrNotFound {
		return p.defaultTemplate(), nil
	}
	if err != nil {
		return domain.UserTemplate{}, err
	}
	return t, nil
}

// Reload drops the cached default, forcing the next ForUser call that
// falls through to it to rebuild it — the reload_template tool's
// effect on the process-wide default (spec.md §4.4).
func (p *Provider) Reload() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

// SaveOverride persists a full replacement template for a user.
func (p *Provider) SaveOverride(ctx context.Context, userID, name string, sections []domain.TemplateSection) (domain.UserTemplate, error) {
	return p.store.UpsertTemplate(ctx, p.store.DB(), userID, name, sections)
}
