package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/projectrag-mcp/pkg/types"
)

// ErrEmptyCorpus is returned when project data yields no chunks at all.
var ErrEmptyCorpus = errors.New("project data produced no chunks")

// Granularity controls how much of each story and feature goes into module
// detail chunks.
type Granularity string

const (
	// GranularityStandard renders titles, roles, descriptions, priority and status.
	GranularityStandard Granularity = "standard"
	// GranularityDetailed adds acceptance criteria, feature descriptions and
	// feature-level business rules.
	GranularityDetailed Granularity = "detailed"
)

// ParseGranularity maps a config value to a Granularity. Empty selects standard.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case "", GranularityStandard:
		return GranularityStandard, nil
	case GranularityDetailed:
		return GranularityDetailed, nil
	default:
		return "", fmt.Errorf("unknown chunk granularity %q", s)
	}
}

const (
	notAvailable    = "N/A"
	noStoriesYet    = "User Stories: None defined yet"
	noGuidelinesYet = "No guidelines defined yet"
	allModules      = "All modules"
	featureRuleNote = "Note: Individual features may have their own specific business rules. Check feature details for feature-level rules."
)

// Options are the chunking variation points.
type Options struct {
	Granularity Granularity `json:"granularity"`
	// SkipRosters drops the module, story and feature listing chunks and keeps
	// only per-item chunks.
	SkipRosters bool `json:"skip_rosters,omitempty"`
}

// Chunker turns project data into retrievable chunks. It holds no state
// besides its options and is safe for concurrent use.
type Chunker struct {
	opts Options
}

// New creates a Chunker
func New(opts Options) *Chunker {
	if opts.Granularity == "" {
		opts.Granularity = GranularityStandard
	}
	return &Chunker{opts: opts}
}

// Options returns the effective options.
func (c *Chunker) Options() Options {
	return c.opts
}

// Build returns the chunks for data, or ErrEmptyCorpus when there are none.
func (c *Chunker) Build(data *types.ProjectData) ([]types.Chunk, error) {
	chunks := c.ChunkProject(data)
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}
	return chunks, nil
}

// ChunkProject renders data into chunks in a fixed order: rosters, module
// details, overview, business rules, tech stack, UI/UX guidelines. Each facet
// is skipped when absent from data. Missing fields render as placeholders.
func (c *Chunker) ChunkProject(data *types.ProjectData) []types.Chunk {
	if data == nil {
		return nil
	}

	var chunks []types.Chunk
	add := func(ch *types.Chunk) {
		if ch != nil {
			chunks = append(chunks, *ch)
		}
	}

	if !c.opts.SkipRosters {
		add(moduleRoster(data.Modules))
		add(storyRoster(data.UserStories))
		add(featureRoster(data.Features))
	}

	for i := range data.Modules {
		add(c.moduleDetail(&data.Modules[i], data.UserStories, data.Features))
	}

	add(c.overview(data.Project, data.Information))
	add(businessRules(data.BusinessRules))
	add(techStack(data.TechStack))
	add(uiuxGuidelines(data.UIUXGuidelines))

	return chunks
}

func moduleRoster(modules []types.Module) *types.Chunk {
	if len(modules) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("ALL MODULES IN THIS PROJECT - COMPLETE LIST OF MODULE NAMES:\n\n")
	b.WriteString("This is the complete list of all modules in the project.\n")
	fmt.Fprintf(&b, "Total number of modules: %d\n\n", len(modules))
	b.WriteString("MODULE NAMES AND DESCRIPTIONS:\n")

	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.Name.Or("Unnamed")
	}
	b.WriteString("\nQuick List of Module Names:\n")
	fmt.Fprintf(&b, "• %s\n\n", strings.Join(names, ", "))

	b.WriteString("Detailed Module List:\n")
	for i, m := range modules {
		fmt.Fprintf(&b, "\n%d. MODULE NAME: %s\n", i+1, names[i])
		fmt.Fprintf(&b, "   Description: %s\n", m.Description.Or("No description available"))
		fmt.Fprintf(&b, "   Priority: %s\n", m.Priority.Or("Not specified"))
	}

	b.WriteString("\n===== END OF MODULE LIST =====\n")
	fmt.Fprintf(&b, "Total Modules in Project: %d\n", len(modules))
	b.WriteString("Note: For detailed information about any module including user stories and features, refer to individual module chunks.")

	return &types.Chunk{
		Text: b.String(),
		Metadata: types.ChunkMetadata{
			Source:   "Module List Overview",
			Type:     types.ChunkModuleList,
			Keywords: "all modules, module list, complete list, module names, list of modules",
			Priority: "high",
		},
	}
}

// rosterItem is the part of a story or feature shown in a roster line.
type rosterItem struct {
	title, priority, status types.Text
}

func storyRoster(stories []types.UserStory) *types.Chunk {
	items := make([]rosterItem, len(stories))
	for i, s := range stories {
		items[i] = rosterItem{s.Title, s.Priority, s.Status}
	}
	return roster(items, rosterSpec{
		header:   "ALL USER STORIES IN THIS PROJECT - COMPLETE LIST",
		noun:     "user stories",
		plural:   "User Stories",
		titles:   "USER STORY TITLES",
		unnamed:  "Unnamed Story",
		source:   "User Stories List",
		typ:      types.ChunkStoriesList,
		keywords: "all user stories, user story list, complete list",
	})
}

func featureRoster(features []types.Feature) *types.Chunk {
	items := make([]rosterItem, len(features))
	for i, f := range features {
		items[i] = rosterItem{f.Title, f.Priority, f.Status}
	}
	return roster(items, rosterSpec{
		header:   "ALL FEATURES IN THIS PROJECT - COMPLETE LIST",
		noun:     "features",
		plural:   "Features",
		titles:   "FEATURE TITLES",
		unnamed:  "Unnamed Feature",
		source:   "Features List",
		typ:      types.ChunkFeaturesList,
		keywords: "all features, feature list, complete list",
	})
}

type rosterSpec struct {
	header, noun, plural, titles, unnamed string
	source, keywords                      string
	typ                                   types.ChunkType
}

func roster(items []rosterItem, spec rosterSpec) *types.Chunk {
	if len(items) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n\n", spec.header)
	fmt.Fprintf(&b, "Total number of %s: %d\n\n", spec.noun, len(items))
	fmt.Fprintf(&b, "%s:\n", spec.titles)
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s (Priority: %s, Status: %s)\n",
			i+1, it.title.Or(spec.unnamed), it.priority.Or(notAvailable), it.status.Or(notAvailable))
	}
	fmt.Fprintf(&b, "\n===== END OF %s LIST =====\n", strings.ToUpper(spec.plural))
	fmt.Fprintf(&b, "Total %s: %d\n", spec.plural, len(items))

	return &types.Chunk{
		Text: b.String(),
		Metadata: types.ChunkMetadata{
			Source:   spec.source,
			Type:     spec.typ,
			Keywords: spec.keywords,
			Priority: "high",
		},
	}
}

func (c *Chunker) moduleDetail(m *types.Module, stories []types.UserStory, features []types.Feature) *types.Chunk {
	name := m.Name.Or("Unnamed Module")
	detailed := c.opts.Granularity == GranularityDetailed

	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\n", name)
	fmt.Fprintf(&b, "Description: %s\n", m.Description.Or(notAvailable))
	fmt.Fprintf(&b, "Priority: %s\n", m.Priority.Or(notAvailable))
	fmt.Fprintf(&b, "Business Impact: %s\n\n", m.BusinessImpact.Or(notAvailable))

	// Records without an id never match, so orphans are dropped silently.
	var own []*types.UserStory
	if m.ID != "" {
		for i := range stories {
			if stories[i].ModuleID == m.ID {
				own = append(own, &stories[i])
			}
		}
	}

	if len(own) == 0 {
		b.WriteString(noStoriesYet + "\n")
	} else {
		fmt.Fprintf(&b, "User Stories (%d total):\n", len(own))
	}

	for _, s := range own {
		fmt.Fprintf(&b, "\n  • %s\n", s.Title.Or(notAvailable))
		fmt.Fprintf(&b, "    Role: %s\n", s.UserRole.Or(notAvailable))
		fmt.Fprintf(&b, "    Description: %s\n", s.Description.Or(notAvailable))
		if detailed && s.AcceptanceCriteria != "" {
			fmt.Fprintf(&b, "    Acceptance Criteria: %s\n", s.AcceptanceCriteria)
		}
		fmt.Fprintf(&b, "    Priority: %s, Status: %s\n", s.Priority.Or(notAvailable), s.Status.Or(notAvailable))

		if s.ID == "" {
			continue
		}
		header := false
		for i := range features {
			f := &features[i]
			if f.UserStoryID != s.ID {
				continue
			}
			if !header {
				b.WriteString("    Features:\n")
				header = true
			}
			fmt.Fprintf(&b, "      - %s (Priority: %s, Status: %s)\n",
				f.Title.Or(notAvailable), f.Priority.Or(notAvailable), f.Status.Or(notAvailable))
			if detailed {
				if f.Description != "" {
					fmt.Fprintf(&b, "        Description: %s\n", f.Description)
				}
				if f.BusinessRules != "" {
					fmt.Fprintf(&b, "        Business Rules: %s\n", f.BusinessRules)
				}
			}
		}
	}

	return &types.Chunk{
		Text: b.String(),
		Metadata: types.ChunkMetadata{
			Source:     "Module Detail",
			Type:       types.ChunkModuleDetail,
			ModuleName: name,
			ModuleID:   string(m.ID),
		},
	}
}

func (c *Chunker) overview(p *types.Project, info *types.ProjectInformation) *types.Chunk {
	if p == nil && info == nil {
		return nil
	}
	detailed := c.opts.Granularity == GranularityDetailed

	var b strings.Builder
	b.WriteString("Project Overview:\n\n")
	if p != nil {
		fmt.Fprintf(&b, "Project Name: %s\n", p.Name.Or(notAvailable))
		fmt.Fprintf(&b, "Application Type: %s\n", p.ApplicationType.Or(notAvailable))
		if detailed {
			fmt.Fprintf(&b, "Description: %s\n", p.Description.Or(notAvailable))
			fmt.Fprintf(&b, "Status: %s\n", p.Status.Or(notAvailable))
		}
		b.WriteString("\n")
	}
	if info != nil {
		fmt.Fprintf(&b, "Vision: %s\n", info.Vision.Or(notAvailable))
		fmt.Fprintf(&b, "Purpose: %s\n", info.Purpose.Or(notAvailable))
		fmt.Fprintf(&b, "Objectives: %s\n", info.Objectives.Or(notAvailable))
		fmt.Fprintf(&b, "Functional Requirements: %s\n", info.FunctionalRequirements.Or(notAvailable))
		fmt.Fprintf(&b, "Non-Functional Requirements: %s\n", info.NonFunctionalRequirements.Or(notAvailable))
		if detailed {
			fmt.Fprintf(&b, "Integration Requirements: %s\n", info.IntegrationRequirements.Or(notAvailable))
			fmt.Fprintf(&b, "Reporting Requirements: %s\n", info.ReportingRequirements.Or(notAvailable))
		}
	}

	return &types.Chunk{
		Text:     b.String(),
		Metadata: types.ChunkMetadata{Source: "Project Overview", Type: types.ChunkOverview},
	}
}

func businessRules(rules *types.BusinessRules) *types.Chunk {
	if rules == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString("GLOBAL BUSINESS RULES (Project-level Rules):\n\n")
	b.WriteString("Note: These are project-wide business rules that apply across modules, distinct from feature-specific business rules.\n\n")

	for _, cat := range rules.Categories {
		applies := allModules
		if len(cat.ApplicableTo) > 0 {
			applies = strings.Join(cat.ApplicableTo, ", ")
		}
		name := cat.Name.Or("Rule")
		if cat.Description != "" {
			fmt.Fprintf(&b, "• %s: %s (Applicable to: %s)\n", name, cat.Description, applies)
		} else {
			fmt.Fprintf(&b, "• %s (Applicable to: %s)\n", name, applies)
		}
	}

	if n := len(rules.Categories); n > 0 {
		fmt.Fprintf(&b, "\nTotal Global Business Rules: %d\n", n)
	} else {
		b.WriteString("Project-wide business rules exist but no rule categories are listed yet.\n")
	}
	b.WriteString("\n" + featureRuleNote + "\n")

	return &types.Chunk{
		Text: b.String(),
		Metadata: types.ChunkMetadata{
			Source:   "Global Business Rules",
			Type:     types.ChunkGlobalRules,
			Keywords: "business rules, global rules, project rules",
		},
	}
}

func techStack(ts *types.TechStack) *types.Chunk {
	if ts == nil || len(ts.Categories) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("Technology Stack:\n\n")
	for _, cat := range ts.Categories {
		fmt.Fprintf(&b, "%s:\n", cat.Name)
		for _, tech := range cat.Technologies {
			fmt.Fprintf(&b, "  • %s\n", tech)
		}
		b.WriteString("\n")
	}

	return &types.Chunk{
		Text:     b.String(),
		Metadata: types.ChunkMetadata{Source: "Tech Stack", Type: types.ChunkTechnology},
	}
}

func uiuxGuidelines(ui *types.UIUXGuidelines) *types.Chunk {
	if ui == nil {
		return nil
	}
	return &types.Chunk{
		Text:     "UI/UX Guidelines:\n\n" + ui.Guidelines.Or(noGuidelinesYet),
		Metadata: types.ChunkMetadata{Source: "UI/UX Guidelines", Type: types.ChunkDesign},
	}
}
