package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProjectData is the full specification record of one project. Every field is
// optional. A facet object with at least one key produces its chunk even when
// its values are empty; a missing, null or {} facet produces nothing.
type ProjectData struct {
	Project             *Project            `json:"project,omitempty"`
	Information         *ProjectInformation `json:"project_information,omitempty"`
	Modules             []Module            `json:"modules,omitempty"`
	UserStories         []UserStory         `json:"user_stories,omitempty"`
	Features            []Feature           `json:"features,omitempty"`
	BusinessRules       *BusinessRules      `json:"business_rules,omitempty"`
	TechStack           *TechStack          `json:"tech_stack,omitempty"`
	UIUXGuidelines      *UIUXGuidelines     `json:"uiux_guidelines,omitempty"`
	ActionsInteractions []json.RawMessage   `json:"actions_interactions,omitempty"`
	AnimationEffects    []json.RawMessage   `json:"animation_effects,omitempty"`
	RecentAIPrompts     []json.RawMessage   `json:"recent_ai_prompts,omitempty"`
}

type Project struct {
	Name            Text `json:"name,omitempty"`
	ApplicationType Text `json:"application_type,omitempty"`
	Description     Text `json:"description,omitempty"`
	Status          Text `json:"status,omitempty"`
}

type ProjectInformation struct {
	Vision                    Text `json:"vision,omitempty"`
	Purpose                   Text `json:"purpose,omitempty"`
	Objectives                Text `json:"objectives,omitempty"`
	FunctionalRequirements    Text `json:"functional_requirements,omitempty"`
	NonFunctionalRequirements Text `json:"non_functional_requirements,omitempty"`
	IntegrationRequirements   Text `json:"integration_requirements,omitempty"`
	ReportingRequirements     Text `json:"reporting_requirements,omitempty"`
}

type Module struct {
	ID             ID   `json:"id,omitempty"`
	Name           Text `json:"module_name,omitempty"`
	Description    Text `json:"description,omitempty"`
	Priority       Text `json:"priority,omitempty"`
	BusinessImpact Text `json:"business_impact,omitempty"`
}

type UserStory struct {
	ID                 ID   `json:"id,omitempty"`
	ModuleID           ID   `json:"module_id,omitempty"`
	Title              Text `json:"title,omitempty"`
	UserRole           Text `json:"user_role,omitempty"`
	Description        Text `json:"description,omitempty"`
	AcceptanceCriteria Text `json:"acceptance_criteria,omitempty"`
	Priority           Text `json:"priority,omitempty"`
	Status             Text `json:"status,omitempty"`
}

type Feature struct {
	ID            ID   `json:"id,omitempty"`
	UserStoryID   ID   `json:"user_story_id,omitempty"`
	Title         Text `json:"title,omitempty"`
	Description   Text `json:"description,omitempty"`
	Priority      Text `json:"priority,omitempty"`
	Status        Text `json:"status,omitempty"`
	BusinessRules Text `json:"business_rules,omitempty"`
}

// RuleCategory is one project-level business rule.
type RuleCategory struct {
	ID           ID         `json:"id,omitempty"`
	Name         Text       `json:"name,omitempty"`
	Description  Text       `json:"description,omitempty"`
	ApplicableTo StringList `json:"applicableTo,omitempty"`
}

// BusinessRules holds the global rule categories. On input they may sit at
// "categories" or at "config.categories"; the top-level key wins when both exist.
type BusinessRules struct {
	Categories []RuleCategory
}

func (b *BusinessRules) UnmarshalJSON(data []byte) error {
	b.Categories = nil
	if !isObject(data) {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("business_rules: %w", err)
	}

	list, ok := raw["categories"]
	if !ok {
		if cfg, found := raw["config"]; found {
			var inner map[string]json.RawMessage
			if json.Unmarshal(cfg, &inner) == nil {
				list = inner["categories"]
			}
		}
	}

	if len(list) == 0 {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return nil // not a list: no categories
	}
	for _, item := range items {
		if !isObject(item) {
			continue
		}
		var c RuleCategory
		if err := json.Unmarshal(item, &c); err != nil {
			return fmt.Errorf("business_rules category: %w", err)
		}
		b.Categories = append(b.Categories, c)
	}
	return nil
}

func (b BusinessRules) MarshalJSON() ([]byte, error) {
	cats := b.Categories
	if cats == nil {
		cats = []RuleCategory{}
	}
	return json.Marshal(struct {
		Categories []RuleCategory `json:"categories"`
	}{cats})
}

// TechCategory is one named group of technologies, e.g. "frontend".
type TechCategory struct {
	Name         string
	Technologies []string
}

// TechStack keeps categories in input order. A wrapping {"tech_stack": {...}}
// object is unwrapped, and a scalar value is read as a one-element list.
type TechStack struct {
	Categories []TechCategory
}

func (t *TechStack) UnmarshalJSON(data []byte) error {
	t.Categories = nil
	if !isObject(data) {
		return nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("tech_stack: %w", err)
	}
	if nested, ok := members["tech_stack"]; ok && isObject(nested) {
		data = nested
	}

	return forEachMember(data, func(key string, value json.RawMessage) error {
		var items StringList
		if err := json.Unmarshal(value, &items); err != nil {
			return fmt.Errorf("tech_stack %q: %w", key, err)
		}
		t.Categories = append(t.Categories, TechCategory{Name: key, Technologies: items})
		return nil
	})
}

func (t TechStack) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range t.Categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		items := c.Technologies
		if items == nil {
			items = []string{}
		}
		val, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type UIUXGuidelines struct {
	Guidelines Text `json:"guidelines,omitempty"`
}

// ID is an identifier that may arrive as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ID(flatten(data))
	return nil
}

// Text is a free-text field. Numbers and booleans are formatted, lists are
// joined with "; " and objects are kept as compact JSON, so rendering never
// fails on unexpected shapes.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text(flatten(data))
	return nil
}

// Or returns the text, or def when it is blank.
func (t Text) Or(def string) string {
	if strings.TrimSpace(string(t)) == "" {
		return def
	}
	return string(t)
}

// StringList accepts either a JSON list or a single scalar.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}
	if data[0] != '[' {
		*l = StringList{flatten(data)}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(StringList, 0, len(items))
	for _, item := range items {
		if s := flatten(item); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// DecodeProjectData parses a project record. This is the only place input
// shape is validated; the result can be rendered without further checks.
func DecodeProjectData(data []byte) (*ProjectData, error) {
	if !isObject(data) {
		return nil, fmt.Errorf("%w: top level must be an object", ErrInvalidProject)
	}
	var pd ProjectData
	if err := json.Unmarshal(data, &pd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProject, err)
	}
	if err := pd.dropEmptyFacets(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProject, err)
	}
	return &pd, nil
}

// dropEmptyFacets clears the facets given as {} in data.
func (p *ProjectData) dropEmptyFacets(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if isEmptyObject(fields["project"]) {
		p.Project = nil
	}
	if isEmptyObject(fields["project_information"]) {
		p.Information = nil
	}
	if isEmptyObject(fields["business_rules"]) {
		p.BusinessRules = nil
	}
	if isEmptyObject(fields["tech_stack"]) {
		p.TechStack = nil
	}
	if isEmptyObject(fields["uiux_guidelines"]) {
		p.UIUXGuidelines = nil
	}
	return nil
}

// Canonical returns a stable JSON encoding of the record, used to detect
// whether two records describe the same content.
func (p *ProjectData) Canonical() ([]byte, error) {
	return json.Marshal(p)
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}

func isEmptyObject(raw json.RawMessage) bool {
	if !isObject(raw) {
		return false
	}
	var m map[string]json.RawMessage
	return json.Unmarshal(raw, &m) == nil && len(m) == 0
}

func flatten(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return ""
	}

	switch data[0] {
	case '"':
		var s string
		if json.Unmarshal(data, &s) == nil {
			return s
		}
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(data, &items) == nil {
			parts := make([]string, 0, len(items))
			for _, item := range items {
				if s := flatten(item); s != "" {
					parts = append(parts, s)
				}
			}
			return strings.Join(parts, "; ")
		}
	case '{':
		var buf bytes.Buffer
		if json.Compact(&buf, data) == nil {
			return buf.String()
		}
	case 't', 'f':
		if b, err := strconv.ParseBool(string(data)); err == nil {
			return strconv.FormatBool(b)
		}
	}
	return string(data)
}

// forEachMember walks an object's members in document order.
func forEachMember(data []byte, fn func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}
