// Package skills manages the skill library: CRUD over Skill nodes in the
// graph store, structural validation, and query templating.
package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FlowDeck/FlowDeck/internal/graph"
)

// requiredKeywords: a skill template must contain at least one of these to be
// runnable at all. This is structural validation, not query-safety checking.
var requiredKeywords = []string{"MATCH", "CREATE", "MERGE", "RETURN"}

// Skill is one entry of the skill library, stored as a graph node with the
// Skill label. Version increments monotonically on every edit; writes are
// last-write-wins with no conflict detection.
type Skill struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	Triggers       []string       `json:"triggers"`
	CypherTemplate string         `json:"cypher_template"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	UsageCount     int            `json:"usage_count"`
	Version        int            `json:"version"`
	CreatedAt      string         `json:"created_at,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
}

// Querier is the graph surface the manager needs. Satisfied by *graph.Client.
type Querier interface {
	ExecuteQuery(ctx context.Context, cypher string, params map[string]any) (*graph.Response, error)
}

// Manager performs skill CRUD against the graph store.
type Manager struct {
	q   Querier
	now func() time.Time
}

// NewManager creates a skill manager over the given graph querier.
func NewManager(q Querier) *Manager {
	return &Manager{q: q, now: time.Now}
}

// Validate enforces structural non-emptiness: name, description, at least one
// trigger, and a template containing a recognized query keyword.
func Validate(s *Skill) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("skills: name required")
	}
	if strings.TrimSpace(s.Description) == "" {
		return fmt.Errorf("skills: description required")
	}
	hasTrigger := false
	for _, t := range s.Triggers {
		if strings.TrimSpace(t) != "" {
			hasTrigger = true
			break
		}
	}
	if !hasTrigger {
		return fmt.Errorf("skills: at least one trigger required")
	}
	template := strings.ToUpper(s.CypherTemplate)
	if strings.TrimSpace(template) == "" {
		return fmt.Errorf("skills: query template required")
	}
	for _, kw := range requiredKeywords {
		if strings.Contains(template, kw) {
			return nil
		}
	}
	return fmt.Errorf("skills: query template must contain one of %s", strings.Join(requiredKeywords, ", "))
}

// Create stores a new skill at version 1.
func (m *Manager) Create(ctx context.Context, s *Skill) error {
	if err := Validate(s); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Version = 1
	s.UsageCount = 0
	now := m.now().UTC().Format(time.RFC3339)
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := m.q.ExecuteQuery(ctx, `CREATE (s:Skill {
		id: $id, name: $name, description: $description, category: $category,
		triggers: $triggers, cypher_template: $template, parameters: $parameters,
		usage_count: 0, version: 1, created_at: $now, updated_at: $now
	}) RETURN s.id`, m.params(s, now))
	return err
}

// Update rewrites the skill, always incrementing the version counter and the
// updated timestamp. readVersion is the version the caller last read; a stale
// read is logged but the write still wins (last-write-wins).
func (m *Manager) Update(ctx context.Context, s *Skill, readVersion int) error {
	if err := Validate(s); err != nil {
		return err
	}
	if s.ID == "" {
		return fmt.Errorf("skills: id required for update")
	}
	now := m.now().UTC().Format(time.RFC3339)
	s.UpdatedAt = now

	resp, err := m.q.ExecuteQuery(ctx, `MATCH (s:Skill {id: $id}) SET
		s.name = $name, s.description = $description, s.category = $category,
		s.triggers = $triggers, s.cypher_template = $template, s.parameters = $parameters,
		s.version = s.version + 1, s.updated_at = $now
	RETURN s.version`, m.params(s, now))
	if err != nil {
		return err
	}

	newVersion, ok := firstRowInt(resp)
	if !ok {
		return fmt.Errorf("skills: no skill %s", s.ID)
	}
	s.Version = newVersion
	if readVersion > 0 && newVersion != readVersion+1 {
		slog.Warn("skills: stale edit overwrote a newer version",
			"skill_id", s.ID, "read_version", readVersion, "new_version", newVersion)
	}
	return nil
}

// Delete removes the skill and its relationships.
func (m *Manager) Delete(ctx context.Context, id string) error {
	_, err := m.q.ExecuteQuery(ctx,
		`MATCH (s:Skill {id: $id}) DETACH DELETE s`,
		map[string]any{"id": id})
	return err
}

// Get fetches one skill by id.
func (m *Manager) Get(ctx context.Context, id string) (*Skill, error) {
	resp, err := m.q.ExecuteQuery(ctx,
		`MATCH (s:Skill {id: $id}) RETURN s`,
		map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	list := rowsToSkills(resp)
	if len(list) == 0 {
		return nil, fmt.Errorf("skills: no skill %s", id)
	}
	return list[0], nil
}

// List returns all skills ordered by name.
func (m *Manager) List(ctx context.Context) ([]*Skill, error) {
	resp, err := m.q.ExecuteQuery(ctx, `MATCH (s:Skill) RETURN s ORDER BY s.name`, nil)
	if err != nil {
		return nil, err
	}
	return rowsToSkills(resp), nil
}

// Run executes a skill's query template with the given parameters and bumps
// its usage counter. Missing template parameters surface as query errors from
// the database, not from here.
func (m *Manager) Run(ctx context.Context, s *Skill, params map[string]any) (*graph.Response, error) {
	resp, err := m.q.ExecuteQuery(ctx, s.CypherTemplate, params)
	if err != nil {
		return nil, err
	}
	if _, err := m.q.ExecuteQuery(ctx,
		`MATCH (s:Skill {id: $id}) SET s.usage_count = coalesce(s.usage_count, 0) + 1`,
		map[string]any{"id": s.ID}); err != nil {
		slog.Warn("skills: usage counter update failed", "skill_id", s.ID, "error", err)
	}
	return resp, nil
}

func (m *Manager) params(s *Skill, now string) map[string]any {
	// Parameters nest arbitrarily, which graph properties cannot; they are
	// stored as a JSON string property.
	paramsJSON := ""
	if len(s.Parameters) > 0 {
		if data, err := json.Marshal(s.Parameters); err == nil {
			paramsJSON = string(data)
		}
	}
	return map[string]any{
		"id":          s.ID,
		"name":        s.Name,
		"description": s.Description,
		"category":    s.Category,
		"triggers":    s.Triggers,
		"template":    s.CypherTemplate,
		"parameters":  paramsJSON,
		"now":         now,
	}
}

// rowsToSkills decodes row results into skills.
func rowsToSkills(resp *graph.Response) []*Skill {
	var out []*Skill
	for _, result := range resp.Results {
		for _, record := range result.Data {
			if len(record.Row) == 0 {
				continue
			}
			var props map[string]any
			if err := json.Unmarshal(record.Row[0], &props); err != nil {
				continue
			}
			out = append(out, skillFromProps(props))
		}
	}
	return out
}

func skillFromProps(props map[string]any) *Skill {
	s := &Skill{
		ID:             str(props["id"]),
		Name:           str(props["name"]),
		Description:    str(props["description"]),
		Category:       str(props["category"]),
		CypherTemplate: str(props["cypher_template"]),
		UsageCount:     num(props["usage_count"]),
		Version:        num(props["version"]),
		CreatedAt:      str(props["created_at"]),
		UpdatedAt:      str(props["updated_at"]),
	}
	if raw, ok := props["triggers"].([]any); ok {
		for _, t := range raw {
			s.Triggers = append(s.Triggers, str(t))
		}
	}
	if pj := str(props["parameters"]); pj != "" {
		_ = json.Unmarshal([]byte(pj), &s.Parameters)
	}
	return s
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}

func firstRowInt(resp *graph.Response) (int, bool) {
	for _, result := range resp.Results {
		for _, record := range result.Data {
			if len(record.Row) == 0 {
				continue
			}
			var n float64
			if err := json.Unmarshal(record.Row[0], &n); err == nil {
				return int(n), true
			}
		}
	}
	return 0, false
}
