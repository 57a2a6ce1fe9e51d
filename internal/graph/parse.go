package graph

import (
	"hash/fnv"
	"sort"
	"sync"
)

// Node is a graph vertex keyed by the server-assigned id.
type Node struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
	Color      string         `json:"color"`
	Expanded   bool           `json:"expanded"`
}

// Edge is a graph relationship.
type Edge struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Properties map[string]any `json:"properties"`
}

// Data is a deduplicated set of nodes and edges.
type Data struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// semanticColors are the pre-assigned colors for well-known labels; any other
// label falls back to a deterministic hash into the palette.
var semanticColors = map[string]string{
	"Skill":    "#4caf50",
	"Person":   "#2196f3",
	"Project":  "#ff9800",
	"Document": "#9c27b0",
	"Tag":      "#607d8b",
}

// palette is the fallback color set. Both the palette and the hash are part
// of the visual-stability contract: the same label maps to the same color
// across runs as long as neither changes.
var palette = []string{
	"#e91e63", "#3f51b5", "#00bcd4", "#8bc34a",
	"#ffc107", "#795548", "#673ab7", "#009688",
}

// colorAssigner caches per-label colors for the client's lifetime.
type colorAssigner struct {
	mu    sync.Mutex
	cache map[string]string
}

func newColorAssigner() *colorAssigner {
	return &colorAssigner{cache: map[string]string{}}
}

func (a *colorAssigner) colorFor(label string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.cache[label]; ok {
		return c
	}
	c, ok := semanticColors[label]
	if !ok {
		h := fnv.New32a()
		h.Write([]byte(label))
		c = palette[h.Sum32()%uint32(len(palette))]
	}
	a.cache[label] = c
	return c
}

// ParseGraphData flattens a transactional response into deduplicated nodes
// and edges. Nodes are deduplicated by server id across all records; each
// node gets a display color derived from its first label.
func (c *Client) ParseGraphData(resp *Response) *Data {
	data := &Data{}
	seenNodes := map[string]bool{}
	seenEdges := map[string]bool{}

	for _, result := range resp.Results {
		for _, record := range result.Data {
			for _, n := range record.Graph.Nodes {
				if seenNodes[n.ID] {
					continue
				}
				seenNodes[n.ID] = true
				label := ""
				if len(n.Labels) > 0 {
					label = n.Labels[0]
				}
				data.Nodes = append(data.Nodes, Node{
					ID:         n.ID,
					Labels:     n.Labels,
					Properties: n.Properties,
					Color:      c.colors.colorFor(label),
				})
			}
			for _, r := range record.Graph.Relationships {
				if seenEdges[r.ID] {
					continue
				}
				seenEdges[r.ID] = true
				data.Edges = append(data.Edges, Edge{
					ID:         r.ID,
					Type:       r.Type,
					From:       r.StartNode,
					To:         r.EndNode,
					Properties: r.Properties,
				})
			}
		}
	}

	sort.Slice(data.Nodes, func(i, j int) bool { return data.Nodes[i].ID < data.Nodes[j].ID })
	sort.Slice(data.Edges, func(i, j int) bool { return data.Edges[i].ID < data.Edges[j].ID })
	return data
}
