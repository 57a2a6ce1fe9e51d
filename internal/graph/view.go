package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// expandQuery fetches the 1-hop neighborhood of one node.
const expandQuery = `MATCH (n)-[r]-(m) WHERE toString(id(n)) = $id RETURN n, r, m LIMIT 100`

// View is the rendered node/edge set with incremental expand and collapse.
// The set of node ids present at the initial render is captured once and is
// the ground truth for what CollapseAll restores.
type View struct {
	mu       sync.Mutex
	client   *Client
	nodes    map[string]*Node
	edges    map[string]*Edge
	original map[string]bool
}

// NewView runs the initial query and captures the original node-id set.
func NewView(ctx context.Context, client *Client, cypher string, params map[string]any) (*View, error) {
	data, err := client.Query(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	v := &View{
		client:   client,
		nodes:    map[string]*Node{},
		edges:    map[string]*Edge{},
		original: map[string]bool{},
	}
	for i := range data.Nodes {
		n := data.Nodes[i]
		v.nodes[n.ID] = &n
		v.original[n.ID] = true
	}
	for i := range data.Edges {
		e := data.Edges[i]
		v.edges[e.ID] = &e
	}
	return v, nil
}

// ExpandNode merges the 1-hop neighborhood of the given node into the view
// without duplicating ids and marks the node expanded.
func (v *View) ExpandNode(ctx context.Context, id string) error {
	v.mu.Lock()
	node, ok := v.nodes[id]
	v.mu.Unlock()
	if !ok {
		return fmt.Errorf("graph: node %s not in view", id)
	}

	data, err := v.client.Query(ctx, expandQuery, map[string]any{"id": id})
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range data.Nodes {
		n := data.Nodes[i]
		if _, exists := v.nodes[n.ID]; !exists {
			v.nodes[n.ID] = &n
		}
	}
	for i := range data.Edges {
		e := data.Edges[i]
		if _, exists := v.edges[e.ID]; !exists {
			v.edges[e.ID] = &e
		}
	}
	node.Expanded = true
	return nil
}

// CollapseAll removes every node not present in the original result set, then
// every now-dangling edge, restoring the pre-expansion view. Calling it on an
// already-collapsed view is a no-op.
func (v *View) CollapseAll() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for id := range v.nodes {
		if !v.original[id] {
			delete(v.nodes, id)
		}
	}
	for id, e := range v.edges {
		if _, ok := v.nodes[e.From]; !ok {
			delete(v.edges, id)
			continue
		}
		if _, ok := v.nodes[e.To]; !ok {
			delete(v.edges, id)
		}
	}
	for _, n := range v.nodes {
		n.Expanded = false
	}
}

// Snapshot returns the current node/edge sets in stable order.
func (v *View) Snapshot() *Data {
	v.mu.Lock()
	defer v.mu.Unlock()

	data := &Data{}
	for _, n := range v.nodes {
		data.Nodes = append(data.Nodes, *n)
	}
	for _, e := range v.edges {
		data.Edges = append(data.Edges, *e)
	}
	sort.Slice(data.Nodes, func(i, j int) bool { return data.Nodes[i].ID < data.Nodes[j].ID })
	sort.Slice(data.Edges, func(i, j int) bool { return data.Edges[i].ID < data.Edges[j].ID })
	return data
}
