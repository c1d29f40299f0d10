package linker

import (
	"encoding/json"
	"fmt"
)

// Node and edge type attributes.
const (
	NodeAgent  = "agent"
	NodePort   = "port"
	NodeIntent = "intent"

	EdgeFlow    = "flow"
	EdgeIntent  = "intent"
	EdgeConnect = "connect"
)

// Graph is a directed multigraph in node-link form. It is built once by Link
// and treated as read-only afterwards, so it can be shared between executions.
// Parallel edges between the same pair of nodes are told apart by Edge.Key.
type Graph struct {
	Directed   bool           `json:"directed"`
	Multigraph bool           `json:"multigraph"`
	Attrs      map[string]any `json:"graph"`
	Nodes      []Node         `json:"nodes"`
	Edges      []Edge         `json:"edges"`

	nodeIndex map[string]int
	edgeIndex map[edgeID]int
}

type edgeID struct {
	source, target string
	key            int
}

// Node is a graph vertex. Attrs are flattened next to "id" in JSON.
type Node struct {
	ID    string
	Attrs map[string]any
}

// Edge is a directed edge. Attrs are flattened next to "source", "target"
// and "key".
type Edge struct {
	Source string
	Target string
	Key    int
	Attrs  map[string]any
}

// NewGraph returns an empty directed graph.
func NewGraph() *Graph {
	return &Graph{
		Directed:   true,
		Multigraph: true,
		Attrs:      map[string]any{},
		Nodes:      []Node{},
		Edges:      []Edge{},
	}
}

// AgentNodeID returns the id of an agent configuration node.
func AgentNodeID(agent string) string { return "agent:" + agent }

// InputPortID returns the id of an agent's input port.
func InputPortID(agent string) string { return agent + "_input" }

// OutputPortID returns the id of an agent's output port.
func OutputPortID(agent string) string { return agent + "_output" }

// IntentNodeID returns the id of an intent node.
func IntentNodeID(agent, intent string) string { return "intent:" + agent + ":" + intent }

func (g *Graph) reindex() {
	g.nodeIndex = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		g.nodeIndex[n.ID] = i
	}
	g.edgeIndex = make(map[edgeID]int, len(g.Edges))
	for i, e := range g.Edges {
		id := edgeID{e.Source, e.Target, e.Key}
		if _, dup := g.edgeIndex[id]; !dup {
			g.edgeIndex[id] = i
		}
	}
}

// AddNode adds a node. A node with an existing id keeps its first attributes
// and AddNode reports false.
func (g *Graph) AddNode(id string, attrs map[string]any) bool {
	if g.nodeIndex == nil {
		g.reindex()
	}
	if _, ok := g.nodeIndex[id]; ok {
		return false
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	g.nodeIndex[id] = len(g.Nodes)
	g.Nodes = append(g.Nodes, Node{ID: id, Attrs: attrs})
	return true
}

// AddEdge adds the edge with key 0 between source and target. Both endpoints
// must exist. Adding an edge that already exists updates its attributes.
func (g *Graph) AddEdge(source, target string, attrs map[string]any) error {
	if err := g.checkEndpoints(source, target); err != nil {
		return err
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	id := edgeID{source, target, 0}
	if i, ok := g.edgeIndex[id]; ok {
		for k, v := range attrs {
			g.Edges[i].Attrs[k] = v
		}
		return nil
	}
	g.appendEdge(Edge{Source: source, Target: target, Attrs: attrs})
	return nil
}

// AddParallelEdge always adds a new edge between source and target, keyed
// after the existing ones, and returns its key.
func (g *Graph) AddParallelEdge(source, target string, attrs map[string]any) (int, error) {
	if err := g.checkEndpoints(source, target); err != nil {
		return 0, err
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	key := 0
	for {
		if _, taken := g.edgeIndex[edgeID{source, target, key}]; !taken {
			break
		}
		key++
	}
	g.appendEdge(Edge{Source: source, Target: target, Key: key, Attrs: attrs})
	return key, nil
}

func (g *Graph) checkEndpoints(source, target string) error {
	if g.nodeIndex == nil {
		g.reindex()
	}
	if _, ok := g.nodeIndex[source]; !ok {
		return fmt.Errorf("edge source %q not found", source)
	}
	if _, ok := g.nodeIndex[target]; !ok {
		return fmt.Errorf("edge target %q not found", target)
	}
	return nil
}

func (g *Graph) appendEdge(e Edge) {
	g.edgeIndex[edgeID{e.Source, e.Target, e.Key}] = len(g.Edges)
	g.Edges = append(g.Edges, e)
}

// Node returns the node with the given id. Lookups never mutate the graph.
func (g *Graph) Node(id string) (Node, bool) {
	if g.nodeIndex != nil {
		i, ok := g.nodeIndex[id]
		if !ok {
			return Node{}, false
		}
		return g.Nodes[i], true
	}
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Edge returns the edge with key 0 between source and target.
func (g *Graph) Edge(source, target string) (Edge, bool) {
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target && e.Key == 0 {
			return e, true
		}
	}
	return Edge{}, false
}

// EdgesBetween returns every edge from source to target in insertion order.
func (g *Graph) EdgesBetween(source, target string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			out = append(out, e)
		}
	}
	return out
}

// NodesOfType returns the ids of the nodes whose "type" attribute is typ.
func (g *Graph) NodesOfType(typ string) []string {
	var out []string
	for _, n := range g.Nodes {
		if n.Attrs["type"] == typ {
			out = append(out, n.ID)
		}
	}
	return out
}

// Validate checks that every edge endpoint is a node.
func (g *Graph) Validate() error {
	if g == nil {
		return fmt.Errorf("graph is nil")
	}
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node id is required")
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("duplicate node %q", n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	edges := make(map[edgeID]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		id := edgeID{e.Source, e.Target, e.Key}
		if _, dup := edges[id]; dup {
			return fmt.Errorf("duplicate edge %q -> %q with key %d", e.Source, e.Target, e.Key)
		}
		edges[id] = struct{}{}
		if _, ok := ids[e.Source]; !ok {
			return fmt.Errorf("edge source %q not found", e.Source)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("edge target %q not found", e.Target)
		}
	}
	return nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Attrs)+1)
	for k, v := range n.Attrs {
		out[k] = v
	}
	out["id"] = n.ID
	return json.Marshal(out)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, ok := raw["id"].(string)
	if !ok {
		return fmt.Errorf("node id must be a string")
	}
	delete(raw, "id")
	n.ID = id
	n.Attrs = raw
	return nil
}

func (e Edge) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Attrs)+2)
	for k, v := range e.Attrs {
		out[k] = v
	}
	out["source"] = e.Source
	out["target"] = e.Target
	out["key"] = e.Key
	return json.Marshal(out)
}

func (e *Edge) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	src, ok1 := raw["source"].(string)
	dst, ok2 := raw["target"].(string)
	if !ok1 || !ok2 {
		return fmt.Errorf("edge source and target must be strings")
	}
	var key int
	if k, ok := raw["key"]; ok {
		f, isNum := k.(float64)
		if !isNum || f != float64(int(f)) || f < 0 {
			return fmt.Errorf("edge key must be a non-negative integer")
		}
		key = int(f)
	}
	delete(raw, "source")
	delete(raw, "target")
	delete(raw, "key")
	e.Source, e.Target, e.Key, e.Attrs = src, dst, key, raw
	return nil
}
