package workflow

import (
	"fmt"
	"sort"
)

// Node is the graph-side view of a step.
type Node struct {
	ID   string
	Step *Step
}

// Edge is the graph-side view of a transition.
type Edge struct {
	ID         string
	From       string
	To         string
	Transition *Transition
}

// Graph is an immutable execution view of a workflow: nodes, edges and a
// priority-ordered outgoing index. It is produced by BuildGraph on demand so
// the aggregate never holds a second copy of its own structure.
type Graph struct {
	entry    string
	nodes    map[string]*Node
	edges    map[string]*Edge
	outgoing map[string][]*Edge
}

// BuildGraph converts a validated workflow into its execution graph.
// Validation runs first; an invalid workflow never becomes a graph.
func BuildGraph(w *Workflow) (*Graph, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{
		entry:    w.EntryPoint(),
		nodes:    make(map[string]*Node, w.StepCount()),
		edges:    make(map[string]*Edge, w.TransitionCount()),
		outgoing: make(map[string][]*Edge),
	}
	for id, step := range w.Steps() {
		g.nodes[id] = &Node{ID: id, Step: step}
	}
	for id, t := range w.Transitions() {
		e := &Edge{ID: id, From: t.From, To: t.To, Transition: t}
		g.edges[id] = e
		g.outgoing[t.From] = append(g.outgoing[t.From], e)
	}
	for from := range g.outgoing {
		edges := g.outgoing[from]
		sort.Slice(edges, func(i, j int) bool {
			ti, tj := edges[i].Transition, edges[j].Transition
			if ti.Priority != tj.Priority {
				return ti.Priority > tj.Priority
			}
			return edges[i].ID < edges[j].ID
		})
	}
	return g, nil
}

// Entry returns the entry node ID.
func (g *Graph) Entry() string { return g.entry }

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes keyed by ID.
func (g *Graph) Nodes() map[string]*Node { return g.nodes }

// Outgoing returns the outgoing edges of a node in priority order.
func (g *Graph) Outgoing(nodeID string) []*Edge { return g.outgoing[nodeID] }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// MustNode returns a node or an error naming the missing ID.
func (g *Graph) MustNode(id string) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, NewError(ErrCodeInvalidGraph, fmt.Sprintf("node %q not found", id))
	}
	return n, nil
}
