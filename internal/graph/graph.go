// Package graph turns declared nodes and their dependency references into a
// node/edge graph.
//
// # Passes
//
// Build runs two passes over a config.Model, mirroring how the model is read:
//
//  1. Node pass: every declaration is registered through RegisterNode, which
//     builds the node from the registry and rejects duplicate names.
//  2. Edge pass: every declaration's dependencies are resolved through
//     RegisterEdgesFromDeclaration, once all nodes exist.
//
// Problems are collected per pass, so a model with three typos reports all
// three. A failing pass stops the build and nothing is returned.
//
// # Edge kinds
//
// `inflows` produce Aggregated edges, `source` a Single edge and `connection`
// records Explicit edges. Independently of its kind, an edge whose target
// type breaks cycles is flagged Lagged: it reads the previous timestep and is
// ignored when ordering.
//
// The graph is not checked for cycles here; that is the scheduler's job.
package graph

import (
	"fmt"

	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// EdgeKind is the declaration shape an edge came from.
type EdgeKind int

const (
	Aggregated EdgeKind = iota + 1
	Single
	Explicit
)

func (k EdgeKind) String() string {
	switch k {
	case Aggregated:
		return "aggregated"
	case Single:
		return "single"
	case Explicit:
		return "explicit"
	}
	return "unknown"
}

// Edge moves one output of Source into one input of Target each timestep.
type Edge struct {
	Source       string
	SourceOutput string
	Target       string
	TargetInput  string
	Kind         EdgeKind
	// Policy is set for aggregated edges.
	Policy registry.Policy
	// Lagged edges read the source's previous-timestep snapshot.
	Lagged bool
	// Seq is the position of the edge in declaration order.
	Seq int
}

func (e *Edge) String() string {
	s := fmt.Sprintf("%s.%s -> %s.%s (%s", e.Source, e.SourceOutput, e.Target, e.TargetInput, e.Kind)
	if e.Lagged {
		s += ", lagged"
	}
	return s + ")"
}

// Entry is a node registered in the graph.
type Entry struct {
	Node  node.Node
	Spec  *registry.Spec
	Index int
}

// Name is the node name.
func (e *Entry) Name() string { return e.Node.Name() }

// Graph is the set of nodes and edges, in declaration order.
type Graph struct {
	entries  []*Entry
	byName   map[string]*Entry
	edges    []*Edge
	incoming map[string][]*Edge
	outgoing map[string][]*Edge
}

func newGraph() *Graph {
	return &Graph{
		byName:   map[string]*Entry{},
		incoming: map[string][]*Edge{},
		outgoing: map[string][]*Edge{},
	}
}

// Nodes returns the entries in declaration order.
func (g *Graph) Nodes() []*Entry {
	return append([]*Entry(nil), g.entries...)
}

// Node returns the entry with the given name.
func (g *Graph) Node(name string) (*Entry, bool) {
	e, ok := g.byName[name]
	return e, ok
}

// Names returns node names in declaration order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.Name()
	}
	return out
}

// Len is the number of nodes.
func (g *Graph) Len() int { return len(g.entries) }

// Edges returns every edge in declaration order.
func (g *Graph) Edges() []*Edge {
	return append([]*Edge(nil), g.edges...)
}

// Incoming returns the edges feeding name, in declaration order.
func (g *Graph) Incoming(name string) []*Edge {
	return append([]*Edge(nil), g.incoming[name]...)
}

// Outgoing returns the edges leaving name, in declaration order.
func (g *Graph) Outgoing(name string) []*Edge {
	return append([]*Edge(nil), g.outgoing[name]...)
}

func (g *Graph) addEntry(e *Entry) {
	e.Index = len(g.entries)
	g.entries = append(g.entries, e)
	g.byName[e.Name()] = e
}

func (g *Graph) addEdge(e *Edge) {
	e.Seq = len(g.edges)
	g.edges = append(g.edges, e)
	g.incoming[e.Target] = append(g.incoming[e.Target], e)
	g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
}
