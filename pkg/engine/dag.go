package engine

import (
	"fmt"
	"strings"
)

// ActionGraph is the dependsOn graph of a validated runbook. Nodes are
// indexes into the declared action list.
type ActionGraph struct {
	actions []Action

	// index maps action ids to declared positions
	index map[string]int

	// dependents maps a node to the nodes that depend on it
	dependents [][]int

	// inDegree tracks the number of unresolved dependencies of each node
	inDegree []int
}

// NewActionGraph builds the graph for actions. Dependencies must already
// resolve; see ValidateRunbook.
func NewActionGraph(actions []Action) (*ActionGraph, error) {
	g := &ActionGraph{
		actions:    actions,
		index:      make(map[string]int, len(actions)),
		dependents: make([][]int, len(actions)),
		inDegree:   make([]int, len(actions)),
	}

	for i, a := range actions {
		g.index[a.ActionID()] = i
	}

	for i, a := range actions {
		for _, dep := range a.Dependencies() {
			j, ok := g.index[dep]
			if !ok {
				return nil, NewPermanentError(
					fmt.Sprintf("action %s depends on non-existent action %s", a.ActionID(), dep), nil,
				).WithCode(ErrCodeValidation).WithAction(a.ActionID())
			}
			g.dependents[j] = append(g.dependents[j], i)
			g.inDegree[i]++
		}
	}

	return g, nil
}

// Sorted returns the actions in dependency order. Among actions whose
// dependencies are satisfied, the one declared first comes first, so an
// already ordered runbook is returned unchanged.
func (g *ActionGraph) Sorted() ([]Action, error) {
	if cycle := g.findCycle(); cycle != nil {
		return nil, &ValidationError{
			Problems: []string{"circular dependency detected: " + strings.Join(cycle, " -> ")},
		}
	}

	inDegree := make([]int, len(g.inDegree))
	copy(inDegree, g.inDegree)

	ready := make([]int, 0, len(g.actions))
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	sorted := make([]Action, 0, len(g.actions))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		sorted = append(sorted, g.actions[next])

		for _, dependent := range g.dependents[next] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(sorted) != len(g.actions) {
		return nil, NewPermanentError("failed to order all actions", nil).WithCode(ErrCodeInternal)
	}
	return sorted, nil
}

func insertSorted(s []int, v int) []int {
	i := len(s)
	for i > 0 && s[i-1] > v {
		i--
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// findCycle returns the ids along one dependency cycle, or nil.
func (g *ActionGraph) findCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, len(g.actions))
	path := make([]int, 0, len(g.actions))

	var visit func(n int) []int
	visit = func(n int) []int {
		state[n] = onStack
		path = append(path, n)
		for _, next := range g.dependents[n] {
			switch state[next] {
			case unvisited:
				if c := visit(next); c != nil {
					return c
				}
			case onStack:
				for i, p := range path {
					if p == next {
						return append(append([]int{}, path[i:]...), next)
					}
				}
			}
		}
		path = path[:len(path)-1]
		state[n] = done
		return nil
	}

	for i := range g.actions {
		if state[i] != unvisited {
			continue
		}
		if c := visit(i); c != nil {
			ids := make([]string, len(c))
			for k, n := range c {
				ids[k] = g.actions[n].ActionID()
			}
			return ids
		}
	}
	return nil
}

// ToDOT renders the graph in Graphviz DOT format. Edges point from a
// dependency to its dependent.
func (g *ActionGraph) ToDOT(name string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "digraph %q {\n", name)
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=\"filled,rounded\"];\n\n")

	for _, a := range g.actions {
		label := fmt.Sprintf("%s\\n%s", a.ActionID(), a.ActionKind())
		fmt.Fprintf(&sb, "  %q [label=\"%s\", fillcolor=\"%s\"];\n", a.ActionID(), label, kindColor(a.ActionKind()))
	}
	sb.WriteString("\n")

	for i, a := range g.actions {
		for _, dependent := range g.dependents[i] {
			fmt.Fprintf(&sb, "  %q -> %q;\n", a.ActionID(), g.actions[dependent].ActionID())
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func kindColor(kind ActionKind) string {
	switch kind {
	case ActionKindEnsure:
		return "lightgreen"
	case ActionKindDelete:
		return "lightcoral"
	default:
		return "white"
	}
}
