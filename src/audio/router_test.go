package audio

import (
	"reflect"
	"testing"
)

func chainEdges(g *graph) []edge {
	var list []edge
	for _, e := range g.edgeList() {
		if e.owner == ownerGraphRouter {
			list = append(list, e)
		}
	}
	return list
}

// countPaths counts the simple audio paths from one node to another along
// edges owned by the graph router.
func countPaths(g *graph, from nodeID, to nodeID) int {
	onPath := map[nodeID]bool{}
	var walk func(id nodeID) int
	walk = func(id nodeID) int {
		if id == to {
			return 1
		}
		onPath[id] = true
		defer delete(onPath, id)
		count := 0
		for _, e := range outputsOf(g, id) {
			if e.owner != ownerGraphRouter || e.param != "" || onPath[e.to] {
				continue
			}
			count += walk(e.to)
		}
		return count
	}
	return walk(from)
}

func TestBypassInvariant(t *testing.T) {
	e := newTestEngine(t)
	n := e.nodes
	g := n.graph
	for mask := 0; mask < 8; mask++ {
		delay := mask&1 != 0
		distortion := mask&2 != 0
		reverb := mask&4 != 0
		expectNoError(t, e.SetEffectEnabled(EffectDelay, delay))
		expectNoError(t, e.SetEffectEnabled(EffectDistortion, distortion))
		expectNoError(t, e.SetEffectEnabled(EffectReverb, reverb))

		paths := 1
		if reverb {
			paths = 2 // dry and wet legs of the split
		}
		if got := countPaths(g, n.filter, n.master); got != paths {
			t.Errorf("mask %03b: expected %d paths filter -> master, but got %d", mask, paths, got)
		}
		stages := []struct {
			id nodeID
			on bool
		}{
			{n.delay, delay},
			{n.feedback, delay},
			{n.distortion, distortion},
			{n.convolver, reverb},
			{n.wet, reverb},
			{n.dry, reverb},
		}
		top := g.current.Load()
		for _, s := range stages {
			wired := len(outputsOf(g, s.id)) > 0
			if wired != s.on {
				t.Errorf("mask %03b: node %d wired=%v, enabled=%v", mask, s.id, wired, s.on)
			}
			if rendered := top.contains(g.nodes[s.id]); rendered != s.on {
				t.Errorf("mask %03b: node %d rendered=%v, enabled=%v", mask, s.id, rendered, s.on)
			}
			if s.on && countPaths(g, n.filter, s.id) == 0 {
				t.Errorf("mask %03b: node %d is not fed by the filter", mask, s.id)
			}
		}
		if mask == 0 {
			o, ok := g.edges[edgeKey{from: n.filter, to: n.master}]
			expectEqual(t, ok, true)
			expectEqual(t, o, ownerGraphRouter)
		}
	}
}

func TestDelayFeedbackPath(t *testing.T) {
	e := newTestEngine(t)
	n := e.nodes
	g := n.graph
	for i := 0; i < 3; i++ {
		expectNoError(t, e.SetEffectEnabled(EffectDelay, false))
		expectNoError(t, e.SetEffectEnabled(EffectDelay, true))
	}
	_, ok := g.edges[edgeKey{from: n.delay, to: n.feedback}]
	expectEqual(t, ok, true)
	_, ok = g.edges[edgeKey{from: n.feedback, to: n.delay}]
	expectEqual(t, ok, true)
	expectEqual(t, len(inputsOf(g, n.delay)), 2)
}

func TestRebuildIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	expectNoError(t, e.ToggleModulationTarget(2, 1, true))
	expectNoError(t, e.ToggleModulationTarget(3, 2, true))
	n := e.nodes
	g := n.graph

	modulationInputs := func() []int {
		counts := []int{len(inputsOf(g, n.filter))}
		for _, id := range n.generators {
			counts = append(counts, len(inputsOf(g, id)))
		}
		return counts
	}
	edges := chainEdges(g)
	masterInputs := len(inputsOf(g, n.master))
	modInputs := modulationInputs()
	nodeCount := len(g.nodes)
	gainCount := len(e.modulation.gains)

	for i := 0; i < 3; i++ {
		e.chain.rebuildChain()
		e.modulation.rebuildModulation()
	}
	if !reflect.DeepEqual(chainEdges(g), edges) {
		t.Errorf("chain edges changed after rebuild")
	}
	expectEqual(t, len(inputsOf(g, n.master)), masterInputs)
	if !reflect.DeepEqual(modulationInputs(), modInputs) {
		t.Errorf("expected modulation inputs %v, but got: %v", modInputs, modulationInputs())
	}
	expectEqual(t, len(g.nodes), nodeCount)
	expectEqual(t, len(e.modulation.gains), gainCount)
}

func TestToggleDoesNotAccumulateEdges(t *testing.T) {
	e := newTestEngine(t)
	n := e.nodes
	edges := len(e.nodes.graph.edges)
	for i := 0; i < 5; i++ {
		expectNoError(t, e.SetEffectEnabled(EffectReverb, i%2 == 0))
		expectNoError(t, e.SetEffectEnabled(EffectDistortion, i%2 == 1))
	}
	expectNoError(t, e.SetEffectEnabled(EffectReverb, true))
	expectNoError(t, e.SetEffectEnabled(EffectDistortion, false))
	expectEqual(t, len(n.graph.edges), edges)
}
