package audio

import (
	"testing"
)

type constNode struct {
	value float64
}

func (c *constNode) param(string) *param {
	return nil
}

func (c *constNode) process(_ *block, _ stereo, out stereo) {
	for ch := range out {
		for i := range out[ch] {
			out[ch][i] = c.value
		}
	}
}

func inputsOf(g *graph, id nodeID) []edge {
	var list []edge
	for _, e := range g.edgeList() {
		if e.to == id {
			list = append(list, e)
		}
	}
	return list
}

func outputsOf(g *graph, id nodeID) []edge {
	var list []edge
	for _, e := range g.edgeList() {
		if e.from == id {
			list = append(list, e)
		}
	}
	return list
}

func TestConnect(t *testing.T) {
	g := newGraph(0)
	a := g.addNode(newGainNode(1))
	b := g.addNode(newGainNode(1))
	expectNoError(t, g.connect(a, b, "", ownerGraphRouter))
	expectNoError(t, g.connect(a, b, "", ownerGraphRouter))
	expectEqual(t, len(g.edges), 1)
	expectNoError(t, g.connect(a, b, "gain", ownerModulationRouter))
	expectEqual(t, len(g.edges), 2)
	expectEqual(t, len(inputsOf(g, b)), 2)
}

func TestConnectRejectsBadEdges(t *testing.T) {
	g := newGraph(0)
	a := g.addNode(newGainNode(1))
	b := g.addNode(newGainNode(1))
	d := g.addNode(newDelayNode(0.1))
	expectError(t, g.connect(a, 99, "", ownerGraphRouter), ErrNodeConnection)
	expectError(t, g.connect(99, a, "", ownerGraphRouter), ErrNodeConnection)
	expectError(t, g.connect(a, b, "frequency", ownerModulationRouter), ErrNodeConnection)
	expectError(t, g.connect(a, d, "delayTime", ownerModulationRouter), ErrNodeConnection)
	expectEqual(t, len(g.edges), 0)
}

func TestConnectRejectsLoopWithoutDelay(t *testing.T) {
	g := newGraph(0)
	a := g.addNode(newGainNode(1))
	b := g.addNode(newGainNode(1))
	d := g.addNode(newDelayNode(0.1))
	expectNoError(t, g.connect(a, b, "", ownerGraphRouter))
	expectError(t, g.connect(b, a, "", ownerGraphRouter), ErrNodeConnection)
	expectError(t, g.connect(a, a, "", ownerGraphRouter), ErrNodeConnection)

	expectNoError(t, g.connect(b, d, "", ownerGraphRouter))
	expectNoError(t, g.connect(d, a, "", ownerGraphRouter))
	expectEqual(t, len(g.edges), 3)
}

func TestDisconnectOutputs(t *testing.T) {
	g := newGraph(0)
	a := g.addNode(newGainNode(1))
	b := g.addNode(newGainNode(1))
	c := g.addNode(newGainNode(1))
	expectNoError(t, g.connect(a, b, "", ownerGraphRouter))
	expectNoError(t, g.connect(a, c, "gain", ownerModulationRouter))
	expectNoError(t, g.disconnectOutputs(a, ownerGraphRouter))
	list := outputsOf(g, a)
	expectEqual(t, len(list), 1)
	expectEqual(t, list[0].owner, ownerModulationRouter)
	expectError(t, g.disconnectOutputs(99, ownerGraphRouter), ErrNodeConnection)
}

func TestRemoveNode(t *testing.T) {
	g := newGraph(0)
	a := g.addNode(newGainNode(1))
	b := g.addNode(newGainNode(1))
	expectNoError(t, g.connect(a, b, "", ownerGraphRouter))
	expectNoError(t, g.removeNode(b))
	expectEqual(t, len(g.edges), 0)
	expectEqual(t, g.has(b), false)
	expectError(t, g.removeNode(b), ErrNodeConnection)
	c := g.addNode(newGainNode(1))
	if c <= b {
		t.Errorf("handle %d reused", c)
	}
}

func TestPublishOrder(t *testing.T) {
	g := newGraph(0)
	src := g.addNode(&constNode{value: 1})
	orphan := g.addNode(&constNode{value: 1})
	sink := g.addNode(newGainNode(1))
	mid := g.addNode(newGainNode(0.5))
	expectNoError(t, g.connect(mid, sink, "", ownerGraphRouter))
	expectNoError(t, g.connect(src, mid, "", ownerGraphRouter))
	g.sink = sink
	g.publish()

	top := g.current.Load()
	expectEqual(t, len(top.steps), 3)
	expectEqual(t, top.steps[0].id, src)
	expectEqual(t, top.steps[1].id, mid)
	expectEqual(t, top.steps[2].id, sink)
	expectEqual(t, top.steps[top.sink].id, sink)
	expectEqual(t, top.contains(g.nodes[orphan]), false)

	top.render(&block{})
	expectEqual(t, top.steps[top.sink].out[0][0], 0.5)
	expectEqual(t, top.steps[top.sink].out[1][quantum-1], 0.5)
}

func TestPublishWithoutSink(t *testing.T) {
	g := newGraph(0)
	g.addNode(newGainNode(1))
	g.publish()
	if g.current.Load() != nil {
		t.Errorf("expected no topology without a sink")
	}
}

func TestRenderFeedbackLoop(t *testing.T) {
	g := newGraph(0)
	src := g.addNode(&constNode{value: 1})
	d := g.addNode(newDelayNode(minDelayTime))
	fb := g.addNode(newGainNode(0.5))
	sink := g.addNode(newGainNode(1))
	expectNoError(t, g.connect(src, d, "", ownerGraphRouter))
	expectNoError(t, g.connect(d, fb, "", ownerGraphRouter))
	expectNoError(t, g.connect(fb, d, "", ownerGraphRouter))
	expectNoError(t, g.connect(d, sink, "", ownerGraphRouter))
	g.sink = sink
	g.publish()

	top := g.current.Load()
	expectEqual(t, len(top.writes), 1)
	expected := []float64{0, 1, 1.5, 1.75, 1.875}
	for i, v := range expected {
		b := &block{frame: int64(i * quantum), time: float64(i*quantum) * secPerSample}
		top.render(b)
		expectNearlyEqual(t, top.steps[top.sink].out[0][0], v)
		expectNearlyEqual(t, top.steps[top.sink].out[1][quantum/2], v)
	}
}

func TestModulationEdgeAddsToParam(t *testing.T) {
	g := newGraph(0)
	src := g.addNode(&constNode{value: 1})
	amount := g.addNode(&constNode{value: 0.25})
	sink := g.addNode(newGainNode(1))
	expectNoError(t, g.connect(src, sink, "", ownerGraphRouter))
	expectNoError(t, g.connect(amount, sink, "gain", ownerModulationRouter))
	g.sink = sink
	g.publish()
	top := g.current.Load()
	top.render(&block{})
	expectEqual(t, top.steps[top.sink].out[0][7], 1.25)
}

func TestNodesEnteringTopologyAreReset(t *testing.T) {
	g := newGraph(0)
	src := g.addNode(&constNode{value: 1})
	d := g.addNode(newDelayNode(minDelayTime))
	sink := g.addNode(newGainNode(1))
	expectNoError(t, g.connect(src, d, "", ownerGraphRouter))
	expectNoError(t, g.connect(d, sink, "", ownerGraphRouter))
	g.sink = sink
	g.publish()
	first := g.current.Load()
	first.render(&block{})

	// take the delay out and put it back
	expectNoError(t, g.disconnectOutputs(d, ownerGraphRouter))
	expectNoError(t, g.connect(src, sink, "", ownerGraphRouter))
	g.publish()
	bypass := g.current.Load()
	resetEntering(first, bypass)
	expectNoError(t, g.disconnectOutputs(src, ownerGraphRouter))
	expectNoError(t, g.connect(src, d, "", ownerGraphRouter))
	expectNoError(t, g.connect(d, sink, "", ownerGraphRouter))
	g.publish()
	again := g.current.Load()
	resetEntering(bypass, again)
	again.render(&block{frame: quantum, time: quantum * secPerSample})
	expectEqual(t, again.steps[again.sink].out[0][0], 0.0)
}
