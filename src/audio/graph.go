package audio

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// ----- Node ----- //

// nodeID is a handle into the graph arena. Zero means "no handle".
type nodeID int

type stereo [channelNum][]float64

func newStereo() stereo {
	var s stereo
	for ch := range s {
		s[ch] = make([]float64, quantum)
	}
	return s
}

func (s stereo) clear() {
	for ch := range s {
		clear(s[ch])
	}
}

func (s stereo) add(src stereo) {
	for ch := range s {
		dst := s[ch]
		for i, v := range src[ch] {
			dst[i] += v
		}
	}
}

// block describes the render quantum being processed.
type block struct {
	frame int64
	time  float64
}

func (b *block) timeAt(i int) float64 {
	return b.time + float64(i)*secPerSample
}

type node interface {
	process(b *block, in stereo, out stereo)
	param(name string) *param
}

// feedbackNode produces its output before its input is known, which lets it
// sit inside a cycle. Its inputs are handed over by write after every other
// node of the block has been processed.
type feedbackNode interface {
	node
	write(b *block, in stereo)
}

// resetter is implemented by nodes with internal memory that must be flushed
// when they re-enter the rendered topology.
type resetter interface {
	reset()
}

// ----- Edge ----- //

type owner int

const (
	ownerNone owner = iota
	ownerGraphRouter
	ownerModulationRouter
)

func (o owner) String() string {
	switch o {
	case ownerGraphRouter:
		return "graph"
	case ownerModulationRouter:
		return "modulation"
	}
	return "none"
}

type edgeKey struct {
	from  nodeID
	to    nodeID
	param string
}

type edge struct {
	edgeKey
	owner owner
}

// ----- Graph ----- //

type graph struct {
	lastID  nodeID
	nodes   map[nodeID]node
	edges   map[edgeKey]owner
	sink    nodeID
	current atomic.Pointer[topology]
}

// newGraph returns an empty arena whose handles start after the given one.
func newGraph(after nodeID) *graph {
	return &graph{
		lastID: after,
		nodes:  make(map[nodeID]node),
		edges:  make(map[edgeKey]owner),
	}
}

// addNode registers n and returns a fresh handle. Handles are never reused,
// even after removeNode.
func (g *graph) addNode(n node) nodeID {
	g.lastID++
	g.nodes[g.lastID] = n
	return g.lastID
}

func (g *graph) removeNode(id nodeID) error {
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: remove unknown node %d", ErrNodeConnection, id)
	}
	for k := range g.edges {
		if k.from == id || k.to == id {
			delete(g.edges, k)
		}
	}
	delete(g.nodes, id)
	if g.sink == id {
		g.sink = 0
	}
	return nil
}

func (g *graph) has(id nodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *graph) connect(from, to nodeID, paramName string, o owner) error {
	if !g.has(from) {
		return fmt.Errorf("%w: unknown source %d", ErrNodeConnection, from)
	}
	dst, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("%w: unknown destination %d", ErrNodeConnection, to)
	}
	_, late := dst.(feedbackNode)
	if paramName != "" {
		if late {
			return fmt.Errorf("%w: cannot modulate parameters of a feedback node", ErrNodeConnection)
		}
		if dst.param(paramName) == nil {
			return fmt.Errorf("%w: node %d has no parameter %q", ErrNodeConnection, to, paramName)
		}
	}
	k := edgeKey{from: from, to: to, param: paramName}
	if _, exists := g.edges[k]; exists {
		return nil
	}
	if !late && g.reachable(to, from) {
		return fmt.Errorf("%w: %v edge %d -> %d would close a loop without delay", ErrNodeConnection, o, from, to)
	}
	g.edges[k] = o
	return nil
}

// reachable reports whether target can be reached from start by following
// edges that are not broken by a feedback node.
func (g *graph) reachable(start, target nodeID) bool {
	if start == target {
		return true
	}
	visited := map[nodeID]bool{start: true}
	stack := []nodeID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for k := range g.edges {
			if k.from != id || visited[k.to] {
				continue
			}
			if _, late := g.nodes[k.to].(feedbackNode); late {
				continue
			}
			if k.to == target {
				return true
			}
			visited[k.to] = true
			stack = append(stack, k.to)
		}
	}
	return false
}

// disconnectOutputs removes every edge sourced at id and owned by o.
func (g *graph) disconnectOutputs(id nodeID, o owner) error {
	if !g.has(id) {
		return fmt.Errorf("%w: disconnect unknown node %d", ErrNodeConnection, id)
	}
	for k, eo := range g.edges {
		if k.from == id && eo == o {
			delete(g.edges, k)
		}
	}
	return nil
}

func (g *graph) edgeList() []edge {
	list := make([]edge, 0, len(g.edges))
	for k, o := range g.edges {
		list = append(list, edge{edgeKey: k, owner: o})
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.from != b.from {
			return a.from < b.from
		}
		if a.to != b.to {
			return a.to < b.to
		}
		return a.param < b.param
	})
	return list
}

// ----- Topology ----- //

type modInput struct {
	param *param
	src   int
}

type step struct {
	id     nodeID
	n      node
	in     stereo
	out    stereo
	inputs []int
	mods   []modInput
}

// topology is an immutable processing plan for the render goroutine.
type topology struct {
	steps  []step
	writes []int
	sink   int
}

// publish compiles the nodes that feed the sink into a new topology and
// swaps it in atomically. Nodes that cannot reach the sink are not rendered.
func (g *graph) publish() {
	if g.sink == 0 {
		g.current.Store(nil)
		return
	}
	live := map[nodeID]bool{g.sink: true}
	stack := []nodeID{g.sink}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for k := range g.edges {
			if k.to == id && !live[k.from] {
				live[k.from] = true
				stack = append(stack, k.from)
			}
		}
	}

	// Kahn's algorithm over the live subgraph; edges into feedback nodes do
	// not constrain the order.
	indegree := make(map[nodeID]int, len(live))
	for id := range live {
		indegree[id] = 0
	}
	edges := g.edgeList()
	for _, e := range edges {
		if !live[e.from] || !live[e.to] {
			continue
		}
		if _, late := g.nodes[e.to].(feedbackNode); late {
			continue
		}
		indegree[e.to]++
	}
	var ready []nodeID
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	order := make([]nodeID, 0, len(live))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, e := range edges {
			if e.from != id || !live[e.to] {
				continue
			}
			if _, late := g.nodes[e.to].(feedbackNode); late {
				continue
			}
			indegree[e.to]--
			if indegree[e.to] == 0 {
				ready = append(ready, e.to)
			}
		}
	}

	index := make(map[nodeID]int, len(order))
	t := &topology{steps: make([]step, len(order))}
	for i, id := range order {
		index[id] = i
		t.steps[i] = step{id: id, n: g.nodes[id], in: newStereo(), out: newStereo()}
		if id == g.sink {
			t.sink = i
		}
		if _, late := g.nodes[id].(feedbackNode); late {
			t.writes = append(t.writes, i)
		}
	}
	for _, e := range edges {
		dst, ok := index[e.to]
		if !ok {
			continue
		}
		src, ok := index[e.from]
		if !ok {
			continue
		}
		s := &t.steps[dst]
		if e.param == "" {
			s.inputs = append(s.inputs, src)
		} else {
			s.mods = append(s.mods, modInput{param: s.n.param(e.param), src: src})
		}
	}
	g.current.Store(t)
}

func (t *topology) contains(n node) bool {
	for i := range t.steps {
		if t.steps[i].n == n {
			return true
		}
	}
	return false
}
