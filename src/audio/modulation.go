package audio

import (
	"log"
)

// Modulation depth scaling factors.
const (
	generatorDepthScale     = 0.25
	filterDepthScale        = 0.5
	filterSharedDepthFactor = 0.3
	filterSoleDepthFactor   = 1.0
	depthEstimateScale      = 0.5
)

// ----- Modulation Target ----- //

// modTarget is 0 for the filter cutoff and the generator id otherwise.
type modTarget int

const targetFilter modTarget = 0

type modKey struct {
	mod    int
	target modTarget
}

// ----- Modulation Router ----- //

// modulationRouter owns modulator output edges and one scaling gain node
// per (modulator, target) pair.
type modulationRouter struct {
	graph *graph
	nodes *nodeSet
	state *Patch
	gains map[modKey]nodeID
}

func newModulationRouter(g *graph, nodes *nodeSet, state *Patch) *modulationRouter {
	return &modulationRouter{
		graph: g,
		nodes: nodes,
		state: state,
		gains: make(map[modKey]nodeID),
	}
}

func (r *modulationRouter) rebuildModulation() {
	for m := 1; m <= modulatorCount; m++ {
		r.rebuildModulator(m)
	}
	r.graph.publish()
}

func (r *modulationRouter) rebuildModulator(m int) {
	for k, id := range r.gains {
		if k.mod != m {
			continue
		}
		if err := r.graph.removeNode(id); err != nil {
			log.Printf("rebuildModulation: %v\n", err)
		}
		delete(r.gains, k)
	}
	if err := r.graph.disconnectOutputs(r.nodes.modulators[m-1], ownerModulationRouter); err != nil {
		log.Printf("rebuildModulation: %v\n", err)
	}
	mod := r.state.Modulators[m-1]
	if !mod.Enabled {
		return
	}
	depth := mod.DepthPercent / 100
	connected := 0
	for i, g := range r.state.Generators {
		if !g.Targets(m) {
			continue
		}
		gain := g.FrequencyHz * depth * generatorDepthScale
		if r.attach(m, modTarget(g.ID), gain, r.nodes.generators[i]) {
			connected++
		}
	}
	factor := filterSoleDepthFactor
	if connected > 0 {
		factor = filterSharedDepthFactor
	}
	gain := r.state.Effects.Filter.CutoffHz * depth * factor * filterDepthScale
	r.attach(m, targetFilter, gain, r.nodes.filter)
}

// attach creates the scaling gain for (m, t) and wires
// modulator -> gain -> target frequency.
func (r *modulationRouter) attach(m int, t modTarget, gain float64, target nodeID) bool {
	id := r.graph.addNode(newGainNode(gain))
	r.gains[modKey{mod: m, target: t}] = id
	if err := r.graph.connect(r.nodes.modulators[m-1], id, "", ownerModulationRouter); err != nil {
		log.Printf("rebuildModulation: %v\n", err)
		return false
	}
	if err := r.graph.connect(id, target, "frequency", ownerModulationRouter); err != nil {
		log.Printf("rebuildModulation: %v\n", err)
		return false
	}
	return true
}

// computeDepth estimates the excursion of modulator m: relative to the
// first generator it drives, or to the filter cutoff when it drives none.
func (p *Patch) computeDepth(m int) float64 {
	depth := p.Modulators[m-1].DepthPercent / 100
	for _, g := range p.Generators {
		if g.Targets(m) {
			return g.FrequencyHz * depth * depthEstimateScale
		}
	}
	return p.Effects.Filter.CutoffHz * depth
}
