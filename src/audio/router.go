package audio

import (
	"log"
)

// ----- Graph Router ----- //

// graphRouter owns the audio edges: generators into the filter and the
// effect chain from the filter to the master.
type graphRouter struct {
	graph *graph
	nodes *nodeSet
	state *Patch
}

// rebuildChain drops every edge the router owns and wires
// filter -> [delay] -> [distortion] -> [reverb split] -> master from the
// current enable flags. Disabled effects are left out of the chain.
func (r *graphRouter) rebuildChain() {
	n := r.nodes
	owned := []nodeID{n.filter, n.delay, n.feedback, n.distortion, n.convolver, n.wet, n.dry}
	owned = append(owned, n.generators[:]...)
	owned = append(owned, n.gates[:]...)
	for _, id := range owned {
		if err := r.graph.disconnectOutputs(id, ownerGraphRouter); err != nil {
			log.Printf("rebuildChain: %v\n", err)
		}
	}

	for i := range n.generators {
		r.connect(n.generators[i], n.gates[i])
		r.connect(n.gates[i], n.filter)
	}
	fx := r.state.Effects
	current := n.filter
	if fx.Delay.Enabled {
		r.connect(current, n.delay)
		r.connect(n.delay, n.feedback)
		r.connect(n.feedback, n.delay)
		current = n.delay
	}
	if fx.Distortion.Enabled {
		r.connect(current, n.distortion)
		current = n.distortion
	}
	if fx.Reverb.Enabled {
		r.connect(current, n.convolver)
		r.connect(n.convolver, n.wet)
		r.connect(current, n.dry)
		r.connect(n.wet, n.master)
		r.connect(n.dry, n.master)
	} else {
		r.connect(current, n.master)
	}
	r.graph.publish()
}

func (r *graphRouter) connect(from nodeID, to nodeID) {
	if err := r.graph.connect(from, to, "", ownerGraphRouter); err != nil {
		log.Printf("rebuildChain: %v\n", err)
	}
}
