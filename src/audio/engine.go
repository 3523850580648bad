package audio

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	generatorGain     = 0.33
	gateTime          = 0.01 // sec
	gateFloor         = 0.001
	gateSettle        = 0.001 // sec after gateTime
	masterRampTime    = 0.05
	filterRampTime    = 0.05
	delayRampTime     = 0.1
	reverbRampTime    = 0.1
	filterFloor       = 20.0
	filterOpenFreq    = 20000.0
	filterOpenQ       = 0.1
	maxFeedbackGain   = 0.95
	defaultQueueSize  = 1024
	stateChangeSignal = "state"
)

// ----- Lifecycle ----- //

// LifecycleState ...
type LifecycleState int

// Lifecycle states
const (
	Uninitialized LifecycleState = iota
	Running
	Suspended
	Closed
)

func (s LifecycleState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("lifecycle(%d)", int(s))
}

// ----- Changes ----- //

// Changes collects keys of things that changed since a reporter last looked.
type Changes struct {
	sync.Mutex
	dict map[string]struct{}
}

func newChanges() *Changes {
	return &Changes{dict: make(map[string]struct{})}
}

// Add ...
func (c *Changes) Add(key string) {
	c.Lock()
	c.dict[key] = struct{}{}
	c.Unlock()
}

// Has ...
func (c *Changes) Has(key string) bool {
	c.Lock()
	_, ok := c.dict[key]
	c.Unlock()
	return ok
}

// Delete ...
func (c *Changes) Delete(key string) {
	c.Lock()
	delete(c.dict, key)
	c.Unlock()
}

// ----- Node Set ----- //

// nodeSet holds the live node handles. The engine keeps a nil *nodeSet
// whenever no render engine exists.
type nodeSet struct {
	graph      *graph
	generators [generatorCount]nodeID
	gates      [generatorCount]nodeID
	modulators [modulatorCount]nodeID
	filter     nodeID
	delay      nodeID
	feedback   nodeID
	distortion nodeID
	convolver  nodeID
	wet        nodeID
	dry        nodeID
	master     nodeID
}

func (s *nodeSet) oscillator(id nodeID) *oscillator {
	return s.graph.nodes[id].(*oscillator)
}

func (s *nodeSet) gain(id nodeID) *gainNode {
	return s.graph.nodes[id].(*gainNode)
}

func (s *nodeSet) filterNode() *biquadFilter {
	return s.graph.nodes[s.filter].(*biquadFilter)
}

func (s *nodeSet) delayNode() *delayNode {
	return s.graph.nodes[s.delay].(*delayNode)
}

func (s *nodeSet) waveshaper() *waveshaperNode {
	return s.graph.nodes[s.distortion].(*waveshaperNode)
}

// ----- Engine ----- //

// Engine is the synthesizer core: it owns the patch, the node graph, both
// routers and the render clock. All methods are safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	lifecycle  LifecycleState
	state      Patch
	nodes      *nodeSet
	chain      *graphRouter
	modulation *modulationRouter
	renderer   *renderer
	scheduler  *scheduler
	device     device
	pumpDone   chan struct{}
	lastNodeID nodeID

	newDevice func() (device, error)
	rnd       *rand.Rand
	queueSize int

	Changes *Changes
}

// Option configures an Engine.
type Option func(*Engine)

// WithHeadlessOutput makes the engine render only when pulled explicitly,
// without opening an audio device.
func WithHeadlessOutput() Option {
	return func(e *Engine) {
		e.newDevice = newHeadlessDevice
	}
}

// WithRand sets the random source used for chaos, randomization and the
// reverb impulse.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rnd = r
	}
}

// WithQueueSize sets the capacity of the parameter-update queue.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		e.queueSize = n
	}
}

func withDevice(f func() (device, error)) Option {
	return func(e *Engine) {
		e.newDevice = f
	}
}

// NewEngine returns an uninitialized engine holding the default patch.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		state:     DefaultPatch(),
		newDevice: newOtoDevice,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		queueSize: defaultQueueSize,
		Changes:   newChanges(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lifecycle ...
func (e *Engine) Lifecycle() LifecycleState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lifecycle
}

// Initialize opens the output device, creates every node once, wires the
// initial topology and starts rendering. It does nothing when the engine is
// already initialized.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lifecycle == Running || e.lifecycle == Suspended {
		return nil
	}
	dev, err := e.newDevice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlatformUnavailable, err)
	}
	g := newGraph(e.lastNodeID)
	nodes, err := e.createNodes(g)
	if err != nil {
		if err := dev.close(); err != nil {
			log.Printf("failed to close audio device: %v\n", err)
		}
		return err
	}
	queue := make(chan paramBatch, e.queueSize)
	e.renderer = newRenderer(&g.current, queue)
	e.scheduler = newScheduler(e.renderer, queue)
	e.nodes = nodes
	e.chain = &graphRouter{graph: g, nodes: e.nodes, state: &e.state}
	e.modulation = newModulationRouter(g, e.nodes, &e.state)
	e.chain.rebuildChain()
	e.modulation.rebuildModulation()

	e.device = dev
	e.pumpDone = make(chan struct{})
	go e.pump(dev, e.renderer, e.pumpDone)
	e.lifecycle = Running
	e.Changes.Add(stateChangeSignal)
	log.Println("engine initialized")
	return nil
}

func (e *Engine) pump(dev device, r *renderer, done chan struct{}) {
	defer close(done)
	if err := dev.start(r); err != nil {
		log.Printf("audio device stopped: %v\n", err)
	}
}

func (e *Engine) createNodes(g *graph) (*nodeSet, error) {
	s := &nodeSet{graph: g}
	for i, gen := range e.state.Generators {
		s.generators[i] = g.addNode(newOscillator(gen.Waveform, gen.FrequencyHz))
		s.gates[i] = g.addNode(newGainNode(gateLevel(gen.Enabled)))
	}
	for i, mod := range e.state.Modulators {
		s.modulators[i] = g.addNode(newOscillator(WaveSine, mod.FrequencyHz))
	}
	fx := e.state.Effects
	cutoff, q := filterTarget(fx.Filter)
	s.filter = g.addNode(newBiquadFilter(cutoff, q))
	s.delay = g.addNode(newDelayNode(fx.Delay.TimeSec))
	s.feedback = g.addNode(newGainNode(effectiveFeedback(fx.Delay.Feedback)))
	s.distortion = g.addNode(newWaveshaperNode(makeDistortionCurve(fx.Distortion.Amount, fx.Distortion.Enabled)))
	ir := makeReverbImpulse(e.rnd, reverbDuration)
	normalizeImpulse(ir)
	convolver, err := newConvolverNode(ir)
	if err != nil {
		return nil, err
	}
	s.convolver = g.addNode(convolver)
	wet, dry := reverbMix(fx.Reverb)
	s.wet = g.addNode(newGainNode(wet))
	s.dry = g.addNode(newGainNode(dry))
	s.master = g.addNode(newGainNode(e.state.Master.Volume))
	g.sink = s.master
	return s, nil
}

// Suspend pauses the render clock. The topology is left untouched.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.lifecycle {
	case Suspended:
		return nil
	case Running:
		e.renderer.suspended.Store(true)
		e.lifecycle = Suspended
		return nil
	}
	return fmt.Errorf("%w: cannot suspend while %v", ErrNotInitialized, e.lifecycle)
}

// Resume restarts a suspended render clock.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.lifecycle {
	case Running:
		return nil
	case Suspended:
		e.renderer.suspended.Store(false)
		e.lifecycle = Running
		return nil
	}
	return fmt.Errorf("%w: cannot resume while %v", ErrNotInitialized, e.lifecycle)
}

// Close tears the render engine down and returns the patch to its
// defaults. A later Initialize creates fresh node handles.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	log.Println("Closing engine...")
	var err error
	if e.nodes != nil {
		e.renderer.closed.Store(true)
		err = e.device.close()
		<-e.pumpDone
		e.lastNodeID = e.nodes.graph.lastID
		e.nodes.graph.current.Store(nil)
	}
	e.nodes = nil
	e.chain = nil
	e.modulation = nil
	e.renderer = nil
	e.scheduler = nil
	e.device = nil
	e.pumpDone = nil
	e.state = DefaultPatch()
	e.lifecycle = Closed
	e.Changes.Add(stateChangeSignal)
	return err
}

// ----- Snapshots ----- //

// Snapshot returns a copy of the current patch.
func (e *Engine) Snapshot() Patch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ChaosGrid returns a copy of the chaos grid.
func (e *Engine) ChaosGrid() ChaosGrid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ChaosGrid
}

// Spectrum returns the magnitude spectrum of the master output, or nil
// when nothing is rendering.
func (e *Engine) Spectrum() []float64 {
	e.mu.Lock()
	r := e.renderer
	e.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.tap.spectrum()
}

// ComputeDepth estimates the absolute excursion of modulator modID for
// display. Wiring gains are computed separately by the modulation router.
func (e *Engine) ComputeDepth(modID int) (float64, error) {
	if err := validateModulatorID(modID); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.computeDepth(modID), nil
}

// ----- Setters ----- //

// SetGeneratorFrequency retunes a generator. Modulation routed into it is
// rescaled to the new frequency.
func (e *Engine) SetGeneratorFrequency(id int, hz float64) error {
	if err := validateGeneratorID(id); err != nil {
		return err
	}
	if err := validateGeneratorFrequency(hz); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Generators[id-1].FrequencyHz = hz
	if e.nodes != nil {
		e.scheduler.set(e.nodes.oscillator(e.nodes.generators[id-1]).frequency, hz)
	}
	// modulation gains scale with the nominal frequency
	e.rebuildModulation()
	e.Changes.Add(stateChangeSignal)
	return nil
}

// SetGeneratorWaveform ...
func (e *Engine) SetGeneratorWaveform(id int, w Waveform) error {
	if err := validateGeneratorID(id); err != nil {
		return err
	}
	if !w.valid() {
		return invalid("waveform %d", int(w))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Generators[id-1].Waveform = w
	if e.nodes != nil {
		e.nodes.oscillator(e.nodes.generators[id-1]).setWaveform(w)
	}
	e.Changes.Add(stateChangeSignal)
	return nil
}

// SetGeneratorEnabled opens or closes the generator's gate.
func (e *Engine) SetGeneratorEnabled(id int, on bool) error {
	if err := validateGeneratorID(id); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Generators[id-1].Enabled = on
	e.applyGate(id - 1)
	e.Changes.Add(stateChangeSignal)
	return nil
}

// SetModulatorFrequency ...
func (e *Engine) SetModulatorFrequency(id int, hz float64) error {
	if err := validateModulatorID(id); err != nil {
		return err
	}
	if err := validateModulatorFrequency(hz); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Modulators[id-1].FrequencyHz = hz
	if e.nodes != nil {
		e.scheduler.set(e.nodes.oscillator(e.nodes.modulators[id-1]).frequency, hz)
	}
	e.Changes.Add(stateChangeSignal)
	return nil
}

// SetModulatorDepth ...
func (e *Engine) SetModulatorDepth(id int, pct float64) error {
	if err := validateModulatorID(id); err != nil {
		return err
	}
	if err := validateDepth(pct); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Modulators[id-1].DepthPercent = pct
	e.rebuildModulation()
	e.Changes.Add(stateChangeSignal)
	return nil
}

// SetModulatorEnabled ...
func (e *Engine) SetModulatorEnabled(id int, on bool) error {
	if err := validateModulatorID(id); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Modulators[id-1].Enabled = on
	e.rebuildModulation()
	e.Changes.Add(stateChangeSignal)
	return nil
}

// ToggleModulationTarget routes modulator modID to generator genID or
// removes that route.
func (e *Engine) ToggleModulationTarget(genID int, modID int, on bool) error {
	if err := validateGeneratorID(genID); err != nil {
		return err
	}
	if err := validateModulatorID(modID); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Generators[genID-1].setTarget(modID, on)
	e.rebuildModulation()
	e.Changes.Add(stateChangeSignal)
	return nil
}

// SetEffectEnabled inserts or bypasses an effect. The filter is never
// removed from the chain; disabling it opens it up instead.
func (e *Engine) SetEffectEnabled(kind EffectKind, on bool) error {
	if kind < EffectFilter || kind > EffectReverb {
		return invalid("unknown effect %v", kind)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Effects.setEnabled(kind, on)
	e.applyEffect(kind)
	if kind != EffectFilter && e.chain != nil {
		e.chain.rebuildChain()
	}
	e.Changes.Add(stateChangeSignal)
	return nil
}

// SetEffectParam sets one named parameter: filter cutoff|q, delay
// time|feedback, distortion amount, reverb wet.
func (e *Engine) SetEffectParam(kind EffectKind, name string, value float64) error {
	if err := validateEffectParam(kind, name, value); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Effects.setParam(kind, name, value)
	e.applyEffect(kind)
	if kind == EffectFilter && name == "cutoff" {
		e.rebuildModulation()
	}
	e.Changes.Add(stateChangeSignal)
	return nil
}

// SetMasterVolume ...
func (e *Engine) SetMasterVolume(v float64) error {
	if err := validateVolume(v); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Master.Volume = v
	if e.nodes != nil {
		e.scheduler.ramp(e.nodes.gain(e.nodes.master).gain, eventLinear, v, masterRampTime)
	}
	e.Changes.Add(stateChangeSignal)
	return nil
}

// ----- Mirroring ----- //

func gateLevel(enabled bool) float64 {
	if enabled {
		return generatorGain
	}
	return 0
}

// filterTarget returns the cutoff and Q the filter node should settle on.
func filterTarget(f FilterState) (float64, float64) {
	if !f.Enabled {
		return filterOpenFreq, filterOpenQ
	}
	return math.Max(filterFloor, f.CutoffHz), f.Q
}

func effectiveFeedback(feedback float64) float64 {
	return math.Min(feedback, maxFeedbackGain)
}

// reverbMix returns complementary wet and dry gains.
func reverbMix(r ReverbState) (float64, float64) {
	if !r.Enabled {
		return 0, 1
	}
	return r.Wet, 1 - r.Wet
}

func (e *Engine) rebuildModulation() {
	if e.modulation != nil {
		e.modulation.rebuildModulation()
	}
}

func (e *Engine) applyGate(i int) {
	if e.nodes == nil {
		return
	}
	gate := e.nodes.gain(e.nodes.gates[i]).gain
	if e.state.Generators[i].Enabled {
		e.scheduler.ramp(gate, eventLinear, generatorGain, gateTime)
		return
	}
	e.scheduler.fadeOut(gate, gateFloor, gateTime)
}

func (e *Engine) applyEffect(kind EffectKind) {
	if e.nodes == nil {
		return
	}
	switch kind {
	case EffectFilter:
		e.applyFilter()
	case EffectDelay:
		e.applyDelay()
	case EffectDistortion:
		e.applyDistortion()
	case EffectReverb:
		e.applyReverb()
	}
}

func (e *Engine) applyFilter() {
	f := e.nodes.filterNode()
	cutoff, q := filterTarget(e.state.Effects.Filter)
	e.scheduler.ramp(f.frequency, eventExponential, cutoff, filterRampTime)
	e.scheduler.ramp(f.q, eventLinear, q, filterRampTime)
}

func (e *Engine) applyDelay() {
	d := e.state.Effects.Delay
	e.scheduler.ramp(e.nodes.delayNode().delayTime, eventLinear, d.TimeSec, delayRampTime)
	e.scheduler.ramp(e.nodes.gain(e.nodes.feedback).gain, eventLinear, effectiveFeedback(d.Feedback), delayRampTime)
}

func (e *Engine) applyDistortion() {
	d := e.state.Effects.Distortion
	e.nodes.waveshaper().setCurve(makeDistortionCurve(d.Amount, d.Enabled))
}

func (e *Engine) applyReverb() {
	wet, dry := reverbMix(e.state.Effects.Reverb)
	e.scheduler.ramp(e.nodes.gain(e.nodes.wet).gain, eventLinear, wet, reverbRampTime)
	e.scheduler.ramp(e.nodes.gain(e.nodes.dry).gain, eventLinear, dry, reverbRampTime)
}

// applyAll mirrors the whole patch onto the nodes and rewires both routers.
func (e *Engine) applyAll() {
	if e.nodes == nil {
		return
	}
	for i, g := range e.state.Generators {
		osc := e.nodes.oscillator(e.nodes.generators[i])
		osc.setWaveform(g.Waveform)
		e.scheduler.set(osc.frequency, g.FrequencyHz)
		e.applyGate(i)
	}
	for i, m := range e.state.Modulators {
		e.scheduler.set(e.nodes.oscillator(e.nodes.modulators[i]).frequency, m.FrequencyHz)
	}
	for kind := EffectFilter; kind <= EffectReverb; kind++ {
		e.applyEffect(kind)
	}
	e.scheduler.ramp(e.nodes.gain(e.nodes.master).gain, eventLinear, e.state.Master.Volume, masterRampTime)
	e.chain.rebuildChain()
	e.modulation.rebuildModulation()
	e.applyChaos()
}
