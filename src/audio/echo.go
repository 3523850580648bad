package audio

// ----- Delay ----- //

const maxDelayTime = 5.0 // sec
const minDelayTime = quantum * secPerSample

// delayNode reads its output before its input is written, so the shortest
// delay it renders is one block.
type delayNode struct {
	delayTime *param
	cursor    int
	past      [channelNum][]float64
}

func newDelayNode(delayTime float64) *delayNode {
	length := int(maxDelayTime*sampleRate) + 2*quantum
	d := &delayNode{
		delayTime: newParam(delayTime, minDelayTime, maxDelayTime),
	}
	for ch := range d.past {
		d.past[ch] = make([]float64, length)
	}
	return d
}

func (d *delayNode) param(name string) *param {
	if name == "delayTime" {
		return d.delayTime
	}
	return nil
}

func (d *delayNode) reset() {
	for ch := range d.past {
		clear(d.past[ch])
	}
}

func (d *delayNode) process(b *block, _ stereo, out stereo) {
	times := d.delayTime.compute(b)
	length := float64(len(d.past[0]))
	for i := 0; i < quantum; i++ {
		pos := positiveMod(float64(d.cursor+i)-times[i]*sampleRate, length)
		index := int(pos)
		mod := pos - float64(index)
		index %= len(d.past[0])
		next := (index + 1) % len(d.past[0])
		for ch := 0; ch < channelNum; ch++ {
			out[ch][i] = d.past[ch][index]*(1-mod) + d.past[ch][next]*mod
		}
	}
}

func (d *delayNode) write(_ *block, in stereo) {
	length := len(d.past[0])
	for i := 0; i < quantum; i++ {
		at := (d.cursor + i) % length
		for ch := 0; ch < channelNum; ch++ {
			d.past[ch][at] = in[ch][i]
		}
	}
	d.cursor = (d.cursor + quantum) % length
}
