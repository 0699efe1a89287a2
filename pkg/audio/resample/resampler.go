// ABOUTME: Variable-ratio linear resampler reading from an in-memory buffer
// ABOUTME: Drives voice playback speed, position and looping
package resample

// Resampler walks an interleaved source buffer at a fractional step,
// producing frames at the output rate using linear interpolation
type Resampler struct {
	channels int
	ratio    float64
	position float64 // in source frames
}

// New creates a resampler converting inputRate to outputRate
func New(inputRate, outputRate, channels int) *Resampler {
	r := &Resampler{channels: channels}
	r.SetRates(float64(inputRate), outputRate)
	return r
}

// SetRates changes the conversion ratio. inputRate may be fractional so the
// playback frequency can be modulated continuously.
func (r *Resampler) SetRates(inputRate float64, outputRate int) {
	if outputRate <= 0 {
		r.ratio = 0
		return
	}
	r.ratio = inputRate / float64(outputRate)
}

// Ratio returns source frames consumed per output frame
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// Position returns the current read position in source frames
func (r *Resampler) Position() float64 {
	return r.position
}

// SetPosition moves the read position
func (r *Resampler) SetPosition(frames float64) {
	if frames < 0 {
		frames = 0
	}
	r.position = frames
}

// Read fills dst with interleaved output frames taken from src. When loop is
// set the position wraps to the start; otherwise Read stops at the end and
// reports ended. The returned count is in samples, not frames.
func (r *Resampler) Read(src, dst []float32, loop bool) (n int, ended bool) {
	ch := r.channels
	if ch <= 0 || len(src) < ch {
		return 0, true
	}
	srcFrames := len(src) / ch
	outFrames := len(dst) / ch

	out := 0
	for out < outFrames {
		if r.position >= float64(srcFrames) {
			if !loop {
				return out * ch, true
			}
			r.position -= float64(srcFrames)
			if r.position >= float64(srcFrames) {
				r.position = 0
			}
		}

		idx := int(r.position)
		frac := float32(r.position - float64(idx))
		next := idx + 1
		if next >= srcFrames {
			if loop {
				next = 0
			} else {
				next = idx
			}
		}

		for c := 0; c < ch; c++ {
			s1 := src[idx*ch+c]
			s2 := src[next*ch+c]
			dst[out*ch+c] = s1*(1-frac) + s2*frac
		}

		out++
		r.position += r.ratio
	}

	return out * ch, !loop && r.position >= float64(srcFrames)
}

// Reset rewinds to the start of the source
func (r *Resampler) Reset() {
	r.position = 0
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	if r.ratio == 0 {
		return 0
	}
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}
