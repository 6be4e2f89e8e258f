package audioio

import "log/slog"

// ClipSource plays decoded mono samples in real time, optionally looping.
// Samples must already be at cfg.SampleRate.
type ClipSource struct {
	paced

	samples []int16
	pos     int
	loop    bool
}

// NewClipSource creates a source that plays samples.
func NewClipSource(samples []int16, cfg Config, loop bool, logger *slog.Logger) *ClipSource {
	c := &ClipSource{
		paced:   newPaced(cfg, logger, "clip"),
		samples: samples,
		loop:    loop,
	}
	c.fill = c.next
	return c
}

func (c *ClipSource) next(out []int16) bool {
	if len(c.samples) == 0 || (!c.loop && c.pos >= len(c.samples)) {
		return false
	}
	channels := c.cfg.Channels
	for i := 0; i < len(out)/channels; i++ {
		if c.pos >= len(c.samples) {
			if !c.loop {
				break
			}
			c.pos = 0
		}
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = c.samples[c.pos]
		}
		c.pos++
	}
	return true
}

var _ SourceWithStats = (*ClipSource)(nil)
