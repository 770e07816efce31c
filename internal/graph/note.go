package graph

import "math"

// note is one scheduled audio event: a source (nil for a silent,
// gain-only envelope) through a fresh filter, panner and envelope. The
// persistent effects chain picks up the result downstream.
type note struct {
	src        source
	filter     *biquad
	panL, panR float64
	env        *Param
	start      int64
	stop       int64
}

func newNote(src source, filter *biquad, pan float64, start, stop int64) *note {
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	// Equal-power pan law.
	angle := (pan + 1) * math.Pi / 4
	return &note{
		src:    src,
		filter: filter,
		panL:   math.Cos(angle),
		panR:   math.Sin(angle),
		env:    NewParam(0),
		start:  start,
		stop:   stop,
	}
}

// renderInto accumulates one frame. It reports true once the note has
// passed its stop frame and can be dropped.
func (n *note) renderInto(frame int64, l, r *float64) bool {
	if frame >= n.stop {
		return true
	}
	if frame < n.start {
		return false
	}
	var s float64
	if n.src != nil {
		s = n.src.render()
	}
	s = n.filter.process(s)
	s *= n.env.ValueAt(frame)
	*l += s * n.panL
	*r += s * n.panR
	return false
}
