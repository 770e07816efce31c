package graph

// SampleBuffer is a decoded multi-channel PCM sample owned by the audio
// graph from load until an explicit clear or mode switch.
type SampleBuffer struct {
	Data       [][]float32 // one slice per channel, equal lengths
	SampleRate int
}

// Frames returns the per-channel frame count.
func (s *SampleBuffer) Frames() int {
	if len(s.Data) == 0 {
		return 0
	}
	return len(s.Data[0])
}

// Duration returns the sample length in seconds.
func (s *SampleBuffer) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(s.Frames()) / float64(s.SampleRate)
}

// Channels returns the channel count.
func (s *SampleBuffer) Channels() int {
	return len(s.Data)
}
