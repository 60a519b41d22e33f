package pcsa

// Phi returns the sketch's bias-correction constant.
func (s *Sketch) Phi() float64 {
	return s.phi
}
