package geo

// Accumulator sums haversine legs between consecutive accepted points.
type Accumulator struct {
	last    *Point
	totalKm float64
}

// Accept records p as the newest accepted point and returns the leg added
// to the total. The first point after a reset anchors without adding distance.
func (a *Accumulator) Accept(p Point) float64 {
	var delta float64
	if a.last != nil {
		delta = Haversine(*a.last, p)
		a.totalKm += delta
	}
	anchor := p
	a.last = &anchor
	return delta
}

// Last returns a copy of the last accepted point, or nil.
func (a *Accumulator) Last() *Point {
	if a.last == nil {
		return nil
	}
	p := *a.last
	return &p
}

// TotalKm returns the accumulated distance.
func (a *Accumulator) TotalKm() float64 {
	return a.totalKm
}

// Reanchor forgets the last point but keeps the total, so the next fix
// starts a new leg chain.
func (a *Accumulator) Reanchor() {
	a.last = nil
}

// Restore seeds the accumulator from a recovered snapshot. last is the
// snapshot's newest location, or nil when it holds none.
func (a *Accumulator) Restore(totalKm float64, last *Point) {
	a.last = nil
	if last != nil {
		anchor := *last
		a.last = &anchor
	}
	a.totalKm = totalKm
}

// Reset clears the anchor and the total.
func (a *Accumulator) Reset() {
	a.last = nil
	a.totalKm = 0
}
