package geo

// Verdict is the outcome of running a fix through the Filter.
type Verdict int

const (
	// Accepted fixes are appended to the timeline.
	Accepted Verdict = iota
	// Invalid fixes carry NaN or infinite coordinates.
	Invalid
	// LowConfidence fixes have an accuracy radius above the threshold.
	LowConfidence
	// ImplausibleJump fixes are too far from the last accepted point.
	ImplausibleJump
	// Suspended fixes arrived while tracking was paused.
	Suspended
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Invalid:
		return "invalid"
	case LowConfidence:
		return "low_confidence"
	case ImplausibleJump:
		return "implausible_jump"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Default thresholds.
const (
	DefaultMaxAccuracyMeters = 25.0
	DefaultMaxJumpKm         = 0.2
)

// Filter rejects fixes that look like noise. The zero value uses the
// default thresholds.
type Filter struct {
	MaxAccuracyMeters float64
	MaxJumpKm         float64
}

// Evaluate classifies fix against the last accepted point. Checks run in a
// fixed order: coordinates, accuracy, jump distance, then the pause flag, so
// a paused engine still reports why a fix would have been dropped. The
// returned distance is the leg length from last (zero when last is nil).
func (f Filter) Evaluate(last *Point, fix Fix, paused bool) (Verdict, float64) {
	candidate := fix.Point()
	if !candidate.Finite() {
		return Invalid, 0
	}
	if fix.AccuracyMeters > f.maxAccuracy() {
		return LowConfidence, 0
	}
	var distance float64
	if last != nil {
		distance = Haversine(*last, candidate)
		if distance > f.maxJump() {
			return ImplausibleJump, distance
		}
	}
	if paused {
		return Suspended, distance
	}
	return Accepted, distance
}

func (f Filter) maxAccuracy() float64 {
	if f.MaxAccuracyMeters > 0 {
		return f.MaxAccuracyMeters
	}
	return DefaultMaxAccuracyMeters
}

func (f Filter) maxJump() float64 {
	if f.MaxJumpKm > 0 {
		return f.MaxJumpKm
	}
	return DefaultMaxJumpKm
}
