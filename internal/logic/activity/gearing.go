package activity

// MaxGearingFactor is the largest multiplier applied to requested steps.
const MaxGearingFactor = 10

// Gearing converts requested step units into native motor steps.
// The factor is clamped when it is used, not when it is configured.
type Gearing struct {
	factor uint32
}

// NewGearing returns a gearing holding the configured factor as-is.
func NewGearing(factor uint32) *Gearing {
	return &Gearing{factor: factor}
}

// Factor returns the current (possibly already clamped) factor.
func (g *Gearing) Factor() uint32 { return g.factor }

// Scale clamps the stored factor to MaxGearingFactor and multiplies.
// 65535 * 10 fits comfortably in 32 bits.
func (g *Gearing) Scale(raw uint16) uint32 {
	if g.factor > MaxGearingFactor {
		g.factor = MaxGearingFactor
	}
	return uint32(raw) * g.factor
}
