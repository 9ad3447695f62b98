package sgp4

import "fmt"

// Kind identifies why a propagation failed. Kinds are errors themselves so
// callers can test with errors.Is(err, sgp4.SatelliteDecayed).
type Kind int

const (
	MeanEccentricityOutOfRange      Kind = 1
	MeanMotionNonPositive           Kind = 2
	PerturbedEccentricityOutOfRange Kind = 3
	SemiLatusRectumNegative         Kind = 4
	EpochElementsSubOrbital         Kind = 5
	SatelliteDecayed                Kind = 6
)

// Code returns the numeric code used by the reference SGP4 implementations.
func (k Kind) Code() int {
	return int(k)
}

func (k Kind) String() string {
	switch k {
	case MeanEccentricityOutOfRange:
		return "mean_eccentricity_out_of_range"
	case MeanMotionNonPositive:
		return "mean_motion_non_positive"
	case PerturbedEccentricityOutOfRange:
		return "perturbed_eccentricity_out_of_range"
	case SemiLatusRectumNegative:
		return "semi_latus_rectum_negative"
	case EpochElementsSubOrbital:
		return "epoch_elements_sub_orbital"
	case SatelliteDecayed:
		return "satellite_decayed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Description is a short human readable explanation.
func (k Kind) Description() string {
	switch k {
	case MeanEccentricityOutOfRange:
		return "mean eccentricity is outside the range 0 <= e < 1"
	case MeanMotionNonPositive:
		return "mean motion has fallen below zero"
	case PerturbedEccentricityOutOfRange:
		return "perturbed eccentricity is outside the range 0 <= e <= 1"
	case SemiLatusRectumNegative:
		return "semi-latus rectum is below zero"
	case EpochElementsSubOrbital:
		return "epoch elements are sub-orbital"
	case SatelliteDecayed:
		return "satellite has decayed"
	}
	return "unknown propagation error"
}

func (k Kind) Error() string {
	return k.Description()
}

// IsDecay reports whether the kind means the orbit has reached the Earth,
// as opposed to the model breaking down numerically.
func (k Kind) IsDecay() bool {
	return k == EpochElementsSubOrbital || k == SatelliteDecayed
}

// PropagationError is returned for a single instant. Tsince is the offset
// from epoch in minutes; Value is the offending quantity when there is one.
type PropagationError struct {
	Kind   Kind
	Tsince float64
	Value  float64
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("sgp4: %s at %.3f min from epoch (value %g)", e.Kind.Description(), e.Tsince, e.Value)
}

func (e *PropagationError) Unwrap() error {
	return e.Kind
}

// IsDecay reports whether the failure is a decay rather than degeneracy.
func (e *PropagationError) IsDecay() bool {
	return e.Kind.IsDecay()
}
