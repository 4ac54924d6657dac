package workload

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// ArrivalSampler generates inter-arrival times for a bearer class.
type ArrivalSampler interface {
	// SampleIAT returns the next inter-arrival time in microseconds.
	// Always returns a positive value (>= 1).
	SampleIAT(rng *rand.Rand) int64
}

// PoissonSampler generates exponentially-distributed inter-arrival times (CV=1).
type PoissonSampler struct {
	rateMicros float64 // bearers per microsecond
}

func (s *PoissonSampler) SampleIAT(rng *rand.Rand) int64 {
	return atLeastOne(rng.ExpFloat64() / s.rateMicros)
}

// ConstantSampler spaces arrivals evenly.
type ConstantSampler struct {
	iat float64 // microseconds
}

func (s *ConstantSampler) SampleIAT(*rand.Rand) int64 {
	return atLeastOne(math.Round(s.iat))
}

// GammaSampler generates Gamma-distributed inter-arrival times.
// CV > 1 gives bursty arrivals, e.g. handover storms.
type GammaSampler struct {
	shape float64 // 1/CV²
	scale float64 // CV²/rate in microseconds
}

func (s *GammaSampler) SampleIAT(rng *rand.Rand) int64 {
	return atLeastOne(gammaRand(rng, s.shape, s.scale))
}

func atLeastOne(iat float64) int64 {
	if iat < 1 {
		return 1
	}
	return int64(iat)
}

// gammaRand samples Gamma(shape, scale) with Marsaglia-Tsang; shapes below 1
// are boosted by one and corrected with U^(1/shape).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		x := rng.NormFloat64()
		v := 1.0 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1.0-0.0331*(x*x)*(x*x) || math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// NewArrivalSampler creates an ArrivalSampler from a spec and rate.
// ratePerMicrosecond is the class arrival rate in bearers/microsecond.
func NewArrivalSampler(spec ArrivalSpec, ratePerMicrosecond float64) ArrivalSampler {
	if ratePerMicrosecond < 1e-15 {
		ratePerMicrosecond = 1e-15
	}
	switch spec.Process {
	case "constant":
		return &ConstantSampler{iat: 1.0 / ratePerMicrosecond}
	case "gamma":
		cv := 1.0
		if spec.CV != nil && *spec.CV > 0 {
			cv = *spec.CV
		}
		shape := 1.0 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to Poisson", shape, cv)
			return &PoissonSampler{rateMicros: ratePerMicrosecond}
		}
		return &GammaSampler{shape: shape, scale: cv * cv / ratePerMicrosecond}
	default:
		return &PoissonSampler{rateMicros: ratePerMicrosecond}
	}
}
