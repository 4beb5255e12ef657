package router

import (
	"github.com/fanpulse/livewire/internal/domain/entity"
)

// fantasyPointsKey is reported directly by providers that score server-side.
const fantasyPointsKey = "fantasy_points"

// statWeights is the standard scoring table used to derive a fantasy-point
// delta from raw stat changes when the provider does not score server-side.
var statWeights = map[string]float64{
	"passing_yards":         0.04,
	"passing_tds":           4,
	"interceptions":         -2,
	"rushing_yards":         0.1,
	"rushing_tds":           6,
	"receptions":            0.5,
	"receiving_yards":       0.1,
	"receiving_tds":         6,
	"return_tds":            6,
	"two_point_conversions": 2,
	"fumbles_lost":          -2,
}

// fantasyDelta returns the fantasy-point swing carried by the event. Zero
// means the event has no scoring payload at all or the payload nets out.
func fantasyDelta(event entity.DomainEvent) float64 {
	switch event.Kind {
	case entity.EventMetricUpdate:
		if event.Metric == nil {
			return 0
		}

		return weigh(event.Metric.Deltas)
	case entity.EventOccurrence:
		if event.Occurrence == nil {
			return 0
		}

		return weigh(event.Occurrence.Deltas)
	default:
		return 0
	}
}

func weigh(deltas map[string]float64) float64 {
	if direct, ok := deltas[fantasyPointsKey]; ok {
		return direct
	}

	ret := 0.0
	for stat, delta := range deltas {
		ret += statWeights[stat] * delta
	}

	return ret
}
