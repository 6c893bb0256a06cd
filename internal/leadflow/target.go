package leadflow

import (
	"math"

	"github.com/radiusdt/leadflow/internal/models"
)

// TargetFunc derives the daily lead target of a segment from its partner capacity.
// It must be deterministic.
type TargetFunc func(c models.Capacity) int

// UtilizationTarget targets a fraction of the capacity still available to
// partners, never below minTarget unless nothing is available.
func UtilizationTarget(utilization float64, minTarget int) TargetFunc {
	return func(c models.Capacity) int {
		available := c.CapacityTotalLeads - c.CurrentOpenLeads
		if available <= 0 {
			return 0
		}
		target := int(math.Floor(float64(available) * utilization))
		if target < minTarget {
			return minTarget
		}
		return target
	}
}
