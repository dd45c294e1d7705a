package monitor

import "github.com/kalambet/vita/internal/storage"

// Signals holds a user's rolling averages over the trailing log window.
type Signals struct {
	AvgCalories float64 `json:"avgCalories"`
	AvgProtein  float64 `json:"avgProtein"`
	AvgSteps    float64 `json:"avgSteps"`
	AvgWater    float64 `json:"avgWater"`
}

// Aggregate computes arithmetic means over the given logs. Only existing
// rows participate: a day with no log simply isn't averaged in. Returns
// ok=false when there are no logs at all, in which case the user produces
// no signal this cycle.
func Aggregate(logs []storage.DailyLog) (Signals, bool) {
	if len(logs) == 0 {
		return Signals{}, false
	}

	var sig Signals
	for _, l := range logs {
		sig.AvgCalories += l.TotalCalories
		sig.AvgProtein += l.TotalProteinG
		sig.AvgSteps += l.Steps
		sig.AvgWater += l.WaterGlasses
	}

	n := float64(len(logs))
	sig.AvgCalories /= n
	sig.AvgProtein /= n
	sig.AvgSteps /= n
	sig.AvgWater /= n
	return sig, true
}
