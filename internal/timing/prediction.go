package timing

// Prediction is the full timing result returned to clients and stored as the
// latest state: the plan, the command sequence derived from it and the
// analysis of the counts.
type Prediction struct {
	Predictions Plan            `json:"predictions"`
	Commands    CommandSequence `json:"commands"`
	Analysis    Analysis        `json:"analysis"`
}

// PredictCounts builds the prediction for validated counts.
func PredictCounts(c Counts) Prediction {
	plan := PlanFor(c)
	return Prediction{
		Predictions: plan,
		Commands:    BuildCommandSequence(plan),
		Analysis:    Analyse(c),
	}
}

// Predict validates values and builds the prediction.
func Predict(values []int) (Prediction, error) {
	c, err := NewCounts(values)
	if err != nil {
		return Prediction{}, err
	}
	return PredictCounts(c), nil
}
