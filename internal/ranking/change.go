package ranking

// DefaultSignificanceThreshold is the position delta that warrants an alert.
// A single threshold applies to every code path; it is configurable but not
// duplicated per call site.
const DefaultSignificanceThreshold = 3

// EffectiveRank maps the not-found sentinel to a rank worse than any numeric
// position so delta arithmetic stays monotonic.
func EffectiveRank(position int) int {
	if position == PositionNotFound {
		return NotFoundRank
	}
	return position
}

// Classify compares a new observation against the immediately preceding one
// for the same keyword. It returns nil when there is no prior observation
// (the first check is a baseline) or when the delta is below the threshold.
// Delta is previous minus current, so a positive delta is an improvement.
func Classify(current RankingObservation, previous *RankingObservation, threshold int) *SignificantChange {
	if previous == nil {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultSignificanceThreshold
	}
	delta := EffectiveRank(previous.Position) - EffectiveRank(current.Position)
	if delta > -threshold && delta < threshold {
		return nil
	}
	return &SignificantChange{
		KeywordText:      current.KeywordText,
		PreviousPosition: previous.Position,
		CurrentPosition:  current.Position,
		Delta:            delta,
		ObservedAt:       current.ObservedAt,
		ResolvedURL:      current.ResolvedURL,
	}
}
