package model

// GapAnalysis is the combined response payload for the gap-analysis endpoint:
// the numeric MatchResult plus the LLM-generated narrative Feedback grounded
// in it.
type GapAnalysis struct {
	Match    MatchResult `json:"match"`
	Feedback Feedback    `json:"feedback"`
}
