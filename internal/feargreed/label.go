package feargreed

const (
	LabelExtremeGreed = "Extreme Greed"
	LabelGreed        = "Greed"
	LabelNeutral      = "Neutral"
	LabelFear         = "Fear"
	LabelExtremeFear  = "Extreme Fear"
)

// Label maps an index value to its sentiment reading.
func Label(value float64) string {
	switch {
	case value >= 75:
		return LabelExtremeGreed
	case value >= 55:
		return LabelGreed
	case value >= 45:
		return LabelNeutral
	case value >= 25:
		return LabelFear
	default:
		return LabelExtremeFear
	}
}
