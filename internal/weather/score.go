package weather

import "fmt"

const (
	baseScore = 5
	minScore  = 1
	maxScore  = 10

	// upcomingSnowDays is how many forecast days count as "incoming".
	upcomingSnowDays = 3
)

// CalculatePowderScore scores conditions on a 1-10 scale. It is pure and total:
// any input, including negative or absurd values, lands in a bucket and the
// result is clamped.
func CalculatePowderScore(snowfall24hIn, snowfall48hIn, temperatureF, windSpeedMph, baseDepthIn, upcomingSnowIn float64) ScoreResult {
	factors := make([]ScoreFactor, 0, 5)

	factors = append(factors, freshSnowFactor(snowfall24hIn, snowfall48hIn))
	if upcomingSnowIn >= 6 {
		factors = append(factors, ScoreFactor{
			Name:        "Incoming Storm",
			Points:      1,
			Description: fmt.Sprintf("%.0f\" of snow in the forecast", upcomingSnowIn),
		})
	}
	factors = append(factors,
		temperatureFactor(temperatureF),
		windFactor(windSpeedMph),
		baseDepthFactor(baseDepthIn),
	)

	score := baseScore
	for _, f := range factors {
		score += f.Points
	}
	score = min(max(score, minScore), maxScore)

	return ScoreResult{Score: score, Factors: factors}
}

// ScoreConditions scores canonical conditions plus the processed forecast.
func ScoreConditions(c MountainConditions, forecast []ProcessedForecastDay) ScoreResult {
	return CalculatePowderScore(
		c.Snowfall24hIn,
		c.Snowfall48hIn,
		c.TemperatureF,
		c.WindSpeedMph,
		c.SnowDepthIn,
		UpcomingSnowfall(forecast, upcomingSnowDays),
	)
}

func freshSnowFactor(s24, s48 float64) ScoreFactor {
	switch {
	case s24 >= 12:
		return ScoreFactor{Name: "Fresh Snow", Points: 3, Description: fmt.Sprintf("Epic %.0f\" in the last 24 hours", s24)}
	case s24 >= 6:
		return ScoreFactor{Name: "Fresh Snow", Points: 2, Description: fmt.Sprintf("%.0f\" of new snow in 24 hours", s24)}
	case s24 >= 2:
		return ScoreFactor{Name: "Fresh Snow", Points: 1, Description: fmt.Sprintf("%.0f\" of new snow in 24 hours", s24)}
	case s48 >= 6:
		return ScoreFactor{Name: "Recent Snow", Points: 1, Description: fmt.Sprintf("%.0f\" of snow in the last 48 hours", s48)}
	default:
		return ScoreFactor{Name: "Fresh Snow", Points: 0, Description: "No significant new snow"}
	}
}

func temperatureFactor(tempF float64) ScoreFactor {
	switch {
	case tempF < 20:
		return ScoreFactor{Name: "Temperature", Points: 2, Description: fmt.Sprintf("Cold smoke at %.0f°F", tempF)}
	case tempF < 28:
		return ScoreFactor{Name: "Temperature", Points: 1, Description: fmt.Sprintf("Cold enough to stay dry at %.0f°F", tempF)}
	case tempF > 35:
		return ScoreFactor{Name: "Temperature", Points: -1, Description: fmt.Sprintf("Warm at %.0f°F, expect heavy snow", tempF)}
	default:
		return ScoreFactor{Name: "Temperature", Points: 0, Description: fmt.Sprintf("Near freezing at %.0f°F", tempF)}
	}
}

func windFactor(mph float64) ScoreFactor {
	switch {
	case mph > 35:
		return ScoreFactor{Name: "Wind", Points: -2, Description: fmt.Sprintf("Strong wind at %.0f mph, likely holds", mph)}
	case mph > 25:
		return ScoreFactor{Name: "Wind", Points: -1, Description: fmt.Sprintf("Breezy at %.0f mph, some wind effect", mph)}
	default:
		return ScoreFactor{Name: "Wind", Points: 0, Description: fmt.Sprintf("Light wind at %.0f mph", mph)}
	}
}

func baseDepthFactor(in float64) ScoreFactor {
	switch {
	case in >= 80:
		return ScoreFactor{Name: "Base Depth", Points: 1, Description: fmt.Sprintf("Deep %.0f\" base", in)}
	case in < 20:
		return ScoreFactor{Name: "Base Depth", Points: -1, Description: fmt.Sprintf("Thin %.0f\" base, watch for obstacles", in)}
	default:
		return ScoreFactor{Name: "Base Depth", Points: 0, Description: fmt.Sprintf("Solid %.0f\" base", in)}
	}
}
