package weather

import (
	"time"

	"github.com/i474232898/mountain-conditions/internal/common"
)

// DefaultTemperatureF is used when no source reports a temperature.
const DefaultTemperatureF = 32.0

// NormalizeInput is the raw material for one MountainConditions record.
// Weather readings are listed in priority order; a nil Station means the
// station source failed this cycle.
type NormalizeInput struct {
	Station *RawStationReading
	Weather []RawCurrentWeather
	Now     time.Time
}

// NormalizeConditions merges station and current-weather readings into the
// canonical record. All unit conversion happens here.
func NormalizeConditions(in NormalizeInput) MountainConditions {
	c := MountainConditions{
		TemperatureF: DefaultTemperatureF,
		LastUpdated:  in.Now.UTC(),
	}

	st := in.Station
	if st != nil {
		if depth, ok := LatestDepth(st.Depth); ok {
			c.SnowDepthIn = depth
		}
		deltas := CalculateSnowfall(st.Depth)
		c.Snowfall24hIn = deltas.Snowfall24hIn
		c.Snowfall48hIn = deltas.Snowfall48hIn
		c.Snowfall7dIn = deltas.Snowfall7dIn
		if st.SWEIn != nil {
			c.SnowWaterEquivalentIn = *st.SWEIn
		}
	}

	// Temperature: station sensor first, then weather providers.
	switch {
	case st != nil && st.TemperatureF != nil:
		c.TemperatureF = *st.TemperatureF
	default:
		for _, w := range in.Weather {
			if w.Temperature != nil {
				c.TemperatureF = common.Round(ToFahrenheit(*w.Temperature, w.TemperatureUnit), 0)
				break
			}
		}
	}

	// Wind speed: weather providers first, the station anemometer as fallback.
	windSet := false
	for _, w := range in.Weather {
		if w.WindSpeed != nil {
			c.WindSpeedMph = common.Round(ToMph(*w.WindSpeed, w.WindUnit), 0)
			windSet = true
			break
		}
	}
	if !windSet && st != nil && st.WindSpeedMph != nil {
		c.WindSpeedMph = common.Round(*st.WindSpeedMph, 0)
	}

	for _, w := range in.Weather {
		if w.WindGust != nil {
			gust := common.Round(ToMph(*w.WindGust, w.WindUnit), 0)
			c.WindGustMph = &gust
			break
		}
	}

	c.WindDirectionCardinal = windDirection(st, in.Weather)

	for _, w := range in.Weather {
		if w.HumidityPct != nil {
			c.HumidityPct = common.Float(common.Round(*w.HumidityPct, 0))
			break
		}
	}
	if c.HumidityPct == nil && st != nil && st.HumidityPct != nil {
		c.HumidityPct = common.Float(common.Round(*st.HumidityPct, 0))
	}

	for _, w := range in.Weather {
		if w.VisibilityM != nil {
			miles := common.Round(MetersToMiles(*w.VisibilityM), 1)
			c.VisibilityMiles = &miles
			c.VisibilityCategory = ClassifyVisibility(miles)
			break
		}
	}

	for _, w := range in.Weather {
		if w.SkyCoverPct != nil {
			c.SkyCoverPct = common.Float(common.Round(*w.SkyCoverPct, 0))
			break
		}
	}

	for _, w := range in.Weather {
		if w.PrecipProbabilityPct != nil {
			c.PrecipProbabilityPct = common.Float(common.Round(*w.PrecipProbabilityPct, 0))
			break
		}
	}

	for _, w := range in.Weather {
		if w.ConditionsText != "" {
			c.ConditionsText = w.ConditionsText
			break
		}
	}

	if latest := latestObservation(st, in.Weather); !latest.IsZero() {
		c.LastUpdated = latest.UTC()
	}

	return c
}

func windDirection(st *RawStationReading, readings []RawCurrentWeather) string {
	for _, w := range readings {
		if w.WindDirectionDeg != nil {
			return DegreesToCardinal(*w.WindDirectionDeg)
		}
		if w.WindDirectionCardinal != "" {
			return w.WindDirectionCardinal
		}
	}
	if st != nil && st.WindDirectionDeg != nil {
		return DegreesToCardinal(*st.WindDirectionDeg)
	}
	return ""
}

func latestObservation(st *RawStationReading, readings []RawCurrentWeather) time.Time {
	var latest time.Time
	if st != nil && st.ObservedAt.After(latest) {
		latest = st.ObservedAt
	}
	for _, w := range readings {
		if w.ObservedAt.After(latest) {
			latest = w.ObservedAt
		}
	}
	return latest
}

// ClassifyVisibility buckets visibility using the 10/5/1/0.25 mile thresholds.
func ClassifyVisibility(miles float64) VisibilityCategory {
	switch {
	case miles >= 10:
		return VisibilityExcellent
	case miles >= 5:
		return VisibilityGood
	case miles >= 1:
		return VisibilityModerate
	case miles >= 0.25:
		return VisibilityPoor
	default:
		return VisibilityVeryPoor
	}
}

// CurrentFromHourly turns the first hourly forecast period into a current
// weather reading, used when gridded values are missing fields.
func CurrentFromHourly(provider string, p RawForecastPeriod) RawCurrentWeather {
	r := RawCurrentWeather{
		Provider:              provider,
		ObservedAt:            p.StartTime,
		Temperature:           common.Float(p.TemperatureF),
		TemperatureUnit:       Fahrenheit,
		WindUnit:              MilesPerHour,
		WindDirectionCardinal: p.WindDirection,
		PrecipProbabilityPct:  p.PrecipProbabilityPct,
		ConditionsText:        p.ShortForecast,
	}
	if speed, ok := parseWindSpeed(p.WindSpeedText); ok {
		r.WindSpeed = &speed
	}
	return r
}
