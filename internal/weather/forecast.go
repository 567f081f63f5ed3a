package weather

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/i474232898/mountain-conditions/internal/common"
)

// MaxForecastDays caps the aggregated forecast.
const MaxForecastDays = 7

// snowTemperatureF is the period temperature below which snowfall is credited
// even if the short forecast does not mention snow.
const snowTemperatureF = 35.0

var (
	// snowRangeRe matches "4 to 8 inches" or "4-8 inches"; the upper bound wins.
	snowRangeRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:to|-)\s*(\d+(?:\.\d+)?)\s*inch`)

	// snowAmountRe matches a single quantity, e.g. "around 2 inches".
	snowAmountRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*inch`)

	numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

	gustRe = regexp.MustCompile(`(?i)gusts? (?:as high as |up to )?(\d+)\s*mph`)
)

// iconPriority is checked in order; the first keyword found picks the icon.
var iconPriority = []struct {
	icon     string
	keywords []string
}{
	{"snow", []string{"snow", "flurr", "blizzard"}},
	{"rain", []string{"rain", "shower", "drizzle"}},
	{"sun", []string{"sun", "clear"}},
	{"fog", []string{"fog", "haze"}},
}

const defaultIcon = "cloud"

// ExtractSnowfallInches pulls an inch amount out of free forecast text. For a
// range the upper bound is returned. Text without an amount yields 0.
func ExtractSnowfallInches(text string) float64 {
	if m := snowRangeRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			return v
		}
	}
	if m := snowAmountRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v
		}
	}
	return 0
}

// isSnowPeriod is the snow heuristic: cold enough or explicitly snowy.
func isSnowPeriod(p RawForecastPeriod) bool {
	return p.TemperatureF < snowTemperatureF || common.HasAny(p.ShortForecast, "snow")
}

// parseWindSpeed returns the largest number of a text such as "10 to 15 mph".
func parseWindSpeed(text string) (float64, bool) {
	var best float64
	found := false
	for _, s := range numberRe.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

func parseGust(text string) (float64, bool) {
	m := gustRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	return v, err == nil
}

// SelectIcon picks an icon name by keyword priority: snow, rain, sun, fog, cloud.
func SelectIcon(text string) string {
	for _, entry := range iconPriority {
		if common.HasAny(text, entry.keywords...) {
			return entry.icon
		}
	}
	return defaultIcon
}

type dayAccumulator struct {
	day        ProcessedForecastDay
	highSeen   bool
	lowSeen    bool
	sawSnow    bool
	sawRain    bool
	dayText    string
	nightText  string
	allText    string
	precipSeen bool
}

// AggregateForecast merges day/night periods into at most MaxForecastDays
// calendar days, ascending by date. Periods are grouped by the calendar date
// of their start time in the provider's own offset.
func AggregateForecast(periods []RawForecastPeriod) []ProcessedForecastDay {
	byDate := make(map[string]*dayAccumulator)

	for _, p := range periods {
		key := p.StartTime.Format("2006-01-02")
		acc, ok := byDate[key]
		if !ok {
			acc = &dayAccumulator{
				day: ProcessedForecastDay{
					Date:      key,
					DayOfWeek: p.StartTime.Weekday().String()[:3],
				},
			}
			byDate[key] = acc
		}
		acc.add(p)
	}

	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > MaxForecastDays {
		keys = keys[:MaxForecastDays]
	}

	days := make([]ProcessedForecastDay, 0, len(keys))
	for _, k := range keys {
		days = append(days, byDate[k].finish())
	}
	return days
}

func (a *dayAccumulator) add(p RawForecastPeriod) {
	if p.IsDaytime {
		if !a.highSeen || p.TemperatureF > a.day.HighF {
			a.day.HighF = p.TemperatureF
		}
		a.highSeen = true
		if a.dayText == "" {
			a.dayText = p.ShortForecast
		}
	} else {
		if !a.lowSeen || p.TemperatureF < a.day.LowF {
			a.day.LowF = p.TemperatureF
		}
		a.lowSeen = true
		if a.nightText == "" {
			a.nightText = p.ShortForecast
		}
	}
	a.allText += " " + p.ShortForecast

	if isSnowPeriod(p) {
		a.day.SnowfallIn += ExtractSnowfallInches(p.DetailedForecast)
		a.sawSnow = true
	}
	if common.HasAny(p.ShortForecast, "rain") {
		a.sawRain = true
	}

	if p.PrecipProbabilityPct != nil && (!a.precipSeen || *p.PrecipProbabilityPct > a.day.PrecipProbabilityPct) {
		a.day.PrecipProbabilityPct = *p.PrecipProbabilityPct
		a.precipSeen = true
	}

	if speed, ok := parseWindSpeed(p.WindSpeedText); ok {
		gust := speed
		if g, ok := parseGust(p.DetailedForecast); ok && g > speed {
			gust = g
		}
		a.day.Wind.SpeedMph = max(a.day.Wind.SpeedMph, speed)
		a.day.Wind.GustMph = max(a.day.Wind.GustMph, gust)
	}
}

func (a *dayAccumulator) finish() ProcessedForecastDay {
	d := a.day
	d.SnowfallIn = common.Round(d.SnowfallIn, 1)

	// Snow wins over rain whenever the snow heuristic fired for any period.
	switch {
	case a.sawSnow:
		d.PrecipType = PrecipSnow
	case a.sawRain:
		d.PrecipType = PrecipRain
	default:
		d.PrecipType = PrecipNone
	}

	d.ConditionsText = a.dayText
	if d.ConditionsText == "" {
		d.ConditionsText = a.nightText
	}
	d.Icon = SelectIcon(a.allText)
	return d
}

// UpcomingSnowfall sums forecast snowfall over the first n days.
func UpcomingSnowfall(days []ProcessedForecastDay, n int) float64 {
	var total float64
	for i, d := range days {
		if i >= n {
			break
		}
		total += d.SnowfallIn
	}
	return total
}
