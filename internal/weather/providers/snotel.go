package providers

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/mountain-conditions/internal/observability"
	"github.com/i474232898/mountain-conditions/internal/weather"
)

const (
	snotelDefaultBaseURL = "https://wcc.sc.egov.usda.gov/awdbRestApi"

	// snotelHistoryDays covers the 7-day delta plus its baseline day.
	snotelHistoryDays = 8
)

// AWDB element codes.
const (
	elemSnowDepth   = "SNWD"
	elemSWE         = "WTEQ"
	elemTempObs     = "TOBS"
	elemHumidity    = "RHUMV"
	elemTempMax     = "TMAX"
	elemTempMin     = "TMIN"
	elemWindSpeed   = "WSPDV"
	elemWindDirDeg  = "WDIRV"
	snotelDateFmt   = "2006-01-02"
	snotelValueTime = "2006-01-02 15:04"
)

var snotelElements = []string{
	elemSnowDepth, elemSWE, elemTempObs, elemHumidity,
	elemTempMax, elemTempMin, elemWindSpeed, elemWindDirDeg,
}

// SnotelProvider reads SNOTEL stations through the NRCS AWDB REST API.
type SnotelProvider struct {
	name    string
	baseURL string
	fetcher *Fetcher
	clock   clockwork.Clock
}

// NewSnotelProvider creates a SNOTEL adapter. An empty baseURL uses the public API.
func NewSnotelProvider(cfg HTTPClientConfig, baseURL string, metrics *observability.Metrics) *SnotelProvider {
	if baseURL == "" {
		baseURL = snotelDefaultBaseURL
	}
	return &SnotelProvider{
		name:    "snotel",
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: NewFetcher("snotel", cfg, metrics),
		clock:   clockwork.NewRealClock(),
	}
}

// WithClock swaps the clock used to compute the requested date range.
func (p *SnotelProvider) WithClock(c clockwork.Clock) *SnotelProvider {
	p.clock = c
	return p
}

func (p *SnotelProvider) Name() string {
	return p.name
}

type snotelStation struct {
	StationTriplet string              `json:"stationTriplet"`
	Data           []snotelElementData `json:"data"`
}

type snotelElementData struct {
	StationElement struct {
		ElementCode    string `json:"elementCode"`
		StoredUnitCode string `json:"storedUnitCode"`
	} `json:"stationElement"`
	Values []snotelValue `json:"values"`
}

type snotelValue struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// GetCurrentConditions returns the last days of readings for a station triplet.
func (p *SnotelProvider) GetCurrentConditions(ctx context.Context, stationID string) (weather.RawStationReading, error) {
	if stationID == "" {
		return weather.RawStationReading{}, fmt.Errorf("snotel station id is required")
	}

	end := p.clock.Now().UTC()
	begin := end.AddDate(0, 0, -snotelHistoryDays)

	values := url.Values{}
	values.Set("stationTriplets", stationID)
	values.Set("elements", strings.Join(snotelElements, ","))
	values.Set("duration", "DAILY")
	values.Set("beginDate", begin.Format(snotelDateFmt))
	values.Set("endDate", end.Format(snotelDateFmt))

	body, err := p.fetcher.Fetch(ctx, p.baseURL+"/services/v1/data?"+values.Encode(), nil, 0)
	if err != nil {
		return weather.RawStationReading{}, err
	}

	var payload []snotelStation
	if err := decodeJSON(p.name, body, &payload); err != nil {
		return weather.RawStationReading{}, err
	}
	if len(payload) == 0 {
		return weather.RawStationReading{}, malformed(p.name, "no data for station %s", stationID)
	}

	return parseSnotelStation(stationID, payload[0])
}

func parseSnotelStation(stationID string, st snotelStation) (weather.RawStationReading, error) {
	reading := weather.RawStationReading{StationID: stationID}
	if st.StationTriplet != "" {
		reading.StationID = st.StationTriplet
	}

	for _, el := range st.Data {
		code := strings.ToUpper(el.StationElement.ElementCode)
		if code == "" {
			return weather.RawStationReading{}, malformed("snotel", "element without elementCode")
		}

		if code == elemSnowDepth {
			series, err := parseDepthSeries(el.Values)
			if err != nil {
				return weather.RawStationReading{}, err
			}
			reading.Depth = series
			if n := len(series); n > 0 && series[n-1].Date.After(reading.ObservedAt) {
				reading.ObservedAt = series[n-1].Date
			}
			continue
		}

		latest, at, err := latestValue(el.Values)
		if err != nil {
			return weather.RawStationReading{}, err
		}
		if at.After(reading.ObservedAt) {
			reading.ObservedAt = at
		}

		switch code {
		case elemSWE:
			reading.SWEIn = latest
		case elemTempObs:
			reading.TemperatureF = latest
		case elemHumidity:
			reading.HumidityPct = latest
		case elemTempMax:
			reading.TempMaxF = latest
		case elemTempMin:
			reading.TempMinF = latest
		case elemWindSpeed:
			reading.WindSpeedMph = latest
		case elemWindDirDeg:
			reading.WindDirectionDeg = latest
		}
	}

	return reading, nil
}

func parseSnotelDate(s string) (time.Time, error) {
	if t, err := time.Parse(snotelDateFmt, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(snotelValueTime, s); err == nil {
		return t, nil
	}
	return time.Time{}, malformed("snotel", "invalid date %q", s)
}

// parseDepthSeries keeps nil values: an unreported day is not zero snow.
func parseDepthSeries(values []snotelValue) (weather.RawDepthSeries, error) {
	series := make(weather.RawDepthSeries, 0, len(values))
	seen := make(map[time.Time]bool, len(values))
	for _, v := range values {
		d, err := parseSnotelDate(v.Date)
		if err != nil {
			return nil, err
		}
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if seen[day] {
			continue
		}
		seen[day] = true
		series = append(series, weather.DepthSample{Date: day, DepthIn: v.Value})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

// latestValue returns the most recent non-nil value and its date.
func latestValue(values []snotelValue) (*float64, time.Time, error) {
	var (
		best   *float64
		bestAt time.Time
	)
	for _, v := range values {
		d, err := parseSnotelDate(v.Date)
		if err != nil {
			return nil, time.Time{}, err
		}
		if v.Value == nil {
			continue
		}
		if best == nil || d.After(bestAt) {
			val := *v.Value
			best = &val
			bestAt = d
		}
	}
	return best, bestAt, nil
}
