package providers

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/mountain-conditions/internal/common"
	"github.com/i474232898/mountain-conditions/internal/observability"
	"github.com/i474232898/mountain-conditions/internal/weather"
)

const wsdotDefaultBaseURL = "https://wsdot.wa.gov/Traffic/api/MountainPassConditions/MountainPassConditionsREST.svc"

// maxPassRestrictions is the number of directional restrictions WSDOT publishes.
const maxPassRestrictions = 2

// ErrPassesNotConfigured is returned when no WSDOT access code is set.
var ErrPassesNotConfigured = errors.New("wsdot access code is not configured")

// WSDOTProvider implements weather.PassSource for the WSDOT traveler API.
type WSDOTProvider struct {
	name    string
	baseURL string
	fetcher *Fetcher
}

func NewWSDOTProvider(cfg HTTPClientConfig, baseURL string, metrics *observability.Metrics) *WSDOTProvider {
	if baseURL == "" {
		baseURL = wsdotDefaultBaseURL
	}
	return &WSDOTProvider{
		name:    "wsdot",
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: NewFetcher("wsdot", cfg, metrics),
	}
}

func (p *WSDOTProvider) Name() string {
	return p.name
}

type wsdotRestriction struct {
	TravelDirection string `json:"TravelDirection"`
	RestrictionText string `json:"RestrictionText"`
}

type wsdotPass struct {
	MountainPassId   *int              `json:"MountainPassId"`
	MountainPassName string            `json:"MountainPassName"`
	RoadCondition    string            `json:"RoadCondition"`
	WeatherCondition string            `json:"WeatherCondition"`
	TemperatureInF   *float64          `json:"TemperatureInFahrenheit"`
	RestrictionOne   *wsdotRestriction `json:"RestrictionOne"`
	RestrictionTwo   *wsdotRestriction `json:"RestrictionTwo"`
	TravelAdvisory   bool              `json:"TravelAdvisoryActive"`
	ElevationInFeet  int               `json:"ElevationInFeet"`
	Latitude         float64           `json:"Latitude"`
	Longitude        float64           `json:"Longitude"`
	DateUpdated      string            `json:"DateUpdated"`
}

// GetPassConditions returns every mountain pass WSDOT reports on.
func (p *WSDOTProvider) GetPassConditions(ctx context.Context, accessCode string) ([]weather.RawPassSummary, error) {
	if accessCode == "" {
		return nil, ErrPassesNotConfigured
	}

	values := url.Values{}
	values.Set("AccessCode", accessCode)
	body, err := p.fetcher.Fetch(ctx, p.baseURL+"/GetMountainPassConditionsAsJson?"+values.Encode(), nil, 0)
	if err != nil {
		return nil, err
	}

	var payload []wsdotPass
	if err := decodeJSON(p.name, body, &payload); err != nil {
		return nil, err
	}

	out := make([]weather.RawPassSummary, 0, len(payload))
	for _, wp := range payload {
		if wp.MountainPassId == nil || wp.MountainPassName == "" {
			return nil, malformed(p.name, "pass without id or name")
		}
		summary := weather.RawPassSummary{
			ID:               *wp.MountainPassId,
			Name:             wp.MountainPassName,
			RoadCondition:    strings.TrimSpace(wp.RoadCondition),
			WeatherCondition: strings.TrimSpace(wp.WeatherCondition),
			TravelAdvisory:   wp.TravelAdvisory,
			ElevationFt:      wp.ElevationInFeet,
			Latitude:         wp.Latitude,
			Longitude:        wp.Longitude,
		}
		if wp.TemperatureInF != nil {
			summary.TemperatureF = common.Float(*wp.TemperatureInF)
		}
		for _, r := range []*wsdotRestriction{wp.RestrictionOne, wp.RestrictionTwo} {
			if r == nil || strings.TrimSpace(r.RestrictionText) == "" {
				continue
			}
			if len(summary.Restrictions) == maxPassRestrictions {
				break
			}
			summary.Restrictions = append(summary.Restrictions, weather.PassRestriction{
				Direction: r.TravelDirection,
				Text:      strings.TrimSpace(r.RestrictionText),
			})
		}
		if wp.DateUpdated != "" {
			t, err := parseMSDate(wp.DateUpdated)
			if err != nil {
				return nil, err
			}
			summary.UpdatedAt = t
		}
		out = append(out, summary)
	}
	return out, nil
}

var msDateRe = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// parseMSDate parses the "/Date(1700000000000-0800)/" form. The offset only
// sets the zone; the millisecond count is already UTC.
func parseMSDate(s string) (time.Time, error) {
	m := msDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, malformed("wsdot", "invalid date %q", s)
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, malformed("wsdot", "invalid date %q", s)
	}
	t := time.UnixMilli(ms).UTC()
	if m[2] != "" {
		hours, _ := strconv.Atoi(m[2][1:3])
		mins, _ := strconv.Atoi(m[2][3:5])
		offset := hours*3600 + mins*60
		if m[2][0] == '-' {
			offset = -offset
		}
		t = t.In(time.FixedZone("", offset))
	}
	return t, nil
}
