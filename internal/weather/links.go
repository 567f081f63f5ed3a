package weather

import (
	"fmt"
	"net/url"
	"strings"
)

const forecastSite = "https://forecast.weather.gov"

// BuildDeepLinks returns the weather service's own pages for a location.
// Nothing here is fetched.
func BuildDeepLinks(loc Location) DeepLinks {
	point := url.Values{}
	point.Set("lat", fmt.Sprintf("%.4f", loc.Latitude))
	point.Set("lon", fmt.Sprintf("%.4f", loc.Longitude))

	hourly := url.Values{}
	hourly.Set("lat", point.Get("lat"))
	hourly.Set("lon", point.Get("lon"))
	hourly.Set("FcstType", "graphical")

	office := strings.ToUpper(loc.Grid.Office)
	discussion := url.Values{}
	discussion.Set("site", office)
	discussion.Set("issuedby", office)
	discussion.Set("product", "AFD")

	return DeepLinks{
		Forecast:    forecastSite + "/MapClick.php?" + point.Encode(),
		HourlyGraph: forecastSite + "/MapClick.php?" + hourly.Encode(),
		Alerts:      fmt.Sprintf("https://alerts.weather.gov/search?point=%.4f,%.4f", loc.Latitude, loc.Longitude),
		Discussion:  forecastSite + "/product.php?" + discussion.Encode(),
	}
}
