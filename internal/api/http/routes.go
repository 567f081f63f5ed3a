package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/mountain-conditions/internal/store"
	"github.com/i474232898/mountain-conditions/internal/weather"
)

var validate = validator.New()

// historyWindow is the default lookback for /history without from/to.
const historyWindow = 24 * time.Hour

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/mountains", func(c *fiber.Ctx) error {
		locs := service.Locations()
		out := make([]mountainSummary, 0, len(locs))
		for _, l := range locs {
			out = append(out, mountainSummary{
				ID:        l.ID,
				Name:      l.Name,
				Latitude:  l.Latitude,
				Longitude: l.Longitude,
				Links:     weather.BuildDeepLinks(l),
			})
		}
		return c.JSON(fiber.Map{"mountains": out})
	})

	v1.Get("/score", func(c *fiber.Ctx) error {
		var q scoreQuery
		if err := c.QueryParser(&q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(weather.CalculatePowderScore(
			q.Snowfall24h, q.Snowfall48h, *q.Temperature, q.Wind, q.BaseDepth, q.Upcoming,
		))
	})

	m := v1.Group("/mountains/:id")

	m.Get("/", func(c *fiber.Ctx) error {
		report, err := service.GetReport(c.UserContext(), c.Params("id"))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(report)
	})

	m.Get("/conditions", func(c *fiber.Ctx) error {
		report, err := service.GetReport(c.UserContext(), c.Params("id"))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"location":   report.Location,
			"conditions": report.Conditions,
			"sources":    report.Sources,
			"fetchedAt":  report.FetchedAt,
			"stale":      report.Stale,
		})
	})

	m.Get("/forecast", func(c *fiber.Ctx) error {
		report, err := service.GetReport(c.UserContext(), c.Params("id"))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"forecast":  report.Forecast,
			"hourly":    report.Hourly,
			"fetchedAt": report.FetchedAt,
			"stale":     report.Stale,
		})
	})

	m.Get("/score", func(c *fiber.Ctx) error {
		report, err := service.GetReport(c.UserContext(), c.Params("id"))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"score":     report.Score,
			"fetchedAt": report.FetchedAt,
			"stale":     report.Stale,
		})
	})

	m.Get("/alerts", func(c *fiber.Ctx) error {
		report, err := service.GetReport(c.UserContext(), c.Params("id"))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{
			"alerts":    report.Alerts,
			"available": report.SourceOK(weather.SourceAlerts),
		})
	})

	m.Get("/roads", func(c *fiber.Ctx) error {
		report, err := service.GetReport(c.UserContext(), c.Params("id"))
		if err != nil {
			return mapError(err)
		}
		passes := report.Passes
		if passes == nil {
			passes = []weather.RawPassSummary{}
		}
		return c.JSON(fiber.Map{
			"passes":    passes,
			"available": report.SourceOK(weather.SourcePasses),
		})
	})

	m.Get("/links", func(c *fiber.Ctx) error {
		loc, err := service.Lookup(c.Params("id"))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(weather.BuildDeepLinks(loc))
	})

	m.Get("/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reports, err := service.GetRange(c.Params("id"), req.From, req.To)
		if err != nil {
			return mapError(err)
		}

		return c.JSON(fiber.Map{
			"from":    req.From,
			"to":      req.To,
			"reports": reports,
		})
	})
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// mapError translates service errors to HTTP statuses.
func mapError(err error) error {
	switch {
	case errors.Is(err, weather.ErrUnknownLocation):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "no conditions data for requested range")
	case errors.Is(err, weather.ErrSourceUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch conditions")
	}
}

type mountainSummary struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	Links     weather.DeepLinks `json:"links"`
}

// scoreQuery holds the inputs of a direct powder score evaluation.
type scoreQuery struct {
	Snowfall24h float64  `query:"snowfall24h" validate:"gte=0,lte=240"`
	Snowfall48h float64  `query:"snowfall48h" validate:"gte=0,lte=480"`
	Temperature *float64 `query:"temperature" validate:"required,gte=-80,lte=130"`
	Wind        float64  `query:"wind" validate:"gte=0,lte=250"`
	BaseDepth   float64  `query:"baseDepth" validate:"gte=0,lte=1200"`
	Upcoming    float64  `query:"upcoming" validate:"gte=0,lte=480"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

// bind reads from/to. Both default to the last day when absent.
func (h *historyQuery) bind(c *fiber.Ctx) error {
	now := time.Now().UTC()
	h.From = now.Add(-historyWindow)
	h.To = now

	if s := c.Query("from"); s != "" {
		from, err := parseTime(s)
		if err != nil {
			return err
		}
		h.From = from
	}
	if s := c.Query("to"); s != "" {
		to, err := parseTime(s)
		if err != nil {
			return err
		}
		h.To = to
	}
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
