package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/carbon-aware-dev/internal/carbon"
	"github.com/i474232898/carbon-aware-dev/internal/commits"
	"github.com/i474232898/carbon-aware-dev/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *carbon.Service, tracker *commits.Tracker) {
	v1 := app.Group("/api/v1")

	v1.Get("/carbon/current", func(c *fiber.Ctx) error {
		data, ok := service.Latest()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no carbon data cached yet")
		}
		return c.JSON(data)
	})

	v1.Get("/carbon/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		readings, err := service.History(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no carbon history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch carbon history")
		}

		return c.JSON(fiber.Map{
			"location": service.Location(),
			"from":     req.From,
			"to":       req.To,
			"readings": readings,
		})
	})

	v1.Post("/carbon/refresh", func(c *fiber.Ctx) error {
		data, errDetails := service.Refresh(c.Context())
		if errDetails != nil {
			if errDetails.RetryAfterSeconds > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(errDetails.RetryAfterSeconds))
			}
			return c.Status(errorStatus(errDetails.Kind)).JSON(fiber.Map{
				"error": errDetails,
			})
		}
		return c.JSON(data)
	})

	v1.Get("/status", func(c *fiber.Ctx) error {
		data, ok := service.Latest()
		return c.JSON(statusPayload(data, ok))
	})

	v1.Get("/stats", func(c *fiber.Ctx) error {
		stats := tracker.Stats()
		return c.JSON(statsPayload(stats))
	})

	v1.Post("/stats/reset", func(c *fiber.Ctx) error {
		if err := tracker.Reset(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to reset commit stats")
		}
		return c.JSON(fiber.Map{"reset": true})
	})

	v1.Get("/dashboard", func(c *fiber.Ctx) error {
		stats := tracker.Stats()
		payload := fiber.Map{
			"carbonData": nil,
			"gridMix":    nil,
			"stats":      statsPayload(stats),
		}
		if data, ok := service.Latest(); ok {
			payload["carbonData"] = data
			payload["gridMix"] = data.Mix
		}
		return c.JSON(payload)
	})
}

// errorStatus maps the error taxonomy onto HTTP status codes.
func errorStatus(kind carbon.ErrorKind) int {
	switch kind {
	case carbon.ErrInvalidLocation:
		return fiber.StatusBadRequest
	case carbon.ErrAPIUnavailable:
		return fiber.StatusBadGateway
	case carbon.ErrRateLimited:
		return fiber.StatusTooManyRequests
	case carbon.ErrUnsupportedRegion:
		return fiber.StatusForbidden
	default:
		return fiber.StatusBadGateway
	}
}

// statusResponse is the status-bar payload.
type statusResponse struct {
	Text      string  `json:"text"`
	Icon      string  `json:"icon"`
	Index     string  `json:"index,omitempty"`
	Intensity float64 `json:"intensity,omitempty"`
	Region    string  `json:"region,omitempty"`
}

func statusPayload(data carbon.Data, ok bool) statusResponse {
	if !ok {
		return statusResponse{Text: "⚡Carbon: Unknown", Icon: "⚡"}
	}

	icon := "⚡"
	switch data.Index {
	case carbon.IndexLow:
		icon = "😸"
	case carbon.IndexModerate, carbon.IndexHigh:
		icon = "😿"
	}

	return statusResponse{
		Text:      fmt.Sprintf("%s Carbon intensity: %.0fgCO₂/kWh", icon, data.Intensity),
		Icon:      icon,
		Index:     string(data.Index),
		Intensity: data.Intensity,
		Region:    data.Region,
	}
}

func statsPayload(stats store.CommitStats) fiber.Map {
	return fiber.Map{
		"totalCommits":       stats.TotalCommits,
		"sustainableCommits": stats.SustainableCommits,
		"lowCarbonCommits":   stats.LowCarbonCommits,
		"moderateCommits":    stats.ModerateCommits,
		"highCarbonCommits":  stats.TotalCommits - stats.SustainableCommits,
		"sustainabilityRate": commits.SustainabilityRate(stats),
		"lastCommitTime":     stats.LastCommitTime,
		"lastCommitCarbon":   stats.LastCommitCarbon,
	}
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
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
