package handler

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesmeistro/keyword-planner-volumes/internal/service"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/batch"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/export"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/keywords"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

// ExportFilename is the attachment name of a successful fetch.
const ExportFilename = "keyword_data.csv"

// Controller serves the countries list and runs fetches. Only one fetch
// runs at a time; concurrent requests get 409.
type Controller struct {
	service  service.KeywordService
	gatherer prometheus.Gatherer
	busy     atomic.Bool
	base     context.Context
	log      *logger.Logger
}

type fetchRequest struct {
	Keywords string `json:"keywords" form:"keywords"`
	Country  string `json:"country" form:"country"`
}

type errorResponse struct {
	Error    string                 `json:"error"`
	Provider *planner.ProviderError `json:"provider,omitempty"`
}

type StatusResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Busy      bool   `json:"busy"`
}

func NewController(svc service.KeywordService, gatherer prometheus.Gatherer) *Controller {
	return &Controller{
		service:  svc,
		gatherer: gatherer,
		base:     context.Background(),
		log:      logger.GetLogger().WithField("component", "http"),
	}
}

// WithContext sets the context fetch runs derive from. Cancelling it stops
// in-flight runs, which then answer 503.
func (ctl *Controller) WithContext(ctx context.Context) *Controller {
	if ctx != nil {
		ctl.base = ctx
	}
	return ctl
}

// Register mounts every route on app.
func (ctl *Controller) Register(app *fiber.App) {
	app.Get("/healthz", ctl.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(ctl.gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Get("/countries", ctl.Countries)
	api.Post("/fetch", ctl.Fetch)
}

func (ctl *Controller) Health(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Busy:      ctl.busy.Load(),
	})
}

func (ctl *Controller) Countries(c *fiber.Ctx) error {
	return c.JSON(ctl.service.Countries())
}

// Fetch accepts a JSON body or a form with "keywords" (one per line) and
// "country", and answers with the CSV export as an attachment.
func (ctl *Controller) Fetch(c *fiber.Ctx) error {
	var req fetchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body: " + err.Error()})
	}

	if !ctl.busy.CompareAndSwap(false, true) {
		return c.Status(fiber.StatusConflict).JSON(errorResponse{Error: "a fetch is already running, try again once it finishes"})
	}
	defer ctl.busy.Store(false)

	ctx, cancel := context.WithCancel(ctl.base)
	defer cancel()

	report, err := ctl.service.Fetch(ctx, service.FetchRequest{
		Keywords: req.Keywords,
		Country:  req.Country,
		Progress: ctl.logProgress,
	})
	if err != nil {
		return ctl.fetchError(c, err)
	}

	if report.Resolved() == 0 && len(report.Failures) > 0 {
		resp := errorResponse{Error: "no keyword data retrieved: " + report.Failures[0].Error()}
		if pe, ok := planner.AsProviderError(report.Failures[0].Err); ok {
			resp.Provider = pe
		}
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, report.Table); err != nil {
		return err
	}

	c.Set("X-Run-ID", report.RunID)
	c.Set("X-Keywords-Requested", strconv.Itoa(report.Requested))
	c.Set("X-Keywords-Resolved", strconv.Itoa(report.Resolved()))
	c.Set("X-Keywords-Missing", strconv.Itoa(len(report.StillMissing)))
	c.Attachment(ExportFilename)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}

func (ctl *Controller) fetchError(c *fiber.Ctx, err error) error {
	var inputErr *keywords.InputValidationError
	switch {
	case errors.As(err, &inputErr):
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: inputErr.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: "fetch interrupted: " + err.Error()})
	}

	resp := errorResponse{Error: err.Error()}
	if pe, ok := planner.AsProviderError(err); ok {
		resp.Provider = pe
	}
	ctl.log.WithError(err).Error("Fetch failed")
	return c.Status(fiber.StatusInternalServerError).JSON(resp)
}

func (ctl *Controller) logProgress(e batch.Event) {
	ctl.log.WithFields(map[string]interface{}{
		"run_id": e.RunID,
		"stage":  string(e.Stage),
	}).Info(e.String())
}

// RequestLogger logs one line per request through the application logger.
func RequestLogger() fiber.Handler {
	log := logger.GetLogger().WithField("component", "http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.WithFields(map[string]interface{}{
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Request handled")
		return err
	}
}

// ErrorHandler renders errors that escape handlers as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(errorResponse{Error: message})
}
