// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/amirphl/tally/app/dto"
	"github.com/amirphl/tally/app/handlers"
	"github.com/amirphl/tally/app/middleware"
	"github.com/amirphl/tally/config"
	_ "github.com/amirphl/tally/docs"
	"github.com/amirphl/tally/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

const (
	healthPath  = "/api/v1/health"
	serviceName = "tally"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(ctx context.Context) error
	GetApp() *fiber.App
}

// HealthCheck probes one dependency; a non-nil error marks the service degraded
type HealthCheck func(ctx context.Context) error

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.ProductionConfig
	counterHandler handlers.CounterHandlerInterface
	healthChecks   map[string]HealthCheck
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, counterHandler handlers.CounterHandlerInterface, healthChecks map[string]HealthCheck) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Tally",
		ServerHeader: "Tally",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ProxyHeader:  cfg.Server.ProxyHeader,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:            app,
		cfg:            cfg,
		counterHandler: counterHandler,
		healthChecks:   healthChecks,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// Page routes
	r.app.Get("/", r.counterHandler.Welcome)
	r.app.Post("/counter", r.counterHandler.Increment)

	// API routes
	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)
	api.Get("/counter", r.counterHandler.GetCounter)

	if r.cfg.Deployment.IsDevelopment() {
		api.Get("/swagger.json", r.serveSwaggerJSON)
	}

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// SetupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                r.cfg.Security.HSTSMaxAge,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// Credentials are only allowed together with an explicit origin list
	origins := r.cfg.Security.AllowedOrigins
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{fiber.HeaderXRequestID, handlers.InertiaHeader},
		AllowCredentials: r.cfg.Security.AllowCredentials && len(origins) > 0,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics(middleware.MetricsConfig{
			SkipPaths: []string{r.cfg.Metrics.Path},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Stream:     log.Writer(),
			Next: func(c fiber.Ctx) bool {
				// Probes would drown the access log
				return c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNowRFC3339(),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx expires
func (r *FiberRouter) Shutdown(ctx context.Context) error {
	return r.app.ShutdownWithContext(ctx)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
// @Summary Health Check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse
// @Router /api/v1/health [get]
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), utils.HealthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(r.healthChecks))
	for name := range r.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	checks := make(fiber.Map, len(names))
	for _, name := range names {
		if err := r.healthChecks[name](ctx); err != nil {
			log.Printf(`{"time":"%s","level":"warn","event":"health_check_failed","check":"%s","error":%q}`,
				utils.UTCNowRFC3339(), name, err.Error())
			checks[name] = "down"
			status = "degraded"
			continue
		}
		checks[name] = "up"
	}

	data := fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": utils.UTCNowUnix(),
		"version":   r.cfg.Deployment.Version,
		"service":   serviceName,
	}

	if status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is degraded",
			Data:    data,
			Error:   dto.ErrorDetail{Code: "SERVICE_DEGRADED"},
		})
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    data,
	})
}

// serveSwaggerJSON serves the registered OpenAPI document
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		log.Printf("Failed to read swagger document: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "API documentation is unavailable",
			Error:   dto.ErrorDetail{Code: "DOCS_UNAVAILABLE"},
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.SendString(doc)
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError
	errorCode := "INTERNAL_ERROR"
	message := "An internal server error occurred"

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			errorCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
			message = e.Message
		}
	}

	log.Printf(`{"time":"%s","level":"error","event":"request_error","request_id":"%s","status":%d,"error":%q}`,
		utils.UTCNowRFC3339(), requestid.FromContext(c), code, err.Error())

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNowUnix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}
