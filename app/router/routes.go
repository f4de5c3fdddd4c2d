// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/amirphl/freight-bidding/app/dto"
	"github.com/amirphl/freight-bidding/app/handlers"
	"github.com/amirphl/freight-bidding/app/middleware"
	"github.com/amirphl/freight-bidding/config"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// Handlers groups every handler the router mounts
type Handlers struct {
	Auction handlers.AuctionHandlerInterface
	Bid     handlers.BidHandlerInterface
	Archive handlers.ArchiveHandlerInterface
	Admin   handlers.AdminHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.Config
	handlers       Handlers
	authMiddleware *middleware.AuthMiddleware
	healthChecks   map[string]HealthCheck
	logger         logrus.FieldLogger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.Config, h Handlers, authMiddleware *middleware.AuthMiddleware, healthChecks map[string]HealthCheck, log logrus.FieldLogger) *FiberRouter {
	r := &FiberRouter{
		cfg:            cfg,
		handlers:       h,
		authMiddleware: authMiddleware,
		healthChecks:   healthChecks,
		logger:         log.WithField("component", "router"),
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Freight Bidding API",
		ServerHeader: "freight-bidding",
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		ProxyHeader: cfg.Server.ProxyHeader,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) string {
		return c.IP()
	}))

	ingest := api.Group("/ingest", middleware.APIKeyAuth(r.cfg.Ingest.APIKeyHeader, r.cfg.Ingest.APIKeyHash))
	ingest.Post("/auctions", r.handlers.Auction.CreateAuction)

	auctions := api.Group("/auctions")
	auctions.Get("/", r.handlers.Auction.ListOpenAuctions)
	auctions.Get("/:bid_number", r.authMiddleware.OptionalAuth(), r.handlers.Auction.GetBidSummary)

	// Bid writes are limited per carrier rather than per IP so shared dispatch offices are not throttled together
	bidLimiter := r.rateLimiter(r.cfg.Security.BidRateLimit, func(c fiber.Ctx) string {
		if id, ok := middleware.GetCarrierIDFromContext(c); ok {
			return "carrier:" + id
		}
		return c.IP()
	})
	carrierAuth := r.authMiddleware.CarrierAuthenticate()
	auctions.Post("/:bid_number/bids", carrierAuth, bidLimiter, r.handlers.Bid.SubmitBid)
	auctions.Delete("/:bid_number/bids", carrierAuth, bidLimiter, r.handlers.Bid.WithdrawBid)
	auctions.Put("/:bid_number/driver", carrierAuth, r.handlers.Bid.AttachDriverInfo)

	me := api.Group("/carriers/me", carrierAuth)
	me.Get("/bids", r.handlers.Bid.ListMyBids)
	me.Get("/awards", r.handlers.Bid.ListMyAwards)

	archive := api.Group("/archive")
	archive.Get("/", r.handlers.Archive.ListArchive)
	archive.Get("/:bid_number", r.handlers.Archive.GetArchiveRecord)

	admin := api.Group("/admin", r.authMiddleware.AdminAuthenticate())
	admin.Get("/archive/stats", r.handlers.Admin.ArchiveStatistics)
	admin.Get("/archive/integrity", r.handlers.Admin.ArchiveIntegrity)
	admin.Get("/archive/export", r.handlers.Admin.ExportArchive)
	admin.Post("/archive/run", r.handlers.Admin.RunArchive)
	admin.Post("/auctions/:bid_number/close", r.handlers.Admin.CloseAuction)
	admin.Get("/auctions/:bid_number/events", r.handlers.Admin.ListAuctionEvents)

	r.app.Use(r.notFoundHandler)

	r.logger.Info("routes configured")
}

func (r *FiberRouter) setupMiddleware() {
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.WithFields(logrus.Fields{
				"request_id": c.Locals("requestid"),
				"event":      "panic",
				"error":      e,
				"path":       c.Path(),
				"method":     c.Method(),
				"ip":         c.IP(),
			}).Error("recovered from panic")
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				return strings.Contains(c.Get(fiber.HeaderAccept), "spreadsheetml")
			},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath
			},
		}))
	}

	r.app.Use(middleware.Metrics())
}

func (r *FiberRouter) rateLimiter(max int, key func(c fiber.Ctx) string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   r.cfg.Security.RateLimitWindow,
		KeyGenerator: key,
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return max <= 0 || c.Path() == healthPath
		},
	})
}

func (r *FiberRouter) Start(address string) error {
	r.logger.WithField("address", address).Info("starting server")
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	checks := make(fiber.Map, len(r.healthChecks))
	healthy := true
	for name, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			healthy = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	data := fiber.Map{
		"status":    "ok",
		"timestamp": utils.UTCNow().Unix(),
		"version":   r.cfg.Deployment.Version,
		"service":   "freight-bidding-api",
		"checks":    checks,
	}
	if !healthy {
		data["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is degraded",
			Data:    data,
		})
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    data,
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		r.logger.WithFields(logrus.Fields{
			"status":     code,
			"path":       c.Path(),
			"request_id": c.Locals("requestid"),
			"error":      err.Error(),
		}).Error("request failed")
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}
