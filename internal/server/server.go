// Package server wires repositories, services and handlers into the gin
// router served by cmd/api.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"hotelpms/internal/config"
	"hotelpms/internal/domain/allocation"
	"hotelpms/internal/domain/booking"
	"hotelpms/internal/domain/catalog"
	"hotelpms/internal/domain/ledger"
	"hotelpms/internal/domain/pricing"
	"hotelpms/internal/domain/promo"
	"hotelpms/internal/domain/roomboard"
	"hotelpms/internal/domain/tax"
	"hotelpms/internal/middleware"
	"hotelpms/internal/pkg/jwt"
	"hotelpms/internal/pkg/keylock"
	"hotelpms/internal/pkg/refcode"
	"hotelpms/internal/pkg/response"
)

const tokenTTL = 12 * time.Hour

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Options struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Publisher Publisher
	LogWriter io.Writer
	Loggerf   func(format string, args ...interface{})
}

// App exposes the services background jobs and commands need besides the router.
type App struct {
	Router   *gin.Engine
	Tokens   *jwt.Service
	Bookings *booking.Service
	Ledger   *ledger.Service
	Promos   *promo.Service
	Hub      *roomboard.Hub
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("server: config is required")
	}
	loggerf := opts.Loggerf
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	db := opts.DB
	locks := keylock.New()

	refs, err := refcode.New(cfg.SnowflakeNode, "BK")
	if err != nil {
		return nil, fmt.Errorf("booking reference generator: %w", err)
	}
	tokens := jwt.New(cfg.JWTSecret, tokenTTL, cfg.JWTIssuer)

	hub := roomboard.NewHub(loggerf)
	allocator := allocation.NewAllocator(db, locks, cfg.HotelLocation, loggerf)
	allocator.SetNotifier(hub)

	catalogRepo := catalog.NewRepository(db)
	catalogService := catalog.NewService(catalogRepo, allocator, cfg.HotelLocation)

	promoService := promo.NewService(db, loggerf)

	taxRepo := tax.NewRepository(db)
	taxCache := tax.NewCachedSource(taxRepo, opts.Redis, cfg.TaxCacheTTL, loggerf)
	taxService := tax.NewService(taxRepo, taxCache)
	calculator := tax.NewCalculator(taxCache, tax.Fallback{
		Name:       cfg.TaxFallbackName,
		Percentage: cfg.TaxFallbackRate,
	}, loggerf)

	assembler := pricing.NewAssembler(catalogRepo, promoService, calculator)

	bookingRepo := booking.NewRepository(db)
	ledgerService := ledger.NewService(db, bookingRepo, locks, loggerf)
	bookingService := booking.NewService(db, bookingRepo, booking.Dependencies{
		Quotes:   assembler,
		Rooms:    allocator,
		Promos:   promoService,
		Payments: ledgerService,
		Refs:     refs,
	}, cfg.HotelLocation, loggerf)

	if opts.Publisher != nil {
		bookingService.SetPublisher(opts.Publisher)
		ledgerService.SetPublisher(opts.Publisher)
	}

	catalogHandler := catalog.NewHandler(catalogService)
	allocationHandler := allocation.NewHandler(allocator)
	promoHandler := promo.NewHandler(promoService, catalogRepo)
	taxHandler := tax.NewHandler(taxService)
	pricingHandler := pricing.NewHandler(assembler)
	bookingHandler := booking.NewHandler(bookingService, cfg.RetryAfter)
	ledgerHandler := ledger.NewHandler(ledgerService, cfg.RetryAfter)
	boardHandler := roomboard.NewHandler(hub, tokens, catalogService, cfg.CORSAllowedOrigins)

	r := gin.New()
	if opts.LogWriter != nil {
		r.Use(gin.LoggerWithWriter(opts.LogWriter))
	}
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorLogger())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	// public
	catalogHandler.RegisterRoutes(v1)
	allocationHandler.RegisterRoutes(v1)
	taxHandler.RegisterRoutes(v1)
	promoHandler.RegisterRoutes(v1)
	pricingHandler.RegisterRoutes(v1)
	bookingHandler.RegisterRoutes(v1)
	boardHandler.RegisterRoutes(v1)

	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(tokens))

	staff := protected.Group("")
	staff.Use(middleware.RequireRole(jwt.RoleFrontDesk, jwt.RoleAccountant))
	{
		bookingHandler.RegisterStaffRoutes(staff)
		ledgerHandler.RegisterPaymentRoutes(staff)
		allocationHandler.RegisterStaffRoutes(staff)
	}

	accounting := protected.Group("")
	accounting.Use(middleware.RequireRole(jwt.RoleAccountant))
	{
		ledgerHandler.RegisterAccountingRoutes(accounting)
	}

	admin := protected.Group("")
	admin.Use(middleware.AdminOnly())
	{
		catalogHandler.RegisterAdminRoutes(admin)
		promoHandler.RegisterAdminRoutes(admin)
		taxHandler.RegisterAdminRoutes(admin)
	}

	internal := r.Group("/internal")
	internal.Use(middleware.InternalTokenAuth(cfg.InternalToken, cfg.InternalAllowedIPs))
	{
		ledgerHandler.RegisterInternalRoutes(internal)
		promoHandler.RegisterInternalRoutes(internal)
	}

	return &App{
		Router:   r,
		Tokens:   tokens,
		Bookings: bookingService,
		Ledger:   ledgerService,
		Promos:   promoService,
		Hub:      hub,
	}, nil
}
