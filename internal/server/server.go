// Package server wires the HTTP surface: the routing gate in front of
// every page, the session endpoints, and the JSON APIs that expose the
// permission evaluator to downstream clients.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lokera/lokera/internal/auth"
	authdomain "github.com/lokera/lokera/internal/auth/domain"
	"github.com/lokera/lokera/internal/auth/session"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/gate"
	"github.com/lokera/lokera/internal/observability"
	obslogger "github.com/lokera/lokera/internal/observability/logger"
	obsmetrics "github.com/lokera/lokera/internal/observability/metrics"
	obstracing "github.com/lokera/lokera/internal/observability/tracing"
	"github.com/lokera/lokera/internal/permission"
	permdomain "github.com/lokera/lokera/internal/permission/domain"
	"github.com/lokera/lokera/internal/plan"
	plandomain "github.com/lokera/lokera/internal/plan/domain"
	"github.com/lokera/lokera/internal/ratelimit"
	"github.com/lokera/lokera/internal/subscription"
	subservice "github.com/lokera/lokera/internal/subscription/service"
	"github.com/lokera/lokera/internal/tenant"
	tenantdomain "github.com/lokera/lokera/internal/tenant/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	auth.Module,
	tenant.Module,
	permission.Module,
	plan.Module,
	subscription.Module,
	ratelimit.Module,
	gate.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting http server", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	authsvc      authdomain.Service
	users        authdomain.Repository
	sessions     *session.Manager
	genID        *snowflake.Node
	machine      *gate.Machine
	resolver     *tenant.Resolver
	directory    *tenant.Directory
	tenantsvc    tenantdomain.Service
	evaluator    *permission.Evaluator
	permCatalog  *permission.Catalog
	permRepo     permdomain.Repository
	planCatalog  *plan.Catalog
	planRepo     plandomain.Repository
	billing      *subservice.Service
	subs         *subscription.StatusProvider
	loginLimiter *ratelimit.LoginLimiter
	locker       *ratelimit.Locker
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Authsvc      authdomain.Service
	Users        authdomain.Repository
	Sessions     *session.Manager
	GenID        *snowflake.Node
	Machine      *gate.Machine
	Resolver     *tenant.Resolver
	Directory    *tenant.Directory
	Tenantsvc    tenantdomain.Service
	Evaluator    *permission.Evaluator
	PermCatalog  *permission.Catalog
	PermRepo     permdomain.Repository
	PlanCatalog  *plan.Catalog
	PlanRepo     plandomain.Repository
	Billing      *subservice.Service
	Subs         *subscription.StatusProvider
	LoginLimiter *ratelimit.LoginLimiter
	Locker       *ratelimit.Locker   `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("server"),
		authsvc:      p.Authsvc,
		users:        p.Users,
		sessions:     p.Sessions,
		genID:        p.GenID,
		machine:      p.Machine,
		resolver:     p.Resolver,
		directory:    p.Directory,
		tenantsvc:    p.Tenantsvc,
		evaluator:    p.Evaluator,
		permCatalog:  p.PermCatalog,
		permRepo:     p.PermRepo,
		planCatalog:  p.PlanCatalog,
		planRepo:     p.PlanRepo,
		billing:      p.Billing,
		subs:         p.Subs,
		loginLimiter: p.LoginLimiter,
		locker:       p.Locker,
		obsMetrics:   p.ObsMetrics,
	}

	s.registerAuthRoutes()
	s.registerAPIRoutes()
	s.registerAdminRoutes()
	s.registerWebhookRoutes()
	s.registerPageRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	authGroup := s.engine.Group("/auth", s.Principal())

	authGroup.POST("/sign-in", s.SignIn)
	authGroup.POST("/sign-up", s.SignUp)
	authGroup.POST("/sign-out", s.SignOut)
	authGroup.GET("/me", s.Me)
	authGroup.POST("/change-password", s.AuthRequired(), s.ChangePassword)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.Principal(), s.AuthRequired())

	// Authorization surface consumed by every page and downstream API
	// handler before it touches a business object.
	api.GET("/authorize", s.Authorize)
	api.GET("/features/:key", s.FeatureAccess)
	api.GET("/limits/:key", s.PlanLimit)

	api.POST("/setup", s.CompleteSetup)
	api.GET("/organizations/me", s.MyOrganization)

	api.GET("/profiles", s.ListProfiles)
	api.POST("/profiles", s.CreateProfile)
	api.PUT("/profiles/:id/permissions", s.UpsertProfilePermission)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/api", s.Principal(), s.AuthRequired(), s.SuperAdminRequired())

	admin.GET("/orgs", s.ListOrganizations)
	admin.POST("/orgs", s.CreateOrganization)
	admin.POST("/orgs/:id/use", s.UseOrganization)
	admin.POST("/orgs/release", s.ReleaseOrganization)
}

func (s *Server) registerWebhookRoutes() {
	// Authenticated by provider signature, not by session.
	s.engine.POST("/webhooks/billing/:provider", s.HandleBillingWebhook)
}

func (s *Server) registerPageRoutes() {
	// Every page goes through the routing gate; the gate decides between
	// pass-through and redirect before any page handler runs.
	pages := s.engine.Group("/", s.Principal(), s.Gate())

	for _, path := range []string{
		"/",
		"/pricing",
		"/sign-in",
		"/sign-up",
		"/invite/:code",
		"/setup",
		"/dashboard",
		"/properties",
		"/properties/:id",
		"/units",
		"/units/:id",
		"/tenants",
		"/tenants/:id",
		"/leases",
		"/leases/:id",
		"/payments",
		"/accounting",
		"/documents",
		"/reports",
		"/settings",
		"/settings/subscription",
		"/subscription-inactive",
		"/admin",
		"/admin/home",
		"/admin/orgs",
	} {
		pages.GET(path, servePage)
	}
}

func servePage(c *gin.Context) {
	c.File("./public/index.html")
}
