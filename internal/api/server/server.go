package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"supik-server/internal/audit"
	"supik-server/internal/auth"
	"supik-server/internal/config"
	database "supik-server/internal/db"
	"supik-server/internal/routeros"
	"supik-server/internal/yandex"

	"supik-server/internal/api/handlers"
	"supik-server/internal/api/middleware"
)

// Deps are the collaborators the server does not build from config itself.
type Deps struct {
	Limiter  middleware.Limiter // nil disables login throttling
	RouterOS *routeros.Dialer
	Yandex   *yandex.Client
	Audit    *audit.Service
}

type Server struct {
	cfg    *config.Config
	db     *database.Client
	deps   Deps
	router *gin.Engine
	http   *http.Server

	tokens *auth.TokenService
	store  *auth.GormStore
}

func New(cfg *config.Config, db *database.Client, deps Deps) *Server {
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	if deps.Audit == nil {
		deps.Audit = audit.NewService(db.DB)
	}
	if deps.RouterOS == nil {
		deps.RouterOS = routeros.NewDialer(routeros.Config{
			Scheme:   cfg.RouterOS.Scheme,
			Port:     cfg.RouterOS.Port,
			Timeout:  cfg.RouterOS.Timeout,
			Insecure: cfg.RouterOS.Insecure,
		})
	}
	if deps.Yandex == nil {
		deps.Yandex = yandex.New(yandex.Config{
			BaseURL: cfg.Yandex.BaseURL,
			OrgID:   cfg.Yandex.OrgID,
			Token:   cfg.Yandex.Token,
			Timeout: cfg.Yandex.Timeout,
		})
	}

	s := &Server{
		cfg:    cfg,
		db:     db,
		deps:   deps,
		router: gin.New(),
		tokens: auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenLifetime),
		store:  auth.NewGormStore(db.DB),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger())
	s.router.Use(middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	if len(s.cfg.Server.CORSOrigins) == 0 || (len(s.cfg.Server.CORSOrigins) == 1 && s.cfg.Server.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.cfg.Server.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}

	// "Authorization" must be allowed so the frontend can send the token.
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}

	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	db := s.db.DB
	resolver := auth.NewResolver(s.tokens, s.store)
	authn := auth.NewAuthenticator(s.store, s.tokens)

	authHandler := handlers.NewAuthHandler(authn, s.deps.Audit)
	accountHandler := handlers.NewAccountHandler(db, s.deps.Audit)
	groupHandler := handlers.NewGroupHandler(db, s.deps.Audit)
	routerHandler := handlers.NewRouterHandler(db, s.deps.Audit)
	vpnHandler := handlers.NewVpnHandler(db, s.deps.RouterOS, s.deps.Audit)
	userHandler := handlers.NewUserHandler(db, s.deps.Audit)
	departmentHandler := handlers.NewDepartmentHandler(db, s.deps.Audit)
	mailHandler := handlers.NewMailHandler(db, s.deps.Yandex, s.deps.Audit)
	logHandler := handlers.NewLogHandler(s.deps.Audit)

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "supik"})
	})

	const (
		viewer = auth.Viewer
		editor = auth.Editor
	)
	can := middleware.RequireCapability
	routerACL := func(level auth.Level) gin.HandlerFunc {
		return middleware.RequireRouterAccess(s.store, "id", level)
	}
	authed := middleware.Authed

	v1 := s.router.Group("/api/v1")
	{
		// Public
		v1.POST("/auth/login", middleware.LoginRateLimit(s.deps.Limiter), authHandler.Login)

		// Everything else needs a bearer token.
		protected := v1.Group("/")
		protected.Use(middleware.RequireAuth(resolver))
		{
			protected.GET("/auth/me", authed(authHandler.Me))

			// --- ADMIN ONLY ---
			admin := protected.Group("/", middleware.RequireAdmin())
			{
				admin.GET("/accounts", accountHandler.List)
				admin.GET("/accounts/:id", accountHandler.Get)
				admin.POST("/accounts", authed(accountHandler.Create))
				admin.PUT("/accounts/:id", authed(accountHandler.Update))
				admin.DELETE("/accounts/:id", authed(accountHandler.Delete))

				admin.GET("/groups", groupHandler.List)
				admin.GET("/groups/:id", groupHandler.Get)
				admin.POST("/groups", authed(groupHandler.Create))
				admin.PUT("/groups/:id", authed(groupHandler.Update))
				admin.DELETE("/groups/:id", authed(groupHandler.Delete))
				admin.POST("/groups/:id/members", authed(groupHandler.AddMember))
				admin.DELETE("/groups/:id/members/:accountId", authed(groupHandler.RemoveMember))

				admin.GET("/routers/:id/acl", routerHandler.GetACL)
				admin.PUT("/routers/:id/acl", authed(routerHandler.SetACL))

				admin.GET("/logs", logHandler.List)
			}

			// --- ROUTERS: capability for the collection, ACL per router ---
			protected.GET("/routers", can(auth.CapabilityRouter, viewer), routerHandler.List)
			protected.POST("/routers", can(auth.CapabilityRouter, editor), authed(routerHandler.Create))
			protected.GET("/routers/:id", routerACL(viewer), routerHandler.Get)
			protected.PUT("/routers/:id", routerACL(editor), authed(routerHandler.Update))
			protected.DELETE("/routers/:id", routerACL(editor), authed(routerHandler.Delete))

			protected.GET("/routers/:id/secrets", routerACL(viewer), vpnHandler.Secrets)
			protected.GET("/routers/:id/vpns", routerACL(viewer), vpnHandler.List)
			protected.POST("/routers/:id/vpns", routerACL(editor), authed(vpnHandler.Create))
			protected.PUT("/routers/:id/vpns/:vpnId", routerACL(editor), authed(vpnHandler.Update))
			protected.DELETE("/routers/:id/vpns/:vpnId", routerACL(editor), authed(vpnHandler.Delete))

			// --- DIRECTORY ---
			protected.GET("/users", can(auth.CapabilityUser, viewer), userHandler.List)
			protected.GET("/users/:id", can(auth.CapabilityUser, viewer), userHandler.Get)
			protected.POST("/users", can(auth.CapabilityUser, editor), authed(userHandler.Create))
			protected.PUT("/users/:id", can(auth.CapabilityUser, editor), authed(userHandler.Update))
			protected.DELETE("/users/:id", can(auth.CapabilityUser, editor), authed(userHandler.Delete))

			protected.GET("/departments", can(auth.CapabilityDepartment, viewer), departmentHandler.List)
			protected.GET("/departments/:id", can(auth.CapabilityDepartment, viewer), departmentHandler.Get)
			protected.POST("/departments", can(auth.CapabilityDepartment, editor), authed(departmentHandler.Create))
			protected.PUT("/departments/:id", can(auth.CapabilityDepartment, editor), authed(departmentHandler.Update))
			protected.DELETE("/departments/:id", can(auth.CapabilityDepartment, editor), authed(departmentHandler.Delete))

			protected.GET("/mails", can(auth.CapabilityMail, viewer), mailHandler.List)
			protected.GET("/mails/:id", can(auth.CapabilityMail, viewer), mailHandler.Get)
			protected.POST("/mails", can(auth.CapabilityMail, editor), authed(mailHandler.Create))
			protected.PUT("/mails/:id", can(auth.CapabilityMail, editor), authed(mailHandler.Update))
			protected.DELETE("/mails/:id", can(auth.CapabilityMail, editor), authed(mailHandler.Delete))
		}
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server on the configured port until Shutdown is called.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
