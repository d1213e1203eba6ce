package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	advertiserdomain "github.com/smallbiznis/podbudget/internal/advertiser/domain"
	agencydomain "github.com/smallbiznis/podbudget/internal/agency/domain"
	auditdomain "github.com/smallbiznis/podbudget/internal/audit/domain"
	"github.com/smallbiznis/podbudget/internal/auth"
	authservice "github.com/smallbiznis/podbudget/internal/auth/service"
	"github.com/smallbiznis/podbudget/internal/auth/session"
	"github.com/smallbiznis/podbudget/internal/authorization"
	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
	"github.com/smallbiznis/podbudget/internal/budget/report"
	campaigndomain "github.com/smallbiznis/podbudget/internal/campaign/domain"
	"github.com/smallbiznis/podbudget/internal/config"
	"github.com/smallbiznis/podbudget/internal/observability"
	obslogger "github.com/smallbiznis/podbudget/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/podbudget/internal/observability/metrics"
	obstracing "github.com/smallbiznis/podbudget/internal/observability/tracing"
	organizationdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"github.com/smallbiznis/podbudget/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	auth.Module,
	authorization.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
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
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	verifier      *authservice.Verifier
	sessions      *session.Manager
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	orgSvc        organizationdomain.Service
	agencySvc     agencydomain.Service
	advertiserSvc advertiserdomain.Service
	campaignSvc   campaigndomain.Service
	budgetSvc     budgetdomain.Service
	reportSvc     *report.Service
	writeLimiter  *ratelimit.BudgetWriteLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Verifier      *authservice.Verifier
	Sessions      *session.Manager
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service `optional:"true"`
	OrgSvc        organizationdomain.Service
	AgencySvc     agencydomain.Service
	AdvertiserSvc advertiserdomain.Service
	CampaignSvc   campaigndomain.Service
	BudgetSvc     budgetdomain.Service
	ReportSvc     *report.Service
	WriteLimiter  *ratelimit.BudgetWriteLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics           `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.handler"),
		verifier:      p.Verifier,
		sessions:      p.Sessions,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		orgSvc:        p.OrgSvc,
		agencySvc:     p.AgencySvc,
		advertiserSvc: p.AdvertiserSvc,
		campaignSvc:   p.CampaignSvc,
		budgetSvc:     p.BudgetSvc,
		reportSvc:     p.ReportSvc,
		writeLimiter:  p.WriteLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired(), s.OrgContext())

	// -------- Budgets --------
	budget := api.Group("/budget")
	budget.GET("/comparison", s.authorizeOrgAction(authorization.ObjectBudgetReport, authorization.ActionBudgetReportView), s.GetBudgetComparison)
	budget.GET("/hierarchical", s.authorizeOrgAction(authorization.ObjectBudget, authorization.ActionBudgetView), s.GetHierarchicalBudgets)
	budget.POST("/hierarchical", s.authorizeOrgAction(authorization.ObjectBudget, authorization.ActionBudgetCreate), s.BudgetWriteRateLimit(), s.CreateHierarchicalBudget)
	budget.PUT("/hierarchical/batch", s.authorizeOrgAction(authorization.ObjectBudget, authorization.ActionBudgetBatchUpdate), s.BudgetWriteRateLimit(), s.BatchUpdateHierarchicalBudgets)
	budget.GET("/hierarchical/:id", s.authorizeOrgAction(authorization.ObjectBudget, authorization.ActionBudgetView), s.GetHierarchicalBudgetByID)
	budget.PUT("/hierarchical/:id", s.authorizeOrgAction(authorization.ObjectBudget, authorization.ActionBudgetUpdate), s.BudgetWriteRateLimit(), s.UpdateHierarchicalBudget)
	budget.DELETE("/hierarchical/:id", s.authorizeOrgAction(authorization.ObjectBudget, authorization.ActionBudgetDelete), s.BudgetWriteRateLimit(), s.DeleteHierarchicalBudget)

	// -------- Advertisers --------
	api.GET("/advertisers", s.authorizeOrgAction(authorization.ObjectAdvertiser, authorization.ActionAdvertiserView), s.ListAdvertisers)
	api.POST("/advertisers", s.authorizeOrgAction(authorization.ObjectAdvertiser, authorization.ActionAdvertiserCreate), s.CreateAdvertiser)
	api.GET("/advertisers/:id", s.authorizeOrgAction(authorization.ObjectAdvertiser, authorization.ActionAdvertiserView), s.GetAdvertiserByID)
	api.PATCH("/advertisers/:id", s.authorizeOrgAction(authorization.ObjectAdvertiser, authorization.ActionAdvertiserUpdate), s.UpdateAdvertiser)

	// -------- Agencies --------
	api.GET("/agencies", s.authorizeOrgAction(authorization.ObjectAgency, authorization.ActionAgencyView), s.ListAgencies)
	api.POST("/agencies", s.authorizeOrgAction(authorization.ObjectAgency, authorization.ActionAgencyCreate), s.CreateAgency)
	api.GET("/agencies/:id", s.authorizeOrgAction(authorization.ObjectAgency, authorization.ActionAgencyView), s.GetAgencyByID)
	api.PATCH("/agencies/:id", s.authorizeOrgAction(authorization.ObjectAgency, authorization.ActionAgencyUpdate), s.UpdateAgency)

	// -------- Sellers --------
	api.GET("/sellers", s.authorizeOrgAction(authorization.ObjectSeller, authorization.ActionSellerView), s.ListSellers)

	// -------- Campaigns --------
	api.GET("/campaigns", s.authorizeOrgAction(authorization.ObjectCampaign, authorization.ActionCampaignView), s.ListCampaigns)
	api.POST("/campaigns", s.authorizeOrgAction(authorization.ObjectCampaign, authorization.ActionCampaignCreate), s.CreateCampaign)
	api.GET("/campaigns/:id", s.authorizeOrgAction(authorization.ObjectCampaign, authorization.ActionCampaignView), s.GetCampaignByID)
	api.POST("/campaigns/:id/probability", s.authorizeOrgAction(authorization.ObjectCampaign, authorization.ActionCampaignUpdateProbability), s.UpdateCampaignProbability)

	api.GET("/audit-logs", s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
