package api

import (
	"mockexam-workers/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the services behind the admin routes. A nil service makes
// its route answer 503.
type Dependencies struct {
	Logger      logger.Logger
	AdminToken  string
	Redis       Pinger
	Zeebe       Pinger
	Eligibility EligibilityService
	Counter     CounterVerifier
	History     CheckHistory
	Export      BookingExporter
	Search      ObjectSearch
}

func NewRouter(deps Dependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogging(log))

	r.GET("/health", HealthHandler())
	r.GET("/ready", ReadyHandler(deps.Redis, deps.Zeebe))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/api/admin", AdminAuth(deps.AdminToken))
	{
		admin.POST("/credits/eligibility", CreditEligibilityHandler(deps.Eligibility))
		admin.GET("/contacts/:contactId/credit-eligibility", CachedEligibilityHandler(deps.Eligibility))
		admin.GET("/mock-exams/:id/booking-counter", BookingCounterHandler(deps.Counter))
		admin.GET("/mock-exams/:id/booking-counter/history", BookingCounterHistoryHandler(deps.History))
		admin.POST("/bookings/export", ExportBookingsHandler(deps.Export))
		admin.POST("/crm/search", CRMSearchHandler(deps.Search))
	}

	return r
}
