package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mockexam-workers/internal/common/errors"
	"mockexam-workers/internal/common/validation"
	"mockexam-workers/internal/credits"
	exportbookings "mockexam-workers/internal/workers/admin/export-bookings"
	verifybookingcounter "mockexam-workers/internal/workers/booking/verify-booking-counter"
	transformlogincredits "mockexam-workers/internal/workers/credits/transform-login-credits"
	searchobjects "mockexam-workers/internal/workers/crm/search-objects"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a health check function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type EligibilityService interface {
	Execute(ctx context.Context, input *transformlogincredits.Input) (*transformlogincredits.Output, error)
	CachedEligibility(ctx context.Context, contactID string) (credits.Eligibility, error)
}

type CounterVerifier interface {
	Execute(ctx context.Context, input *verifybookingcounter.Input) (*verifybookingcounter.Output, error)
}

type CheckHistory interface {
	RecentChecks(ctx context.Context, mockExamID string, limit int) ([]verifybookingcounter.Output, error)
}

type BookingExporter interface {
	Execute(ctx context.Context, input *exportbookings.Input) (*exportbookings.Output, error)
}

type ObjectSearch interface {
	Execute(ctx context.Context, input *searchobjects.Input) (*searchobjects.Output, error)
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

// ReadyHandler reports ready once Redis answers a ping. The Zeebe gateway is
// checked too when a pinger is given.
func ReadyHandler(redis, zeebe Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redis == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "redis": "not configured"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := redis.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "redis": "down", "error": err.Error()})
			return
		}
		if zeebe != nil {
			if err := zeebe.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "zeebe": "down", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// CreditEligibilityHandler transforms a login response body without caching it.
func CreditEligibilityHandler(svc EligibilityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			abortUnavailable(c, "credit eligibility")
			return
		}

		var payload map[string]interface{}
		if err := c.ShouldBindJSON(&payload); err != nil {
			abortWithError(c, errors.NewInputParsingFailedError(err))
			return
		}

		output, err := svc.Execute(c.Request.Context(), &transformlogincredits.Input{
			LoginResponse: credits.ParseLoginResponse(payload),
			CacheResult:   false,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, output.CreditEligibility)
	}
}

// CachedEligibilityHandler returns the mapping the login worker last cached
// for a contact; 404 when nothing is cached.
func CachedEligibilityHandler(svc EligibilityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			abortUnavailable(c, "credit eligibility")
			return
		}

		contactID := strings.TrimSpace(c.Param("contactId"))
		if contactID == "" {
			abortWithError(c, errors.NewValidationFailedError("contact id must not be blank"))
			return
		}

		eligibility, err := svc.CachedEligibility(c.Request.Context(), contactID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, eligibility)
	}
}

// BookingCounterHandler runs a read-only counter check. Drift is reported
// but never alerted from the admin panel.
func BookingCounterHandler(svc CounterVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			abortUnavailable(c, "booking counter verification")
			return
		}

		id := strings.TrimSpace(c.Param("id"))
		if id == "" {
			abortWithError(c, errors.NewValidationFailedError("mock exam id must not be blank"))
			return
		}

		output, err := svc.Execute(c.Request.Context(), &verifybookingcounter.Input{
			MockExamID:   id,
			AlertOnDrift: false,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, output)
	}
}

func BookingCounterHistoryHandler(history CheckHistory) gin.HandlerFunc {
	return func(c *gin.Context) {
		if history == nil {
			abortUnavailable(c, "counter check history")
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		checks, err := history.RecentChecks(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			abortWithError(c, errors.NewAuditReadFailedError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"mockExamId": c.Param("id"), "checks": checks})
	}
}

// ExportBookingsHandler streams the CSV back as a download. Delivery by
// email still happens when the body names a recipient.
func ExportBookingsHandler(svc BookingExporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			abortUnavailable(c, "booking export")
			return
		}

		var payload map[string]interface{}
		if err := c.ShouldBindJSON(&payload); err != nil {
			abortWithError(c, errors.NewInputParsingFailedError(err))
			return
		}
		if result := validation.ValidateInput(payload, exportbookings.GetInputSchema()); !result.Valid {
			abortWithError(c, errors.NewValidationFailedError(
				fmt.Sprintf("Validation errors: %v", result.GetErrorMessages())))
			return
		}

		output, err := svc.Execute(c.Request.Context(), exportbookings.InputFromVariables(payload))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, output.FileName))
		c.Header("X-Export-Id", output.ExportID)
		c.Header("X-Export-Rows", strconv.Itoa(output.RowCount))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(output.CSV))
	}
}

func CRMSearchHandler(svc ObjectSearch) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			abortUnavailable(c, "crm search")
			return
		}

		var payload map[string]interface{}
		if err := c.ShouldBindJSON(&payload); err != nil {
			abortWithError(c, errors.NewInputParsingFailedError(err))
			return
		}
		if result := validation.ValidateInput(payload, searchobjects.GetInputSchema()); !result.Valid {
			abortWithError(c, errors.NewValidationFailedError(
				fmt.Sprintf("Validation errors: %v", result.GetErrorMessages())))
			return
		}

		output, err := svc.Execute(c.Request.Context(), searchobjects.InputFromVariables(payload))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, output)
	}
}
