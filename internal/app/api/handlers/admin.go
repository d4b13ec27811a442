package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagflow/gatekeeper/internal/app/service/ledger"
	"github.com/pagflow/gatekeeper/internal/app/service/statistics"
	"github.com/pagflow/gatekeeper/pkg/response"
)

// ApiListSubscriptions handles POST /admin/list_subscriptions with the
// common filter/pagination envelope.
func ApiListSubscriptions(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ScanSubscriptions(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// ApiListEvents handles POST /admin/list_events over the applied-event audit
// table.
func ApiListEvents(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ScanEvents(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// ApiGrantAccess handles POST /admin/grant_access: comp access issued by an
// operator, applied through the same write path as provider events.
func ApiGrantAccess(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserIdentity string `json:"user_identity"`
			PlanID       string `json:"plan_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.UserIdentity == "" || req.PlanID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_identity or plan_id"))
			return
		}
		rec, err := svc.Grant(c.Request.Context(), req.UserIdentity, req.PlanID, c.GetString("operatorID"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rec))
	}
}

// ApiRevokeAccess handles POST /admin/revoke_access. Marks the row revoked;
// valid_until is kept for audit.
func ApiRevokeAccess(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserIdentity string `json:"user_identity"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.UserIdentity == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_identity"))
			return
		}
		rec, err := svc.Revoke(c.Request.Context(), req.UserIdentity)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rec))
	}
}

// ApiGetOverview handles POST /admin/get_overview.
func ApiGetOverview(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := stats.Overview(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, svc *ledger.Service, stats *statistics.Service) {
	r.POST("/list_subscriptions", ApiListSubscriptions(svc))
	r.POST("/list_events", ApiListEvents(svc))
	r.POST("/grant_access", ApiGrantAccess(svc))
	r.POST("/revoke_access", ApiRevokeAccess(svc))
	r.POST("/get_overview", ApiGetOverview(stats))
}
