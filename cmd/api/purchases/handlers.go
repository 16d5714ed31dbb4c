package purchases

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	app "github.com/top-ti/inventory-go/cmd/api/app"
	"github.com/top-ti/inventory-go/cmd/api/auth"
	"github.com/top-ti/inventory-go/cmd/api/equipment"
)

func actor(c *gin.Context) string {
	if u, ok := auth.CurrentUser(c); ok {
		return u.ActorName()
	}
	return "system"
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid purchase request id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes wires the purchase request endpoints.
func RegisterRoutes(r *gin.RouterGroup, a *app.App) {
	svc := NewService(a.DB, equipment.NewService(a.DB, a.Q))
	r.GET("/purchases", listPurchases(svc))
	r.POST("/purchases", createPurchase(svc))
	r.GET("/purchases/:id", getPurchase(svc))
	r.PATCH("/purchases/:id", updatePurchase(svc))
	r.DELETE("/purchases/:id", auth.RequireRole("admin"), deletePurchase(svc))
	r.POST("/purchases/:id/convert", convertPurchase(svc))
}

func listPurchases(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters SearchFilters
		if err := c.ShouldBindQuery(&filters); err != nil {
			app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid query parameters", nil)
			return
		}
		resp, err := svc.List(c.Request.Context(), filters)
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func createPurchase(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		p, err := svc.Create(c.Request.Context(), req)
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func getPurchase(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		p, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func updatePurchase(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		p, err := svc.Update(c.Request.Context(), id, req)
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func deletePurchase(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			app.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func convertPurchase(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req ConvertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		e, err := svc.Convert(c.Request.Context(), id, req, actor(c))
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, e)
	}
}
