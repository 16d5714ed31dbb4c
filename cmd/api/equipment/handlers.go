package equipment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	app "github.com/top-ti/inventory-go/cmd/api/app"
	"github.com/top-ti/inventory-go/cmd/api/auth"
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
		app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid equipment id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes wires the equipment endpoints.
func RegisterRoutes(r *gin.RouterGroup, a *app.App) {
	svc := NewService(a.DB, a.Q)
	r.GET("/equipment", listEquipment(svc))
	r.POST("/equipment", createEquipment(svc))
	r.GET("/equipment/:id", getEquipment(svc))
	r.PATCH("/equipment/:id", updateEquipment(svc))
	r.DELETE("/equipment/:id", auth.RequireRole("admin"), deleteEquipment(svc))
	r.POST("/equipment/:id/transfer", transferEquipment(svc))
	r.GET("/equipment/:id/history", equipmentHistory(svc))
	r.POST("/equipment/:id/transfer-term", createTransferTerm(a, svc))
	r.GET("/equipment/:id/transfer-term/:docID", transferTermStatus(a))
}

func listEquipment(svc *Service) gin.HandlerFunc {
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

func createEquipment(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEquipmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		e, err := svc.Create(c.Request.Context(), req, actor(c))
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, e)
	}
}

func getEquipment(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		e, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

func updateEquipment(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req UpdateEquipmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		e, err := svc.Update(c.Request.Context(), id, req, actor(c))
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

func deleteEquipment(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id, actor(c)); err != nil {
			app.Fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func transferEquipment(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req TransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		e, err := svc.Transfer(c.Request.Context(), id, req, actor(c))
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

func equipmentHistory(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var p struct {
			Page  int `form:"page"`
			Limit int `form:"limit"`
		}
		_ = c.ShouldBindQuery(&p)
		resp, err := svc.History(c.Request.Context(), id, p.Page, p.Limit)
		if err != nil {
			app.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
