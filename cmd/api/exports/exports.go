package exports

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"

	app "github.com/top-ti/inventory-go/cmd/api/app"
	"github.com/top-ti/inventory-go/cmd/api/equipment"
	"github.com/top-ti/inventory-go/internal/errs"
)

const sheetName = "Inventory"

var headers = []string{
	"Asset Number", "Description", "Brand", "Model", "Status",
	"Location", "Responsible", "Acquisition Date", "Value",
}

// BuildWorkbook renders the equipment list into an XLSX workbook.
func BuildWorkbook(items []equipment.Equipment) (*excelize.File, error) {
	f := excelize.NewFile()
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}

	for i, e := range items {
		row := i + 2
		vals := []interface{}{
			e.AssetNumber, e.Description, e.Brand, e.Model, string(e.Status),
			e.Location, e.Responsible, e.AcquisitionDate.String(), e.Value.String(),
		}
		for col, v := range vals {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// RegisterRoutes wires the export endpoint.
func RegisterRoutes(r *gin.RouterGroup, a *app.App) {
	r.POST("/exports/equipment", Equipment(a))
}

// Equipment exports the filtered inventory to XLSX, stores the workbook and
// returns a download URL.
func Equipment(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.M == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object store not configured"})
			return
		}
		var filters equipment.SearchFilters
		if err := c.ShouldBindJSON(&filters); err != nil && c.Request.ContentLength > 0 {
			app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		filters.Limit = 100

		ctx := c.Request.Context()
		svc := equipment.NewService(a.DB, a.Q)
		var items []equipment.Equipment
		for page := 1; ; page++ {
			filters.Page = page
			resp, err := svc.List(ctx, filters)
			if err != nil {
				app.Fail(c, err)
				return
			}
			items = append(items, resp.Equipment...)
			if len(items) >= resp.Total || len(resp.Equipment) == 0 {
				break
			}
		}

		wb, err := BuildWorkbook(items)
		if err != nil {
			app.Fail(c, &errs.PersistenceError{Op: "render workbook", Err: err})
			return
		}
		buf, err := wb.WriteToBuffer()
		if err != nil {
			app.Fail(c, &errs.PersistenceError{Op: "encode workbook", Err: err})
			return
		}

		objectKey := "exports/" + uuid.NewString() + ".xlsx"
		const ct = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		if _, err := a.M.PutObject(ctx, a.Cfg.MinIOBucket, objectKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{ContentType: ct}); err != nil {
			app.Fail(c, &errs.PersistenceError{Op: "store export", Err: err})
			return
		}

		if a.S3 != nil {
			url, err := a.S3.PresignGet(ctx, objectKey, "inventory.xlsx", 15*time.Minute)
			if err != nil {
				app.AbortError(c, http.StatusBadGateway, "presign_failed", "could not presign export", nil)
				return
			}
			c.JSON(http.StatusOK, gin.H{"url": url, "count": len(items)})
			return
		}
		scheme := "http"
		if a.Cfg.MinIOUseSSL {
			scheme = "https"
		}
		url := fmt.Sprintf("%s://%s/%s/%s", scheme, a.Cfg.MinIOEndpoint, a.Cfg.MinIOBucket, objectKey)
		c.JSON(http.StatusOK, gin.H{"url": url, "count": len(items)})
	}
}
