package attachments

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog/log"

	app "github.com/top-ti/inventory-go/cmd/api/app"
	"github.com/top-ti/inventory-go/cmd/api/auth"
	"github.com/top-ti/inventory-go/cmd/api/equipment"
	"github.com/top-ti/inventory-go/internal/errs"
)

// MaxSize is the upload ceiling. Files of exactly this size pass.
const MaxSize = 10 << 20

// Attachment is stored metadata for one uploaded file. Category is inferred
// for display and never persisted.
type Attachment struct {
	ID          uuid.UUID `json:"id"`
	EquipmentID uuid.UUID `json:"equipment_id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	MimeType    string    `json:"mime_type"`
	ObjectKey   string    `json:"-"`
	UploadedBy  string    `json:"uploaded_by"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// InferCategory labels an attachment from filename keywords and MIME type.
// Display-only; the label is recomputed on every read.
func InferCategory(filename, mimeType string) string {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "invoice") || strings.Contains(name, "nota") || strings.Contains(name, "nf-"):
		return "invoice"
	case strings.Contains(name, "purchase") || strings.Contains(name, "order") || strings.Contains(name, "pedido"):
		return "purchase_order"
	case strings.Contains(name, "manual") || strings.Contains(name, "guide") || mimeType == "text/markdown":
		return "manual"
	}
	return "other"
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\\", "_")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "file"
	}
	return out
}

func actor(c *gin.Context) string {
	if u, ok := auth.CurrentUser(c); ok {
		return u.ActorName()
	}
	return "system"
}

func parseEquipmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid equipment id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func equipmentExists(c *gin.Context, a *app.App, id uuid.UUID) bool {
	var one int
	err := a.DB.QueryRow(c.Request.Context(), "select 1 from equipment where id=$1", id).Scan(&one)
	if err == nil {
		return true
	}
	if errors.Is(err, pgx.ErrNoRows) {
		app.Fail(c, &errs.NotFoundError{Entity: "equipment", ID: id.String()})
	} else {
		app.Fail(c, &errs.PersistenceError{Op: "check equipment", Err: err})
	}
	return false
}

// RegisterRoutes wires the attachment endpoints.
func RegisterRoutes(r *gin.RouterGroup, a *app.App) {
	r.GET("/equipment/:id/attachments", List(a))
	r.POST("/equipment/:id/attachments", Upload(a))
	r.GET("/equipment/:id/attachments/:attID", Download(a))
	r.DELETE("/equipment/:id/attachments/:attID", Remove(a))
}

// Upload stores the file bytes, persists metadata and appends an
// attached_file history entry.
func Upload(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.M == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object store not configured"})
			return
		}
		id, ok := parseEquipmentID(c)
		if !ok {
			return
		}
		f, header, err := c.Request.FormFile("file")
		if err != nil {
			app.AbortError(c, http.StatusBadRequest, "bad_request", "file is required", nil)
			return
		}
		defer f.Close()

		if header.Size > MaxSize {
			app.Fail(c, &errs.FileTooLargeError{Size: header.Size, Limit: MaxSize})
			return
		}
		if !equipmentExists(c, a, id) {
			return
		}

		safeName := sanitizeFilename(header.Filename)
		ct := header.Header.Get("Content-Type")
		if ct == "" {
			ct = mime.TypeByExtension(filepath.Ext(safeName))
		}
		key := id.String() + "/" + uuid.NewString() + "-" + safeName

		ctx := c.Request.Context()
		if _, err := a.M.PutObject(ctx, a.Cfg.MinIOBucket, key, f, header.Size, minio.PutObjectOptions{ContentType: ct}); err != nil {
			app.Fail(c, &errs.PersistenceError{Op: "store attachment bytes", Err: err})
			return
		}

		att := Attachment{
			ID:          uuid.New(),
			EquipmentID: id,
			Filename:    header.Filename,
			Size:        header.Size,
			MimeType:    ct,
			ObjectKey:   key,
			UploadedBy:  actor(c),
			Category:    InferCategory(header.Filename, ct),
			CreatedAt:   time.Now(),
		}
		if _, err := a.DB.Exec(ctx, `
			insert into attachments (id, equipment_id, filename, size_bytes, mime_type, object_key, uploaded_by, created_at)
			values ($1, $2, $3, $4, $5, $6, $7, $8)`,
			att.ID, att.EquipmentID, att.Filename, att.Size, att.MimeType, att.ObjectKey, att.UploadedBy, att.CreatedAt); err != nil {
			app.Fail(c, &errs.PersistenceError{Op: "insert attachment", Err: err})
			return
		}

		rec := equipment.NewRecorder(a.DB)
		if err := rec.RecordAttachmentAdded(ctx, id, att.UploadedBy, att.Filename); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("attachment_id", att.ID.String()).Msg("attachment history entry failed")
		}
		c.JSON(http.StatusCreated, att)
	}
}

// List returns attachment metadata for one equipment id.
func List(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseEquipmentID(c)
		if !ok {
			return
		}
		rows, err := a.DB.Query(c.Request.Context(), `
			select id, equipment_id, filename, size_bytes, mime_type, object_key, uploaded_by, created_at
			from attachments where equipment_id=$1 order by created_at asc`, id)
		if err != nil {
			app.Fail(c, &errs.PersistenceError{Op: "list attachments", Err: err})
			return
		}
		defer rows.Close()

		out := []Attachment{}
		for rows.Next() {
			var att Attachment
			if err := rows.Scan(&att.ID, &att.EquipmentID, &att.Filename, &att.Size, &att.MimeType, &att.ObjectKey, &att.UploadedBy, &att.CreatedAt); err != nil {
				app.Fail(c, &errs.PersistenceError{Op: "scan attachment", Err: err})
				return
			}
			att.Category = InferCategory(att.Filename, att.MimeType)
			out = append(out, att)
		}
		c.JSON(http.StatusOK, out)
	}
}

func lookup(c *gin.Context, a *app.App) (*Attachment, bool) {
	attID, err := uuid.Parse(c.Param("attID"))
	if err != nil {
		app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid attachment id", nil)
		return nil, false
	}
	var att Attachment
	if err := a.DB.QueryRow(c.Request.Context(), `
		select id, equipment_id, filename, size_bytes, mime_type, object_key, uploaded_by, created_at
		from attachments where id=$1 and equipment_id=$2`, attID, c.Param("id")).
		Scan(&att.ID, &att.EquipmentID, &att.Filename, &att.Size, &att.MimeType, &att.ObjectKey, &att.UploadedBy, &att.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			app.Fail(c, &errs.NotFoundError{Entity: "attachment", ID: attID.String()})
		} else {
			app.Fail(c, &errs.PersistenceError{Op: "get attachment", Err: err})
		}
		return nil, false
	}
	return &att, true
}

// Download answers a presigned URL when MinIO is configured, or streams from
// the filesystem store in development.
func Download(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		att, ok := lookup(c, a)
		if !ok {
			return
		}
		if a.S3 != nil {
			url, err := a.S3.PresignGet(c.Request.Context(), att.ObjectKey, att.Filename, 15*time.Minute)
			if err != nil {
				app.AbortError(c, http.StatusBadGateway, "presign_failed", "could not presign download", nil)
				return
			}
			c.JSON(http.StatusOK, gin.H{"url": url})
			return
		}
		if fs, isFs := a.M.(*app.FsObjectStore); isFs {
			root := filepath.Join(fs.Base, a.Cfg.MinIOBucket)
			path := filepath.Clean(filepath.Join(root, att.ObjectKey))
			if rel, err := filepath.Rel(root, path); err != nil || strings.HasPrefix(rel, "..") {
				app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid path", nil)
				return
			}
			data, err := os.ReadFile(path)
			if err != nil {
				app.Fail(c, &errs.NotFoundError{Entity: "attachment", ID: att.ID.String()})
				return
			}
			c.Writer.Header().Set("Content-Type", att.MimeType)
			c.Writer.Header().Set("Content-Disposition", "attachment; filename=\""+strings.ReplaceAll(att.Filename, "\"", "")+"\"")
			_, _ = c.Writer.Write(data)
			return
		}
		c.JSON(http.StatusNotImplemented, gin.H{"error": "download not available"})
	}
}

// Remove deletes the metadata row, then best-effort removes the stored bytes
// and appends a removed_file history entry. The metadata row is the source
// of truth; an orphaned blob is acceptable, a dangling row is not.
func Remove(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.M == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object store not configured"})
			return
		}
		att, ok := lookup(c, a)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if _, err := a.DB.Exec(ctx, "delete from attachments where id = $1", att.ID); err != nil {
			app.Fail(c, &errs.PersistenceError{Op: "delete attachment", Err: err})
			return
		}
		if err := a.M.RemoveObject(ctx, a.Cfg.MinIOBucket, att.ObjectKey, minio.RemoveObjectOptions{}); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("object_key", att.ObjectKey).Msg("attachment blob removal failed")
		}
		rec := equipment.NewRecorder(a.DB)
		if err := rec.RecordAttachmentRemoved(ctx, att.EquipmentID, actor(c), att.Filename); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("attachment removal history entry failed")
		}
		c.Status(http.StatusNoContent)
	}
}
