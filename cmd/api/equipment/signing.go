package equipment

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	app "github.com/top-ti/inventory-go/cmd/api/app"
	"github.com/top-ti/inventory-go/internal/errs"
	"github.com/top-ti/inventory-go/internal/esign"
)

// TransferTermRequest submits a signed transfer term to the e-signature
// provider. The signer is the person receiving responsibility.
type TransferTermRequest struct {
	SignerName  string `json:"signer_name"`
	SignerEmail string `json:"signer_email"`
	NewLocation string `json:"new_location"`
}

type transferTermResponse struct {
	DocumentID  string `json:"document_id"`
	DocumentURL string `json:"document_url"`
}

// createTransferTerm renders a transfer term PDF, submits it for signature
// and records the pending document. 503 when no provider is configured.
func createTransferTerm(a *app.App, svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Esign == nil || a.Renderer == nil {
			app.AbortError(c, http.StatusServiceUnavailable, "esign_unavailable", "e-signature provider not configured", nil)
			return
		}
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req TransferTermRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			app.AbortError(c, http.StatusBadRequest, "bad_request", "invalid request body", nil)
			return
		}
		fields := map[string]string{}
		if req.SignerName == "" {
			fields["signer_name"] = "is required"
		}
		if req.SignerEmail == "" {
			fields["signer_email"] = "is required"
		}
		if req.NewLocation == "" {
			fields["new_location"] = "is required"
		}
		if len(fields) > 0 {
			app.Fail(c, &errs.ValidationError{Fields: fields})
			return
		}

		ctx := c.Request.Context()
		e, err := svc.Get(ctx, id)
		if err != nil {
			app.Fail(c, err)
			return
		}

		title := "Transfer term " + e.AssetNumber
		pdf, err := a.Renderer.RenderTransferTerm(title, map[string]string{
			"asset_number": e.AssetNumber,
			"description":  e.Description,
			"from":         e.Location,
			"to":           req.NewLocation,
			"signer":       req.SignerName,
			"date":         Today().String(),
		})
		if err != nil {
			app.AbortError(c, http.StatusBadGateway, "esign_render", "could not render transfer term", nil)
			return
		}

		doc, err := a.Esign.CreateDocument(ctx, title, pdf, []esign.Signer{{Name: req.SignerName, Email: req.SignerEmail}})
		if err != nil {
			app.AbortError(c, http.StatusBadGateway, "esign_submit", "e-signature provider rejected the document", nil)
			return
		}

		if _, err := a.DB.Exec(ctx, `
			insert into signature_documents (id, equipment_id, provider_document_id, signer_name, signer_email, status, created_at)
			values ($1, $2, $3, $4, $5, 'pending', $6)`,
			uuid.New(), id, doc.ID, req.SignerName, req.SignerEmail, time.Now()); err != nil {
			app.Fail(c, &errs.PersistenceError{Op: "insert signature document", Err: err})
			return
		}
		c.JSON(http.StatusCreated, transferTermResponse{DocumentID: doc.ID, DocumentURL: doc.DocumentURL})
	}
}

// transferTermStatus polls the provider for a document's signature state.
func transferTermStatus(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Esign == nil {
			app.AbortError(c, http.StatusServiceUnavailable, "esign_unavailable", "e-signature provider not configured", nil)
			return
		}
		if _, ok := parseID(c); !ok {
			return
		}
		st, err := a.Esign.GetStatus(c.Request.Context(), c.Param("docID"))
		if err != nil {
			app.AbortError(c, http.StatusBadGateway, "esign_status", "could not fetch signature status", nil)
			return
		}
		if st.Signed {
			if _, err := a.DB.Exec(c.Request.Context(),
				"update signature_documents set status = 'signed', signed_at = $1 where provider_document_id = $2",
				st.SignedAt, c.Param("docID")); err != nil {
				app.Fail(c, &errs.PersistenceError{Op: "update signature document", Err: err})
				return
			}
		}
		c.JSON(http.StatusOK, st)
	}
}
