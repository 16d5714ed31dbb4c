// Package esign talks to the external e-signature provider used for
// transfer terms. Requests authenticate with an API key header; the provider
// notifies nobody, so callers poll GetStatus.
package esign

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Signer identifies one party who must sign a document.
type Signer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Document is the provider's view of a submitted document.
type Document struct {
	ID          string   `json:"id"`
	SignerIDs   []string `json:"signer_ids"`
	DocumentURL string   `json:"document_url"`
}

// SignatureStatus reports whether all parties have signed.
type SignatureStatus struct {
	Signed            bool       `json:"signed"`
	SignedAt          *time.Time `json:"signed_at"`
	SignedDocumentURL string     `json:"signed_document_url"`
}

// DocumentRenderer produces the PDF that gets submitted for signature.
type DocumentRenderer interface {
	RenderTransferTerm(title string, fields map[string]string) ([]byte, error)
}

// Client is a thin HTTP client for the e-signature provider.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// New creates a client with a 30s request timeout.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("esign: %s %s returned %d: %s", method, path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateDocument submits a PDF for signature and returns the provider ids.
func (c *Client) CreateDocument(ctx context.Context, title string, pdf []byte, signers []Signer) (*Document, error) {
	payload := map[string]interface{}{
		"title":       title,
		"content":     base64.StdEncoding.EncodeToString(pdf),
		"signers":     signers,
		"auto_remind": true,
	}
	var doc Document
	if err := c.do(ctx, http.MethodPost, "/v1/documents", payload, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetStatus polls the signature status for a document.
func (c *Client) GetStatus(ctx context.Context, documentID string) (*SignatureStatus, error) {
	var st SignatureStatus
	if err := c.do(ctx, http.MethodGet, "/v1/documents/"+documentID+"/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
