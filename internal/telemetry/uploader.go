// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

// DocumentClient is the transport surface the submitter drives. Errors are
// classified through ErrHardFailure and ErrSoftFailure.
type DocumentClient interface {
	Upload(ctx context.Context, doc models.TelemetryDocument) error
	Delete(ctx context.Context, id string) error
}

// UploaderConfig configures the telemetry HTTP client.
type UploaderConfig struct {
	BaseURL   string
	Namespace string
	Timeout   time.Duration
}

// Uploader submits documents to the telemetry endpoint, one POST per
// document and one DELETE per obsolete id.
type Uploader struct {
	client    *resty.Client
	namespace string
	log       *logger.Logger
}

// NewUploader builds a telemetry client for the configured endpoint.
func NewUploader(cfg UploaderConfig, log *logger.Logger) *Uploader {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Uploader{
		client:    client,
		namespace: cfg.Namespace,
		log:       log,
	}
}

// Upload posts one document under its namespace and id. The obsolete list
// rides along in the body so the server can mark superseded documents.
func (u *Uploader) Upload(ctx context.Context, doc models.TelemetryDocument) error {
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(doc).
		Post(fmt.Sprintf("/submit/%s/%s", u.namespace, doc.ID))
	if err != nil {
		return fmt.Errorf("%w: upload %s: %w", ErrSoftFailure, doc.ID, err)
	}
	return mapSubmissionStatus(resp.StatusCode())
}

// Delete asks the server to drop one obsolete document. A 404 counts as
// success: the document is gone either way.
func (u *Uploader) Delete(ctx context.Context, id string) error {
	resp, err := u.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/submit/%s/%s", u.namespace, id))
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrSoftFailure, id, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return mapSubmissionStatus(resp.StatusCode())
}

// mapSubmissionStatus classifies the server's verdict: 4xx responses are
// hard failures retrying cannot fix, 5xx are transient.
func mapSubmissionStatus(code int) error {
	switch {
	case code == http.StatusOK, code == http.StatusCreated, code == http.StatusNoContent:
		return nil
	case code == http.StatusBadRequest:
		return fmt.Errorf("%w: validation failed", ErrHardFailure)
	case code == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: document too large", ErrHardFailure)
	case code >= 500:
		return fmt.Errorf("%w: server status %d", ErrSoftFailure, code)
	default:
		return fmt.Errorf("%w: status %d", ErrHardFailure, code)
	}
}
