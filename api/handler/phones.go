package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/phoneprice/models"
	"github.com/use-agent/phoneprice/webhook"
)

// PhoneService is the part of the orchestrator the handlers need.
type PhoneService interface {
	Process(ctx context.Context, names []string) ([]models.BatchResultEntry, error)
	Lookup(ctx context.Context, name string) (*models.PhoneRecord, error)
}

// Notifier delivers webhook events in the background.
type Notifier interface {
	DeliverAsync(url string, event *webhook.Event)
}

// JobIDHeader is set on batch responses that triggered a webhook.
const JobIDHeader = "X-Job-ID"

// ParsePhones returns a handler for POST /api/v1/phones/parse.
//
// The body's "models" may be a list of names or a single name. A list
// element that is not a string gets its own parse_failed entry and the rest
// are processed as usual. The batch is processed synchronously and the
// response is the list of entries in input order. When webhook_url is set,
// the same entries are also delivered there.
func ParsePhones(svc PhoneService, notifier Notifier, maxModels int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, models.NewError(models.ErrCodeInvalidInput, "invalid request body", err))
			return
		}

		list, err := req.ParseModels()
		if err != nil {
			respondError(c, err)
			return
		}
		if maxModels > 0 && list.Len() > maxModels {
			respondError(c, models.NewError(models.ErrCodeInvalidInput,
				fmt.Sprintf("maximum %d models per request", maxModels), nil))
			return
		}

		var processed []models.BatchResultEntry
		if len(list.Names) > 0 {
			processed, err = svc.Process(c.Request.Context(), list.Names)
			if err != nil {
				respondError(c, err)
				return
			}
		}
		entries := list.Merge(processed)

		if req.WebhookURL != "" && notifier != nil {
			jobID := "phones-" + randomID()
			notifier.DeliverAsync(req.WebhookURL, &webhook.Event{
				Type:      webhook.EventPhonesParsed,
				JobID:     jobID,
				Timestamp: time.Now().Unix(),
				Data:      entries,
			})
			c.Header(JobIDHeader, jobID)
		}

		c.JSON(http.StatusOK, entries)
	}
}

// GetPhone returns a handler for GET /api/v1/phones/:model.
// It serves the stored record as is, without checking its age.
func GetPhone(svc PhoneService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := svc.Lookup(c.Request.Context(), c.Param("model"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
