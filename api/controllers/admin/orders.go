// Package admin serves the back-office order endpoints.
package admin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/promptlyprinted/promptly-backend/api/middleware"
	"github.com/promptlyprinted/promptly-backend/api/responses"
	"github.com/promptlyprinted/promptly-backend/api/validators"
	"github.com/promptlyprinted/promptly-backend/internal/fulfillment"
	"github.com/promptlyprinted/promptly-backend/internal/orders"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/pagination"
)

type orderReader interface {
	GetDetail(ctx context.Context, orderID uint) (*orders.OrderDetail, error)
	ListProcessingErrors(ctx context.Context, params orders.ProcessingErrorParams) (*orders.ProcessingErrorList, error)
}

type fulfillmentRetrier interface {
	RetryFulfillment(ctx context.Context, orderID uint) (*fulfillment.Result, error)
}

type retryRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// ProcessingErrorPage is the JSON shape of one processing-error page.
type ProcessingErrorPage struct {
	Items      []ProcessingErrorItem `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type ProcessingErrorItem struct {
	ID            uint   `json:"id"`
	OrderID       uint   `json:"order_id"`
	Error         string `json:"error"`
	RetryCount    int    `json:"retry_count"`
	LastAttemptAt string `json:"last_attempt_at"`
	CreatedAt     string `json:"created_at"`
}

// OrderDetail returns an order with its recipient, items, shipments and the
// metadata projected from its event log.
func OrderDetail(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.GetDetail(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// ProcessingErrors pages through the manual-intervention records of an order.
func ProcessingErrors(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.QueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListProcessingErrors(r.Context(), orders.ProcessingErrorParams{
			OrderID: &orderID,
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page := ProcessingErrorPage{Items: make([]ProcessingErrorItem, 0, len(list.Items)), NextCursor: list.NextCursor}
		for _, row := range list.Items {
			page.Items = append(page.Items, ProcessingErrorItem{
				ID:            row.ID,
				OrderID:       row.OrderID,
				Error:         row.Error,
				RetryCount:    row.RetryCount,
				LastAttemptAt: row.LastAttemptAt.UTC().Format(time.RFC3339),
				CreatedAt:     row.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		responses.WriteSuccess(w, page)
	}
}

// RetryFulfillment places the print order again for a paid order whose
// placement failed or never happened.
func RetryFulfillment(svc fulfillmentRetrier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body retryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(logg.WithOrderID(ctx, orderID), map[string]any{
				"requested_by": middleware.StaffIDFromContext(ctx),
				"reason":       validators.Truncate(body.Reason, 500),
			})
			logg.Info(ctx, "fulfillment retry requested")
		}

		result, err := svc.RetryFulfillment(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func orderIDParam(r *http.Request) (uint, error) {
	return validators.PathID(r, "orderId")
}
