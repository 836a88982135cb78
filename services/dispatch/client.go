// Package dispatch forwards confirmed bookings to the external ride
// dispatch API.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"cabgo/models"
	"cabgo/utils"
)

// Dispatcher submits a confirmed booking and reports the outcome. A nil
// error with Success=false means the dispatch system rejected the request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *models.BookingRequest) (*models.DispatchResult, error)
}

// Package-level HTTP client for dispatch calls.
var dispatchHTTPClient = &http.Client{Timeout: 5 * time.Second}

// HTTPDispatcher posts bookings as JSON to the dispatch endpoint.
type HTTPDispatcher struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPDispatcher targets url; a zero timeout keeps the package default.
func NewHTTPDispatcher(url string, timeout time.Duration) *HTTPDispatcher {
	client := dispatchHTTPClient
	if timeout > 0 {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPDispatcher{url: url, client: client, logger: utils.GetLogger()}
}

// Dispatch posts the booking and decodes the dispatch outcome.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, booking *models.BookingRequest) (*models.DispatchResult, error) {
	payload, err := json.Marshal(booking)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.logger.Error("Failed to reach dispatch service",
			zap.String("sessionId", booking.SessionID), zap.Error(err))
		return nil, fmt.Errorf("failed to reach dispatch service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Error("Dispatch service returned non-OK status",
			zap.String("sessionId", booking.SessionID), zap.Int("status", resp.StatusCode))
		return &models.DispatchResult{Success: false}, nil
	}

	var result models.DispatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode dispatch response: %w", err)
	}
	if result.Success && result.BookingID == "" {
		// A success without an id cannot be spoken back to the caller.
		d.logger.Warn("Dispatch success missing booking id",
			zap.String("sessionId", booking.SessionID))
		return &models.DispatchResult{Success: false}, nil
	}
	return &result, nil
}
