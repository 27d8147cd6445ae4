package shipway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"returns-backend/internal/domains/returns/courier"
	"returns-backend/pkg/logger"
)

// =====================================================
// SHIPWAY CLIENT IMPLEMENTATION
// =====================================================

type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new Shipway courier client
func NewClient(config *Config) courier.Gateway {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// slotsResponse is the provider envelope for GET /v1/pickup/slots
type slotsResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Slots   []string `json:"slots"`
}

// bookingResponse is the provider envelope for POST /v1/pickup/book
type bookingResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	ErrorCode      string `json:"error_code"`
	TrackingNumber string `json:"tracking_number"`
}

// =====================================================
// AVAILABLE SLOTS
// =====================================================

// AvailableSlots queries pickup windows for (pincode, date)
func (c *Client) AvailableSlots(ctx context.Context, pincode string, date time.Time) ([]courier.TimeSlot, error) {
	endpoint := fmt.Sprintf("%s?pincode=%s&date=%s",
		c.config.GetSlotsURL(),
		url.QueryEscape(pincode),
		date.Format(dateLayout),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create slots request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Timeouts, DNS failures and connection resets are all retryable
		// from the operator's point of view.
		logger.Error("Shipway slots call failed", err)
		return nil, courier.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, courier.ErrProviderUnavailable
	}

	var envelope slotsResponse
	if err := c.decode(resp.Body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Status != statusSuccess {
		return nil, fmt.Errorf("shipway slots error: %s", envelope.Message)
	}

	slots := make([]courier.TimeSlot, 0, len(envelope.Slots))
	for _, s := range envelope.Slots {
		slots = append(slots, courier.TimeSlot(s))
	}
	return slots, nil
}

// =====================================================
// BOOK PICKUP
// =====================================================

// BookPickup reserves a slot and returns the provider tracking number
func (c *Client) BookPickup(ctx context.Context, req courier.BookingRequest) (string, error) {
	body := map[string]interface{}{
		"pincode":              req.Pincode,
		"pickup_date":          req.Date.Format(dateLayout),
		"time_slot":            req.Slot.String(),
		"customer_name":        req.CustomerName,
		"phone":                req.Phone,
		"address":              req.Address,
		"city":                 req.City,
		"state":                req.State,
		"special_instructions": req.SpecialInstructions,
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal booking request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GetBookingURL(), bytes.NewReader(bodyJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create booking request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Error("Shipway booking call failed", err)
		return "", courier.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", courier.ErrProviderUnavailable
	}

	var envelope bookingResponse
	if err := c.decode(resp.Body, &envelope); err != nil {
		return "", err
	}

	if envelope.Status != statusSuccess {
		if envelope.ErrorCode == codeSlotTaken || resp.StatusCode == http.StatusConflict {
			return "", courier.ErrSlotNoLongerAvailable
		}
		return "", fmt.Errorf("shipway booking error: %s", envelope.Message)
	}

	if envelope.TrackingNumber == "" {
		return "", errors.New("tracking_number missing in shipway response")
	}
	return envelope.TrackingNumber, nil
}

func (c *Client) decode(body io.Reader, dest interface{}) error {
	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read shipway response: %w", err)
	}
	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return fmt.Errorf("failed to unmarshal shipway response: %w", err)
	}
	return nil
}
