package shipway

import "time"

// =====================================================
// SHIPWAY CONFIGURATION
// =====================================================

type Config struct {
	APIKey  string        // Merchant API key, sent as X-Api-Key header
	APIUrl  string        // Shipway API base URL
	Timeout time.Duration // Per-call HTTP timeout
}

// NewConfig creates Shipway configuration
func NewConfig(apiKey, apiURL string, timeout time.Duration) *Config {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Config{
		APIKey:  apiKey,
		APIUrl:  apiURL,
		Timeout: timeout,
	}
}

// GetSlotsURL returns the slot availability endpoint
func (c *Config) GetSlotsURL() string {
	return c.APIUrl + "/v1/pickup/slots"
}

// GetBookingURL returns the pickup booking endpoint
func (c *Config) GetBookingURL() string {
	return c.APIUrl + "/v1/pickup/book"
}

// =====================================================
// SHIPWAY CONSTANTS
// =====================================================

const (
	// Provider status strings in response envelopes
	statusSuccess = "SUCCESS"

	// Error codes the provider returns in the body
	codeSlotTaken = "SLOT_TAKEN"

	// Date format the provider expects
	dateLayout = "2006-01-02"
)
