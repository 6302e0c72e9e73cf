package models

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"` // "healthy" or "degraded"
	Uptime      string `json:"uptime"`
	StoreDriver string `json:"store_driver"`
	FetchEngine string `json:"fetch_engine"`
	Market      string `json:"market"`
	Version     string `json:"version"`
}
