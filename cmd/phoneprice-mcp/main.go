package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// batchEntry mirrors one element of the POST /api/v1/phones/parse response.
type batchEntry struct {
	Model     string         `json:"model"`
	Status    string         `json:"status"`
	Data      map[string]any `json:"data"`
	Error     string         `json:"error"`
	ErrorCode string         `json:"error_code"`
	Code      int            `json:"code"`
}

// phoneRecord mirrors the GET /api/v1/phones/:model response.
type phoneRecord struct {
	Model     string         `json:"model"`
	Data      map[string]any `json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// errorResponse mirrors the API error body.
type errorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiClient calls the phoneprice HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func main() {
	apiURL := os.Getenv("PHONEPRICE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	client := &apiClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("PHONEPRICE_API_KEY"),
		// A batch fetches sequentially, 10s per model at worst.
		http: &http.Client{Timeout: 20 * time.Minute},
	}

	s := server.NewMCPServer(
		"phoneprice",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	lookupTool := mcp.NewTool("lookup_phones",
		mcp.WithDescription("Look up price, rating and specs for one or more phone models on Yandex Market. Stored results younger than 30 days are returned without fetching."),
		mcp.WithArray("models",
			mcp.Required(),
			mcp.Description("Phone model names, e.g. [\"iPhone 13\", \"Galaxy S23\"]"),
			mcp.WithStringItems(),
		),
	)
	s.AddTool(lookupTool, handleLookupPhones(client))

	getTool := mcp.NewTool("get_phone",
		mcp.WithDescription("Return the stored record for a phone model without fetching the marketplace."),
		mcp.WithString("model",
			mcp.Required(),
			mcp.Description("Phone model name (case-insensitive)"),
		),
	)
	s.AddTool(getTool, handleGetPhone(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleLookupPhones(client *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := request.RequireStringSlice("models")
		if err != nil || len(names) == 0 {
			return mcp.NewToolResultError("models is required and must be a non-empty array of strings"), nil
		}

		body, status, err := client.do(ctx, http.MethodPost, "/api/v1/phones/parse", map[string]any{"models": names})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		if status != http.StatusOK {
			return mcp.NewToolResultError(apiError(status, body)), nil
		}

		var entries []batchEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		return mcp.NewToolResultText(formatEntries(entries)), nil
	}
}

func handleGetPhone(client *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		model, err := request.RequireString("model")
		if err != nil {
			return mcp.NewToolResultError("model is required"), nil
		}

		body, status, err := client.do(ctx, http.MethodGet, "/api/v1/phones/"+url.PathEscape(model), nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		if status != http.StatusOK {
			return mcp.NewToolResultError(apiError(status, body)), nil
		}

		var rec phoneRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s (updated %s)\n", rec.Model, rec.UpdatedAt.Format(time.RFC3339))
		writeData(&sb, rec.Data)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// do sends a request to the API and returns the raw body and status.
func (c *apiClient) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// apiError renders a non-200 API response.
func apiError(status int, body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != nil {
		return fmt.Sprintf("[%s] %s", er.Error.Code, er.Error.Message)
	}
	return fmt.Sprintf("API returned HTTP %d", status)
}

// formatEntries renders batch entries as markdown, one section per model.
func formatEntries(entries []batchEntry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "## %s [%s]\n", e.Model, e.Status)
		if e.Error != "" {
			fmt.Fprintf(&sb, "Error: %s\n", e.Error)
			continue
		}
		writeData(&sb, e.Data)
	}
	return sb.String()
}

func writeData(sb *strings.Builder, data map[string]any) {
	if title, ok := data["title"].(string); ok && title != "" {
		fmt.Fprintf(sb, "Title: %s\n", title)
	}
	if specs, ok := data["specs"].(map[string]any); ok {
		if pr, ok := specs["price_range"].(map[string]any); ok {
			fmt.Fprintf(sb, "Price: %v–%v (avg %v)\n", pr["min"], pr["max"], pr["avg"])
		}
	}
	if rating, ok := data["rating"].(float64); ok {
		fmt.Fprintf(sb, "Rating: %.1f\n", rating)
	}
	if reviews, ok := data["reviews_count"].(float64); ok {
		fmt.Fprintf(sb, "Reviews: %d\n", int(reviews))
	}
	if u, ok := data["url"].(string); ok && u != "" {
		fmt.Fprintf(sb, "Source: %s\n", u)
	}
}
