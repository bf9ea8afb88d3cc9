package supa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
)

// Sentinel errors for HTTP operations
var (
	ErrMarshalRequest = errors.New("failed to marshal request")
	ErrCreateRequest  = errors.New("failed to create HTTP request")
	ErrSendRequest    = errors.New("failed to send request")
	ErrReadResponse   = errors.New("failed to read response body")
	ErrDecodeResponse = errors.New("failed to decode response")
)

const maxErrorBodyLength = 4096

// apiError covers the error shapes GoTrue returns across versions
type apiError struct {
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// restClient sends the GoTrue requests that the SDK cannot express
// (redirect_to query parameters, PKCE grant).
type restClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func (c *restClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMarshalRequest, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateRequest, err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAuthError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %w", ErrDecodeResponse, err)
		}
	}
	return nil
}

// decodeAuthError turns a GoTrue error body into a *domain.AuthError
func decodeAuthError(status int, body []byte) *domain.AuthError {
	authErr := &domain.AuthError{Status: status}

	var payload apiError
	if err := json.Unmarshal(body, &payload); err != nil {
		if len(body) > maxErrorBodyLength {
			body = body[:maxErrorBodyLength]
		}
		authErr.Message = strings.TrimSpace(string(body))
		return authErr
	}

	authErr.Code = firstNonEmpty(payload.ErrorCode, payload.Error)
	authErr.Message = firstNonEmpty(payload.Msg, payload.ErrorDescription, payload.Message, payload.Error)
	return authErr
}

// parseSDKError recovers the status and body from gotrue-go errors, which are
// formatted as "response status code <n>: <body>".
func parseSDKError(err error) *domain.AuthError {
	msg := err.Error()
	const marker = "status code "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return nil
	}
	rest := msg[idx+len(marker):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return nil
	}
	status, convErr := strconv.Atoi(strings.TrimSpace(rest[:colon]))
	if convErr != nil {
		return nil
	}
	return decodeAuthError(status, []byte(strings.TrimSpace(rest[colon+1:])))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
