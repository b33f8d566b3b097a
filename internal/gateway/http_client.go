package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentworkforce/recordmirror/internal/records"
)

const DefaultBaseURL = "https://jsonplaceholder.typicode.com/users"

// HTTPClient implements Client over a REST collection:
// GET/POST on the collection URL, GET/PUT/DELETE on collection/{id}.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) FetchAll(ctx context.Context) ([]records.Record, error) {
	var out []records.Record
	err := c.doJSON(ctx, "fetch_all", 0, http.MethodGet, "", nil, &out)
	observe("fetch_all", err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Fetch reads one record straight from the remote collection.
func (c *HTTPClient) Fetch(ctx context.Context, id int) (records.Record, error) {
	var out records.Record
	err := c.doJSON(ctx, "fetch", id, http.MethodGet, "/"+strconv.Itoa(id), nil, &out)
	observe("fetch", err)
	return out, err
}

// Create posts the form. The echoed record is read only to confirm the body
// is JSON; its id is never used.
func (c *HTTPClient) Create(ctx context.Context, form records.FormData) error {
	var echo json.RawMessage
	err := c.doJSON(ctx, "create", 0, http.MethodPost, "", form, &echo)
	observe("create", err)
	return err
}

func (c *HTTPClient) Update(ctx context.Context, id int, form records.FormData) error {
	var echo json.RawMessage
	err := c.doJSON(ctx, "update", id, http.MethodPut, "/"+strconv.Itoa(id), form, &echo)
	observe("update", err)
	return err
}

func (c *HTTPClient) Delete(ctx context.Context, id int) error {
	err := c.doJSON(ctx, "delete", id, http.MethodDelete, "/"+strconv.Itoa(id), nil, nil)
	observe("delete", err)
	return err
}

func (c *HTTPClient) doJSON(
	ctx context.Context,
	op string,
	id int,
	method, requestPath string,
	body any,
	out any,
) error {
	fail := func(statusCode int, message string, err error) error {
		return &SyncError{Op: op, ID: id, StatusCode: statusCode, Message: message, Err: err}
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fail(0, "", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return fail(0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-Id", correlationID())
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, "", err)
	}
	payloadBytes, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return fail(resp.StatusCode, "", readErr)
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || len(bytes.TrimSpace(payloadBytes)) == 0 {
			return nil
		}
		if err := json.Unmarshal(payloadBytes, out); err != nil {
			return fail(resp.StatusCode, "", fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	var errPayload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(payloadBytes, &errPayload)
	message := errPayload.Message
	if message == "" {
		message = errPayload.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return fail(resp.StatusCode, message, nil)
}

func correlationID() string {
	return "mirror_" + uuid.NewString()
}
