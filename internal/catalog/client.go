// Package catalog is a thin client for the course catalog REST backend.
// Failures propagate immediately; there is no retry, caching or backoff.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/course-marketplace/storefront/internal/models"
)

// Error is a catalog failure carrying the server-provided message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("catalog error: %s", e.Message)
}

// envelope is the uniform response wrapper the backend emits.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (c *Client) ListCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := c.request(ctx, http.MethodGet, "/courses", nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (c *Client) GetCourse(ctx context.Context, courseID uint64) (*models.Course, error) {
	var course models.Course
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("/courses/%d", courseID), nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *Client) ListPurchasedCourses(ctx context.Context, address string) ([]models.Course, error) {
	var courses []models.Course
	path := fmt.Sprintf("/courses/purchased/%s", models.NormalizeAddress(address))
	if err := c.request(ctx, http.MethodGet, path, nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

type purchaseStatus struct {
	HasPurchased bool `json:"hasPurchased"`
}

func (c *Client) CheckPurchase(ctx context.Context, courseID uint64, address string) (bool, error) {
	var status purchaseStatus
	path := fmt.Sprintf("/courses/purchased/%d/%s", courseID, models.NormalizeAddress(address))
	if err := c.request(ctx, http.MethodGet, path, nil, &status); err != nil {
		return false, err
	}
	return status.HasPurchased, nil
}

func (c *Client) RecordPurchase(ctx context.Context, purchase models.Purchase) error {
	return c.request(ctx, http.MethodPost, "/courses/purchase", purchase, nil)
}

func (c *Client) SyncCourses(ctx context.Context) error {
	return c.request(ctx, http.MethodPost, "/courses/sync", nil, nil)
}

func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Message: fmt.Sprintf("catalog unavailable: %v", err)}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &Error{Status: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &Error{Status: resp.StatusCode, Message: fmt.Sprintf("malformed payload: %v", err)}
		}
	}
	return nil
}
