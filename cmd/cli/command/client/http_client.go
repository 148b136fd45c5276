package client

// http_client.go = REST calls against the cinecircle API.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cinecircle/internal/microservices/http-api/dto"
	"cinecircle/internal/microservices/http-api/models"
)

// defines the HTTP client structure and methods
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// constructor for HTTP client
func NewHTTPClient(apiURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		token: token,
	}
}

func (c *HTTPClient) ListNotifications(page, limit int) (*dto.NotificationListResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var result dto.NotificationListResponse
	if err := c.do(http.MethodGet, "/api/notifications?"+q.Encode(), nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) UnreadCount() (int64, error) {
	var result dto.UnreadCountResponse
	if err := c.do(http.MethodGet, "/api/notifications/unread-count", nil, http.StatusOK, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

func (c *HTTPClient) MarkNotificationRead(id string) error {
	return c.do(http.MethodPut, "/api/notifications/"+url.PathEscape(id)+"/read", nil, http.StatusOK, nil)
}

func (c *HTTPClient) MarkAllNotificationsRead() error {
	return c.do(http.MethodPut, "/api/notifications/mark-read", nil, http.StatusNoContent, nil)
}

func (c *HTTPClient) SendMessage(req *dto.SendMessageRequest) (*models.Message, error) {
	var msg models.Message
	if err := c.do(http.MethodPost, "/api/chat/messages", req, http.StatusCreated, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *HTTPClient) Conversation(partnerID string, limit int) ([]models.Message, error) {
	var result struct {
		Data []models.Message `json:"data"`
	}
	path := fmt.Sprintf("/api/chat/%s/messages?limit=%d", url.PathEscape(partnerID), limit)
	if err := c.do(http.MethodGet, path, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// DeleteMessage removes a message for everyone, or only from the caller's
// history when forMe is set.
func (c *HTTPClient) DeleteMessage(id string, forMe bool) error {
	path := "/api/chat/messages/" + url.PathEscape(id)
	if forMe {
		path += "/me"
	}
	return c.do(http.MethodDelete, path, nil, http.StatusOK, nil)
}

func (c *HTTPClient) do(method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // Ensure the response body is closed

	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("request failed with status: %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
