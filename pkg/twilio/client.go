package twilio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const apiBase = "https://api.twilio.com/2010-04-01"

type Client struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

func NewClient(accountSID, authToken, fromNumber string) *Client {
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       fromNumber,
		baseURL:    apiBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type CreateCallRequest struct {
	To                string
	TwiMLURL          string // webhook returning <Connect><Stream> TwiML
	StatusCallbackURL string
}

type CallResource struct {
	Sid       string `json:"sid"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// CreateCall places an outbound call. The TwiML URL is fetched by the
// carrier when the callee answers; status transitions arrive on the
// status callback.
func (c *Client) CreateCall(req CreateCallRequest) (*CallResource, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)

	data := url.Values{}
	data.Set("From", c.from)
	data.Set("To", req.To)
	data.Set("Url", req.TwiMLURL)
	if req.StatusCallbackURL != "" {
		data.Set("StatusCallback", req.StatusCallbackURL)
		data.Set("StatusCallbackMethod", "POST")
		for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
			data.Add("StatusCallbackEvent", ev)
		}
	}

	return c.postCall(endpoint, data)
}

// EndCall asks the carrier to complete (hang up) an in-progress call.
func (c *Client) EndCall(callSID string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)

	data := url.Values{}
	data.Set("Status", "completed")

	_, err := c.postCall(endpoint, data)
	return err
}

// GetCall fetches the current state of a call resource.
func (c *Client) GetCall(callSID string) (*CallResource, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)

	httpReq, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	return c.do(httpReq)
}

func (c *Client) postCall(endpoint string, data url.Values) (*CallResource, error) {
	httpReq, err := http.NewRequest("POST", endpoint, bytes.NewBufferString(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.SetBasicAuth(c.accountSID, c.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(httpReq)
}

func (c *Client) do(httpReq *http.Request) (*CallResource, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("twilio API error: %s (status %d)", string(body), resp.StatusCode)
	}

	var result CallResource
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}
