// Package roku implements a client for the Roku External Control Protocol
// (ECP), the HTTP-on-LAN API exposed by Roku devices on port 8060. It backs
// the direct tool executor's launch_content, get_device_info,
// get_active_app, and send_key handlers.
package roku

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultPort = 8060

// Client issues ECP requests against a single configured Roku device.
type Client struct {
	addr       string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Options configures a Client.
type Options struct {
	// Addr is the device's host or host:port. Port defaults to 8060.
	Addr string

	// Timeout bounds each ECP request. Defaults to 5 seconds.
	Timeout time.Duration

	// RequestsPerSecond throttles outbound ECP calls; Roku devices drop or
	// queue keypresses erratically under bursts. Defaults to 10/s, burst 3.
	RequestsPerSecond float64
}

// New constructs a Client for the given device address.
func New(opts Options) (*Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("roku: device address is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		addr:       opts.Addr,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 3),
	}, nil
}

func (c *Client) baseURL() string {
	if strings.Contains(c.addr, ":") {
		return fmt.Sprintf("http://%s", c.addr)
	}
	return fmt.Sprintf("http://%s:%d", c.addr, defaultPort)
}

// LaunchContent issues POST /launch/{channelID}?contentId=...&mediaType=...
func (c *Client) LaunchContent(ctx context.Context, channelID int, contentID, mediaType string) error {
	u := fmt.Sprintf("%s/launch/%d?%s", c.baseURL(), channelID, url.Values{
		"contentId": {contentID},
		"mediaType": {mediaType},
	}.Encode())
	return c.post(ctx, u)
}

// SendKey issues POST /keypress/{key}
func (c *Client) SendKey(ctx context.Context, key string) error {
	u := fmt.Sprintf("%s/keypress/%s", c.baseURL(), url.PathEscape(key))
	return c.post(ctx, u)
}

// DeviceInfo is the decoded response of GET /query/device-info.
type DeviceInfo struct {
	XMLName            xml.Name `xml:"device-info"`
	ModelName          string   `xml:"model-name"`
	SerialNumber       string   `xml:"serial-number"`
	SoftwareVersion    string   `xml:"software-version"`
	FriendlyDeviceName string   `xml:"friendly-device-name"`
	NetworkType        string   `xml:"network-type"`
}

// DeviceInfo issues GET /query/device-info.
func (c *Client) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	var out DeviceInfo
	if err := c.getXML(ctx, c.baseURL()+"/query/device-info", &out); err != nil {
		return DeviceInfo{}, err
	}
	return out, nil
}

// ActiveApp is the decoded response of GET /query/active-app.
type ActiveApp struct {
	XMLName xml.Name `xml:"active-app"`
	App     struct {
		ID   string `xml:"id,attr"`
		Name string `xml:",chardata"`
	} `xml:"app"`
}

// ActiveApp issues GET /query/active-app.
func (c *Client) ActiveApp(ctx context.Context) (ActiveApp, error) {
	var out ActiveApp
	if err := c.getXML(ctx, c.baseURL()+"/query/active-app", &out); err != nil {
		return ActiveApp{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, u string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("roku: rate limit wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("roku: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("roku: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("roku: non-2xx response: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getXML(ctx context.Context, u string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("roku: rate limit wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("roku: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("roku: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("roku: non-2xx response: %d", resp.StatusCode)
	}
	return xml.NewDecoder(resp.Body).Decode(out)
}
