package bha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultPort is the LAN API port.
	DefaultPort = 80

	// RTSPPort is the port of the device's RTSP server.
	RTSPPort = 554

	defaultRequestTimeout = 10 * time.Second

	// maxResponseSize bounds JSON bodies read from the device.
	maxResponseSize = 1 << 20

	pathInfo    = "/bha-api/info.cgi"
	pathOpen    = "/bha-api/open-door.cgi"
	pathLightOn = "/bha-api/light-on.cgi"
)

// Client talks to one door station.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	host     string
	username string
	password string
	port     int
	secure   bool

	httpClient   *http.Client
	streamClient *http.Client

	monitorMu sync.Mutex
	monitor   *monitor
}

// Option configures a Client.
type Option func(*Client)

// WithPort sets the LAN API port. Zero keeps DefaultPort.
func WithPort(port int) Option {
	return func(c *Client) {
		if port != 0 {
			c.port = port
		}
	}
}

// WithSecure switches the LAN API to HTTPS.
func WithSecure(secure bool) Option {
	return func(c *Client) { c.secure = secure }
}

// WithHTTPClient replaces the client used for both requests and the monitor
// stream. Its Timeout should be zero if monitoring is used.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.streamClient = hc
	}
}

// New creates a client for the door station at host.
func New(host, username, password string, opts ...Option) *Client {
	c := &Client{
		host:         host,
		username:     username,
		password:     password,
		port:         DefaultPort,
		httpClient:   &http.Client{Timeout: defaultRequestTimeout},
		streamClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the configured host.
func (c *Client) Host() string { return c.host }

// Username returns the configured user.
func (c *Client) Username() string { return c.username }

// infoResponse is the envelope of every JSON reply.
type infoResponse struct {
	BHA struct {
		ReturnCode returnCode       `json:"RETURNCODE"`
		Version    []map[string]any `json:"VERSION"`
	} `json:"BHA"`
}

// returnCode accepts RETURNCODE as either a JSON string or number.
type returnCode string

func (r *returnCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = returnCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = returnCode(n.String())
	return nil
}

// Ready queries the info endpoint and reports whether the device answered
// with a success return code, together with the HTTP status.
// A non-2xx status is returned as *HTTPError.
func (c *Client) Ready(ctx context.Context) (bool, int, error) {
	var resp infoResponse
	status, err := c.getJSON(ctx, pathInfo, nil, &resp)
	if err != nil {
		return false, status, err
	}
	return resp.BHA.ReturnCode == "1", status, nil
}

// Info returns the first VERSION record of the info endpoint: firmware,
// build number, MAC address and relays.
func (c *Client) Info(ctx context.Context) (map[string]any, error) {
	var resp infoResponse
	if _, err := c.getJSON(ctx, pathInfo, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.BHA.Version) == 0 {
		return nil, fmt.Errorf("%w: info has no VERSION record", ErrMalformedResponse)
	}
	return resp.BHA.Version[0], nil
}

// EnergizeRelay triggers a door relay, e.g. "1" or "gggaaa@1".
func (c *Client) EnergizeRelay(ctx context.Context, relay string) error {
	return c.command(ctx, pathOpen, url.Values{"r": {relay}})
}

// TurnLightOn switches on the IR light.
func (c *Client) TurnLightOn(ctx context.Context) error {
	return c.command(ctx, pathLightOn, nil)
}

func (c *Client) command(ctx context.Context, path string, query url.Values) error {
	var resp infoResponse
	if _, err := c.getJSON(ctx, path, query, &resp); err != nil {
		return err
	}
	if resp.BHA.ReturnCode != "1" {
		return fmt.Errorf("%w: %s returned code %q", ErrCommandRejected, path, resp.BHA.ReturnCode)
	}
	return nil
}

// getJSON performs an authenticated GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (int, error) {
	req, err := c.newRequest(ctx, path, query)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("bha: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize)) //nolint:errcheck // best effort
		return resp.StatusCode, &HTTPError{Path: path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s: %w", ErrMalformedResponse, path, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	u := c.apiURL(path, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("bha: building request for %s: %w", path, err)
	}
	req.SetBasicAuth(c.username, c.password)
	return req, nil
}

// apiURL returns a credential-free URL on the LAN API.
func (c *Client) apiURL(path string, query url.Values) string {
	scheme := "http"
	if c.secure {
		scheme = "https"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.host, strconv.Itoa(c.port)),
		Path:   path,
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
