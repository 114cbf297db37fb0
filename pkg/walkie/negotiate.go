package walkie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// StartSessionPath is the negotiation endpoint relative to the backend URL.
const StartSessionPath = "/api/v1/voice-walkie/session/start"

// HTTPNegotiator negotiates sessions with the voice backend's HTTP API.
type HTTPNegotiator struct {
	// BaseURL is the backend root, e.g. https://voice.example.com.
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// FullMode keeps the granted endpoint as is. By default the endpoint
	// is rewritten to the simple-mode stream, which sends one WAV file per
	// reply.
	FullMode bool
}

type grantResponse struct {
	SessionID      string         `json:"session_id"`
	WSEndpoint     string         `json:"ws_endpoint"`
	FirstMessage   string         `json:"first_message"`
	PowerupContext map[string]any `json:"powerup_context"`
}

// StartSession implements Negotiator.
func (n *HTTPNegotiator) StartSession(ctx context.Context, req StartRequest) (*Grant, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	base := strings.TrimRight(n.BaseURL, "/")
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+StartSessionPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if n.Token != "" {
		hreq.Header.Set("Authorization", "Bearer "+n.Token)
	}

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: session start: %w", ErrConnectionFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: session start failed: %s: %s",
			ErrConnectionFailure, resp.Status, strings.TrimSpace(string(msg)))
	}

	var gr grantResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("%w: session start: decode response: %w", ErrConnectionFailure, err)
	}
	if gr.WSEndpoint == "" {
		return nil, fmt.Errorf("%w: session start: no ws_endpoint in response", ErrConnectionFailure)
	}
	endpoint, err := resolveEndpoint(base, gr.WSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: session start: %w", ErrConnectionFailure, err)
	}
	if !n.FullMode {
		endpoint = strings.Replace(endpoint, "/ws/", "/simple/ws/", 1)
	}
	return &Grant{
		SessionID:    gr.SessionID,
		Endpoint:     endpoint,
		FirstMessage: gr.FirstMessage,
		Context:      gr.PowerupContext,
	}, nil
}

// resolveEndpoint makes a relative endpoint absolute against base,
// switching http(s) to ws(s).
func resolveEndpoint(base, endpoint string) (string, error) {
	ep, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if ep.IsAbs() {
		return endpoint, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u := b.ResolveReference(ep)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	return u.String(), nil
}
