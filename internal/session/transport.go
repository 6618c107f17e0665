package session

import "net/http"

// Transport attaches the stored access token to outgoing requests and
// clears the session when the server answers 401 to a request that
// carried it.
type Transport struct {
	Base    http.RoundTripper
	Manager *Manager
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(m *Manager, base http.RoundTripper) *Transport {
	return &Transport{Base: base, Manager: m}
}

// RoundTrip implements http.RoundTripper. Expired tokens are not sent.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token, ok, err := t.Manager.GetSession()
	if err != nil {
		return nil, err
	}
	attached := ok && !t.Manager.IsExpired()
	if attached {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && attached {
		if err := t.Manager.ClearSession(); err != nil {
			resp.Body.Close() //nolint:errcheck // error path
			return nil, err
		}
	}
	return resp, nil
}
