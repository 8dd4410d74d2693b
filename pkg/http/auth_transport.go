package http

import "net/http"

// headerTransport sets fixed headers on every outbound request.
type headerTransport struct {
	headers   map[string]string
	transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqCopy := req.Clone(req.Context())

	for key, value := range t.headers {
		if value != "" && reqCopy.Header.Get(key) == "" {
			reqCopy.Header.Set(key, value)
		}
	}

	return t.transport.RoundTrip(reqCopy)
}

func withHeaders(headers map[string]string) HttpOpts {
	return WithTransport(func(rt http.RoundTripper) http.RoundTripper {
		return &headerTransport{
			headers:   headers,
			transport: rt,
		}
	})
}

// WithAuthToken sends token as a Bearer credential. An empty token sends nothing.
func WithAuthToken(token string) HttpOpts {
	if token == "" {
		return withHeaders(nil)
	}
	return withHeaders(map[string]string{"Authorization": "Bearer " + token})
}

// WithAPIKeyHeader sends key under a provider-specific header such as "api-key".
func WithAPIKeyHeader(header, key string) HttpOpts {
	return withHeaders(map[string]string{header: key})
}

func WithUserAgent(agent string) HttpOpts {
	return withHeaders(map[string]string{"User-Agent": agent})
}
