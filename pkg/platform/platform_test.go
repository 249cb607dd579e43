package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// stubAPI records calls and answers them from a handler func.
type stubAPI struct {
	handler  func(endpoint string, params url.Values) (json.RawMessage, error)
	redirect func(shortURL string) (string, error)
	calls    []apiCall
}

type apiCall struct {
	endpoint string
	params   url.Values
}

func (s *stubAPI) GetJSON(_ context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	s.calls = append(s.calls, apiCall{endpoint: endpoint, params: params})
	if s.handler == nil {
		return nil, fmt.Errorf("unexpected call to %s", endpoint)
	}
	return s.handler(endpoint, params)
}

func (s *stubAPI) ResolveRedirect(_ context.Context, shortURL string) (string, error) {
	if s.redirect == nil {
		return "", fmt.Errorf("unexpected redirect resolution for %s", shortURL)
	}
	return s.redirect(shortURL)
}

func (s *stubAPI) callsTo(endpoint string) []apiCall {
	var matched []apiCall
	for _, call := range s.calls {
		if call.endpoint == endpoint {
			matched = append(matched, call)
		}
	}
	return matched
}
