package options

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/goliatone/go-customfields/pkg/schema"
)

// HTTPError is implemented by errors that carry an HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// StatusError pairs an error with an HTTP status.
type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

type envelope struct {
	Data []schema.Choice `json:"data"`
}

// HTTPFetcher calls a remote options endpoint that speaks the Handler
// protocol: GET {endpoint}?search=..&value=..&{arg}=.. answered with
// {"data":[{"value":..,"label":..}]}.
type HTTPFetcher struct {
	endpoint string
	client   *http.Client
	header   http.Header
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithClient sets the HTTP client.
func WithClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.header.Add(key, value)
	}
}

// NewHTTPFetcher targets endpoint, typically ".../options/{source}".
func NewHTTPFetcher(endpoint string, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		header:   make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, query Query) ([]schema.Choice, error) {
	target, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("options: parse endpoint: %w", err)
	}
	params := target.Query()
	EncodeQuery(params, query)
	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("options: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range f.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("options: fetch %s: %w", f.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, StatusError{Code: resp.StatusCode, Err: fmt.Errorf("options: %s returned %s", f.endpoint, resp.Status)}
	}

	var payload envelope
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("options: decode response: %w", err)
	}
	if payload.Data == nil {
		return []schema.Choice{}, nil
	}
	return payload.Data, nil
}

// Reserved query parameter names.
const (
	ParamSearch = "search"
	ParamValue  = "value"
	ParamLimit  = "limit"
)

// EncodeQuery writes query into params. Multi-values repeat the value
// parameter; filter arguments become plain parameters.
func EncodeQuery(params url.Values, query Query) {
	params.Set(ParamSearch, query.Search)
	params.Del(ParamValue)
	for _, value := range flattenValue(query.Value) {
		params.Add(ParamValue, value)
	}
	if query.Limit > 0 {
		params.Set(ParamLimit, strconv.Itoa(query.Limit))
	}
	keys := make([]string, 0, len(query.Args))
	for key := range query.Args {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch key {
		case ParamSearch, ParamValue, ParamLimit:
			continue
		}
		params.Del(key)
		for _, value := range flattenValue(query.Args[key]) {
			params.Add(key, value)
		}
	}
}

// DecodeQuery is the inverse of EncodeQuery.
func DecodeQuery(params url.Values) Query {
	query := Query{Search: params.Get(ParamSearch)}
	switch values := params[ParamValue]; len(values) {
	case 0:
	case 1:
		query.Value = values[0]
	default:
		list := make([]any, 0, len(values))
		for _, value := range values {
			list = append(list, value)
		}
		query.Value = list
	}
	if limit, err := strconv.Atoi(params.Get(ParamLimit)); err == nil {
		query.Limit = limit
	}
	for key, values := range params {
		switch key {
		case ParamSearch, ParamValue, ParamLimit:
			continue
		}
		if query.Args == nil {
			query.Args = make(map[string]any)
		}
		if len(values) == 1 {
			query.Args[key] = values[0]
			continue
		}
		list := make([]any, 0, len(values))
		for _, value := range values {
			list = append(list, value)
		}
		query.Args[key] = list
	}
	return query
}

func flattenValue(value any) []string {
	switch typed := value.(type) {
	case nil:
		return nil
	case string:
		if typed == "" {
			return nil
		}
		return []string{typed}
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			out = append(out, flattenValue(item)...)
		}
		return out
	case bool:
		return []string{strconv.FormatBool(typed)}
	default:
		if f, ok := schema.ToFloat(typed); ok {
			return []string{strconv.FormatFloat(f, 'f', -1, 64)}
		}
		raw, err := json.Marshal(typed)
		if err != nil {
			return nil
		}
		return []string{string(raw)}
	}
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var httpErr HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode() == code
}
