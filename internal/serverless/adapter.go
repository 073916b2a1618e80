// Package serverless runs the HTTP router behind API Gateway proxy events.
package serverless

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// HandlerFunc is the signature lambda.Start expects.
type HandlerFunc func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Handler adapts h to API Gateway proxy events.
func Handler(h http.Handler) HandlerFunc {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		req, err := NewRequest(ctx, request)
		if err != nil {
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusBadRequest,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `{"error":"invalid request"}`,
			}, nil
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return NewResponse(rec), nil
	}
}

// NewRequest builds an http.Request from a proxy event.
func NewRequest(ctx context.Context, request events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		body = decoded
	}

	path := request.Path
	if path == "" {
		path = "/"
	}
	u := url.URL{Path: path, RawQuery: query(request).Encode()}

	method := request.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, v := range request.Headers {
		req.Header.Set(k, v)
	}
	for k, values := range request.MultiValueHeaders {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Host = req.Header.Get("Host")
	if ip := request.RequestContext.Identity.SourceIP; ip != "" {
		req.RemoteAddr = ip + ":0"
	}
	req.ContentLength = int64(len(body))
	return req, nil
}

func query(request events.APIGatewayProxyRequest) url.Values {
	q := url.Values{}
	for k, v := range request.QueryStringParameters {
		q.Set(k, v)
	}
	for k, values := range request.MultiValueQueryStringParameters {
		q[k] = append([]string(nil), values...)
	}
	return q
}

// NewResponse converts a recorded response into a proxy response. Bodies
// that are not valid UTF-8 are base64 encoded.
func NewResponse(rec *httptest.ResponseRecorder) events.APIGatewayProxyResponse {
	res := rec.Result()
	headers := make(map[string]string, len(res.Header))
	multi := make(map[string][]string, len(res.Header))
	for k, values := range res.Header {
		headers[k] = strings.Join(values, ", ")
		multi[k] = values
	}
	// Cookies cannot be folded into one header line.
	if cookies := res.Header.Values("Set-Cookie"); len(cookies) > 0 {
		headers["Set-Cookie"] = cookies[0]
	}

	body := rec.Body.Bytes()
	out := events.APIGatewayProxyResponse{
		StatusCode:        rec.Code,
		Headers:           headers,
		MultiValueHeaders: multi,
	}
	if utf8.Valid(body) {
		out.Body = string(body)
	} else {
		out.Body = base64.StdEncoding.EncodeToString(body)
		out.IsBase64Encoded = true
	}
	return out
}
