// Package edge serves the HTTP API from AWS Lambda function URLs.
package edge

import (
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
)

// Adapter converts function URL invocations into http.Handler calls and
// streams the handler's response back.
type Adapter struct {
	handler http.Handler
}

// NewAdapter wraps h.
func NewAdapter(h http.Handler) *Adapter {
	return &Adapter{handler: h}
}

// Handle is the Lambda entry point.
func (a *Adapter) Handle(ctx context.Context, req events.LambdaFunctionURLRequest) (*events.LambdaFunctionURLStreamingResponse, error) {
	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := newStreamWriter(pw)
	go func() {
		defer func() {
			w.commit()
			pw.Close()
		}()
		a.handler.ServeHTTP(w, httpReq)
	}()

	select {
	case <-w.ready:
	case <-ctx.Done():
		pr.CloseWithError(ctx.Err())
		return nil, ctx.Err()
	}

	headers := make(map[string]string, len(w.snapshot))
	var cookies []string
	for k, vals := range w.snapshot {
		if strings.EqualFold(k, "Set-Cookie") {
			cookies = append(cookies, vals...)
			continue
		}
		headers[k] = strings.Join(vals, ",")
	}
	return &events.LambdaFunctionURLStreamingResponse{
		StatusCode: w.status,
		Headers:    headers,
		Body:       pr,
		Cookies:    cookies,
	}, nil
}

func toHTTPRequest(ctx context.Context, req events.LambdaFunctionURLRequest) (*http.Request, error) {
	var body io.Reader = strings.NewReader(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(string(decoded))
	}

	target := req.RawPath
	if target == "" {
		target = "/"
	}
	if req.RawQueryString != "" {
		target += "?" + req.RawQueryString
	}
	method := req.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.Cookies) > 0 {
		httpReq.Header.Set("Cookie", strings.Join(req.Cookies, "; "))
	}
	if req.RequestContext.RequestID != "" && httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", req.RequestContext.RequestID)
	}
	if ip := req.RequestContext.HTTP.SourceIP; ip != "" {
		httpReq.RemoteAddr = net.JoinHostPort(ip, "0")
	}
	httpReq.Host = httpReq.Header.Get("Host")
	httpReq.RequestURI = target
	return httpReq, nil
}

// streamWriter is an http.ResponseWriter whose body goes to a pipe. The
// status and headers are frozen on the first write.
type streamWriter struct {
	header   http.Header
	snapshot http.Header
	status   int
	body     io.Writer
	once     sync.Once
	ready    chan struct{}
}

func newStreamWriter(body io.Writer) *streamWriter {
	return &streamWriter{
		header: make(http.Header),
		status: http.StatusOK,
		body:   body,
		ready:  make(chan struct{}),
	}
}

func (w *streamWriter) Header() http.Header { return w.header }

func (w *streamWriter) WriteHeader(status int) {
	w.once.Do(func() {
		w.status = status
		w.snapshot = w.header.Clone()
		close(w.ready)
	})
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.body.Write(p)
}

// Flush is a no-op; writes already go straight to the pipe.
func (w *streamWriter) Flush() {}

func (w *streamWriter) commit() {
	w.WriteHeader(w.status)
}
