package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/leasing-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/leasing-ai-platform/internal/app/bootstrap"
	"github.com/wolfman30/leasing-ai-platform/internal/crmsync"
)

func main() {
	ctx := context.Background()
	cfg, logger, awsCfg, err := mainconfig.Environment(ctx, "chat-lambda")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	// A frozen execution environment would strand background syncs.
	if cfg.LeadSyncMode == string(crmsync.ModeInline) {
		logger.Info("inline lead sync runs synchronously under lambda")
		cfg.LeadSyncMode = string(crmsync.ModeSync)
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger, AWS: &awsCfg})
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	app.Start(ctx)

	handler := app.Handler()
	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		resp, err := handle(ctx, handler, evt)
		// Alerts started by this invocation finish before the environment freezes.
		app.Orchestrator.Wait()
		return resp, err
	})
}

// handle replays an API Gateway HTTP API event against the chat router.
func handle(ctx context.Context, h http.Handler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	if path == "" {
		path = "/"
	}
	target := path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid request"}, nil
	}
	for k, v := range evt.Headers {
		req.Header.Set(k, v)
	}
	if len(evt.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(evt.Cookies, "; "))
	}
	if host := strings.TrimSpace(evt.RequestContext.DomainName); host != "" {
		req.Host = host
	}
	if ip := strings.TrimSpace(evt.RequestContext.HTTP.SourceIP); ip != "" {
		req.RemoteAddr = net.JoinHostPort(ip, "0")
	}

	rw := newResponseWriter()
	h.ServeHTTP(rw, req)

	out := events.APIGatewayV2HTTPResponse{
		StatusCode: rw.status,
		Body:       rw.body.String(),
		Headers:    map[string]string{},
	}
	for k, values := range rw.header {
		if strings.EqualFold(k, "Set-Cookie") {
			out.Cookies = append(out.Cookies, values...)
			continue
		}
		out.Headers[strings.ToLower(k)] = strings.Join(values, ",")
	}
	return out, nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Body)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

// responseWriter buffers a handler's response for the Lambda return value.
type responseWriter struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: http.Header{}, status: http.StatusOK}
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
}

func (w *responseWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.body.Write(p)
}
