package server

import (
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const RelayPath = "/proxy"

var relayCORSHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET",
	"Access-Control-Allow-Headers": "*",
}

var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Host":                true,
	"Content-Length":      true,
}

// RelayHandler forwards GET ?url=<target> to target with Origin set to the
// target's origin and returns the response with permissive CORS headers.
type RelayHandler struct {
	client *fasthttp.Client
	logger zerolog.Logger
}

func NewRelayHandler(client *fasthttp.Client, logger zerolog.Logger) *RelayHandler {
	return &RelayHandler{client: client, logger: logger.With().Str("component", "relay").Logger()}
}

func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodOptions:
		setRelayCORS(w.Header())
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		h.fail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	target := r.URL.Query().Get("url")
	if target == "" {
		h.fail(w, http.StatusBadRequest, "Missing url parameter")
		return
	}

	remote, err := url.Parse(target)
	if err != nil || (remote.Scheme != "http" && remote.Scheme != "https") || remote.Host == "" {
		h.fail(w, http.StatusBadRequest, "Invalid url parameter")
		return
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(remote.String())
	req.Header.SetMethod(r.Method)
	for key, values := range r.Header {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Origin", remote.Scheme+"://"+remote.Host)

	if deadline, ok := r.Context().Deadline(); ok {
		err = h.client.DoDeadline(req, resp, deadline)
	} else {
		err = h.client.Do(req, resp)
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("url", target).Msg("relay request failed")
		h.fail(w, http.StatusBadGateway, "Upstream request failed")
		return
	}

	resp.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			return
		}
		w.Header().Add(key, string(v))
	})
	setRelayCORS(w.Header())
	w.WriteHeader(resp.StatusCode())
	if _, err := w.Write(resp.Body()); err != nil {
		h.logger.Debug().Err(err).Str("url", target).Msg("client went away")
	}

	h.logger.Debug().Str("url", target).Int("status", resp.StatusCode()).Msg("relayed")
}

func (h *RelayHandler) fail(w http.ResponseWriter, status int, msg string) {
	setRelayCORS(w.Header())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}

func setRelayCORS(h http.Header) {
	for k, v := range relayCORSHeaders {
		h.Set(k, v)
	}
}
