package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
)

// HTTPTransport posts requests to a peer that mounted its Server with RegisterHTTP.
type HTTPTransport struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		client:  resty.New(),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (t *HTTPTransport) Send(ctx context.Context, req Request) (Reply, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(t.baseURL + "/rpc/" + req.Pattern)
	if err != nil {
		return Reply{}, transportError(ctx, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return Reply{}, ErrNoResponder
	case code == http.StatusBadRequest:
		return Reply{}, NewError(CodeBadRequest, string(resp.Body()))
	case code != http.StatusOK:
		return Reply{}, fmt.Errorf("%w: unexpected status %d", ErrTransport, code)
	}

	var rep Reply
	if err := json.Unmarshal(resp.Body(), &rep); err != nil {
		return Reply{}, fmt.Errorf("%w: decoding reply: %w", ErrTransport, err)
	}
	return rep, nil
}

// RegisterHTTP exposes srv as POST /rpc/:pattern on router.
func RegisterHTTP(router gin.IRouter, srv *Server) {
	router.POST("/rpc/:pattern", func(c *gin.Context) {
		pattern := c.Param("pattern")
		if !srv.Has(pattern) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no handler for " + pattern})
			return
		}

		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Pattern = pattern

		c.JSON(http.StatusOK, srv.Dispatch(c.Request.Context(), req))
	})
}
