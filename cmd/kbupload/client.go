package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/kb-chat/internal/auth"
	"github.com/suPer8Hu/kb-chat/internal/kb"
	"github.com/suPer8Hu/kb-chat/internal/media"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(base, token string) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// call sends a JSON request and decodes the envelope's data into out.
func (c *client) call(ctx context.Context, method, path string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	var resp *http.Response
	if c.token != "" {
		resp, err = media.NewAuthClient(c.http, auth.BearerIdentity{Token: c.token}).Do(req)
	} else {
		resp, err = c.http.Do(req)
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		return fmt.Errorf("%s %s: %s (code %d)", method, path, env.Message, env.Code)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *client) presign(ctx context.Context, name string, size int64) (media.UploadTicket, error) {
	var t media.UploadTicket
	err := c.call(ctx, http.MethodPost, "/uploads/presign", nil, map[string]any{
		"file_name":    name,
		"size":         size,
		"content_type": media.ContentType(name, ""),
	}, &t)
	if err == nil && t.URL == "" {
		err = errors.New("presign: empty upload URL")
	}
	return t, err
}

type ingestionResult struct {
	Job     kb.IngestionJob `json:"job"`
	Created bool            `json:"created"`
}

func (c *client) startIngestion(ctx context.Context, idempotencyKey string) (ingestionResult, error) {
	var res ingestionResult
	h := http.Header{}
	if idempotencyKey != "" {
		h.Set("Idempotency-Key", idempotencyKey)
	}
	err := c.call(ctx, http.MethodPost, "/kb/ingestions", h, nil, &res)
	return res, err
}
