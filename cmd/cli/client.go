package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/congelados/vendedor/internal/conversation"
)

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type messageRequest struct {
	Texto     string `json:"texto"`
	UsuarioID string `json:"usuario_id"`
}

type messageResponse struct {
	Respuesta string `json:"respuesta"`
	Estado    string `json:"estado"`
	Fase      string `json:"fase"`
}

type resetResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (c *apiClient) Send(ctx context.Context, userID, text string) (messageResponse, error) {
	var out messageResponse
	err := c.do(ctx, http.MethodPost, "/webhook/demo", messageRequest{Texto: text, UsuarioID: userID}, &out)
	return out, err
}

func (c *apiClient) Reset(ctx context.Context, userID string) (string, error) {
	var out resetResponse
	if err := c.do(ctx, http.MethodPost, "/webhook/demo/reset?usuario_id="+url.QueryEscape(userID), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *apiClient) Stats(ctx context.Context) (conversation.Stats, error) {
	var out conversation.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &out)
	return out, err
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
