package blob

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
)

const DefaultAPIURL = "https://blob.vercel-storage.com"

// Deleter removes uploaded files from blob storage.
type Deleter struct {
	apiURL string
	token  string
	client *http.Client
}

func NewDeleter(apiURL, token string, client *http.Client) (*Deleter, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("blob token is required")
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Deleter{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  strings.TrimSpace(token),
		client: client,
	}, nil
}

func (d *Deleter) Delete(ctx context.Context, fileURL string) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string][]string{"urls": {fileURL}}); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL+"/delete", &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("blob delete: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// a missing blob is already deleted
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("blob delete: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
