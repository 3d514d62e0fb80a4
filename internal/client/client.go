// Package client talks to a package registry over HTTP: publishing built
// archives and authenticating users.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Client is an authenticated registry API client
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a registry client. token may be empty for unauthenticated
// calls.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// PublishResult describes a successful publish
type PublishResult struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	SHA256  string `json:"sha256"`
}

// Publish uploads a built archive and its metadata document as one
// multipart request.
func (c *Client) Publish(ctx context.Context, metadataPath, archivePath string) (*PublishResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := addFileToForm(writer, "metadata", metadataPath); err != nil {
		return nil, fmt.Errorf("failed to add metadata: %w", err)
	}
	if err := addFileToForm(writer, "archive", archivePath); err != nil {
		return nil, fmt.Errorf("failed to add archive: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/packages", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewRegistryError(ErrConnectionFailed, err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, NewRegistryError(ErrUnauthorized, "authentication required")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, NewRegistryError(ErrPublishFailed,
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}

	var result PublishResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func addFileToForm(writer *multipart.Writer, fieldName, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	part, err := writer.CreateFormFile(fieldName, filepath.Base(filePath))
	if err != nil {
		return err
	}

	_, err = io.Copy(part, file)
	return err
}
