/**
 * @description
 * This package provides a thin client for the external WebDAV file service
 * that stores member documents. It encapsulates authenticated HTTP requests
 * for the small WebDAV subset the service needs: MKCOL, PUT, GET, DELETE.
 *
 * @dependencies
 * - context, fmt, io, net/http, net/url, strings, time: Standard Go libraries.
 */
package webdavclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the remote path does not exist.
var ErrNotFound = errors.New("webdav: path not found")

// FileStore is the contract the application layer consumes; *Client
// implements it against a real WebDAV server.
type FileStore interface {
	Put(ctx context.Context, path, contentType string, content io.Reader) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// Client is a client for a WebDAV file service.
type Client struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client
}

// NewClient creates a new WebDAV client with basic-auth credentials.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) resourceURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.BaseURL + "/" + strings.Join(segments, "/")
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(c.Username, c.Password)
	return c.HTTPClient.Do(req)
}

// ensureCollections creates every parent collection of path. An existing
// collection answers MKCOL with 405, which is fine.
func (c *Client) ensureCollections(ctx context.Context, path string) error {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return nil
	}
	prefix := ""
	for _, segment := range segments[:len(segments)-1] {
		prefix += "/" + segment
		req, err := http.NewRequestWithContext(ctx, "MKCOL", c.resourceURL(prefix), nil)
		if err != nil {
			return err
		}
		resp, err := c.do(req)
		if err != nil {
			return fmt.Errorf("webdav mkcol %s: %w", prefix, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusMethodNotAllowed {
			return fmt.Errorf("webdav mkcol %s: unexpected status %d", prefix, resp.StatusCode)
		}
	}
	return nil
}

// Put uploads content to path, creating parent collections as needed.
func (c *Client) Put(ctx context.Context, path, contentType string, content io.Reader) error {
	if err := c.ensureCollections(ctx, path); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.resourceURL(path), content)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("webdav put %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webdav put %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

// Get downloads the content at path. The caller owns closing the reader.
func (c *Client) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resourceURL(path), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("webdav get %s: %w", path, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("webdav get %s: unexpected status %d", path, resp.StatusCode)
	}
	return resp.Body, nil
}

// Delete removes the resource at path. Deleting a missing resource returns
// ErrNotFound.
func (c *Client) Delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.resourceURL(path), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("webdav delete %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webdav delete %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}
