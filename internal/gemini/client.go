// Package gemini talks to the Gemini API. File search stores and their
// document upload operations go through the google.golang.org/genai SDK;
// the background deep-research interactions use a small REST layer because
// the SDK does not expose the Interactions surface.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultBaseURL is the production Interactions API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// apiVersion is the REST surface both the SDK and the interactions
// endpoints speak.
const apiVersion = "v1beta"

// operationPollInterval is how often upload operations are re-checked.
var operationPollInterval = 3 * time.Second

// Client talks to the Interactions API over HTTP and to the file search
// store API through the genai SDK. The zero value is not usable; construct
// with NewClient.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	sdk     *genai.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the versioned API root (tests, proxies).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger attaches a logger for request-level debug output.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient returns a client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 120 * time.Second},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// The SDK wants the bare host and prefixes the version itself.
	sdk, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.http,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimSuffix(c.baseURL, "/"+apiVersion),
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.sdk = sdk
	return c, nil
}

// CreateInteraction starts a background research run.
func (c *Client) CreateInteraction(ctx context.Context, req CreateInteractionRequest) (*Interaction, error) {
	var out Interaction
	if err := c.doJSON(ctx, http.MethodPost, "/interactions", req, &out); err != nil {
		return nil, fmt.Errorf("create interaction: %w", err)
	}
	return &out, nil
}

// GetInteraction fetches the current snapshot of an interaction.
func (c *Client) GetInteraction(ctx context.Context, id string) (*Interaction, error) {
	var out Interaction
	if err := c.doJSON(ctx, http.MethodGet, "/interactions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get interaction %s: %w", id, err)
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out, nil
}

// CreateFileSearchStore creates an empty store for grounding documents.
func (c *Client) CreateFileSearchStore(ctx context.Context, displayName string) (*genai.FileSearchStore, error) {
	store, err := c.sdk.FileSearchStores.Create(ctx, &genai.CreateFileSearchStoreConfig{
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("create file search store: %w", err)
	}
	return store, nil
}

// UploadToFileSearchStore uploads the file at path into storeName and
// returns the indexing operation. storeName is the full resource name
// (fileSearchStores/...).
func (c *Client) UploadToFileSearchStore(ctx context.Context, storeName, path, displayName string) (*genai.UploadToFileSearchStoreOperation, error) {
	c.log.Debug("uploading to file search store",
		zap.String("store", storeName),
		zap.String("file", displayName))

	op, err := c.sdk.FileSearchStores.UploadToFileSearchStoreFromPath(ctx, path, storeName,
		&genai.UploadToFileSearchStoreConfig{
			DisplayName: displayName,
			MIMEType:    mimeTypeForFile(path),
		})
	if err != nil {
		return nil, fmt.Errorf("upload to %s: %w", storeName, err)
	}
	return op, nil
}

// WaitOperation polls op until it reports done, then surfaces its error
// payload if any. The wait aborts when ctx is cancelled.
func (c *Client) WaitOperation(ctx context.Context, op *genai.UploadToFileSearchStoreOperation) (*genai.UploadToFileSearchStoreOperation, error) {
	for {
		if op.Done {
			if msg, failed := operationFailure(op); failed {
				return op, fmt.Errorf("operation %s failed: %s", op.Name, msg)
			}
			return op, nil
		}
		select {
		case <-ctx.Done():
			return op, ctx.Err()
		case <-time.After(operationPollInterval):
		}
		next, err := c.sdk.Operations.GetUploadToFileSearchStoreOperation(ctx, op, nil)
		if err != nil {
			return op, fmt.Errorf("get operation %s: %w", op.Name, err)
		}
		op = next
	}
}

// operationFailure extracts the failure message of a finished operation.
func operationFailure(op *genai.UploadToFileSearchStoreOperation) (string, bool) {
	if len(op.Error) == 0 {
		return "", false
	}
	if msg, ok := op.Error["message"].(string); ok && msg != "" {
		return msg, true
	}
	return fmt.Sprintf("%v", op.Error), true
}

// mimeTypeForFile guesses the upload MIME type from the file extension.
// Unregistered extensions fall back to text/plain, which matches the
// grounding-document use of these uploads.
func mimeTypeForFile(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "text/plain"
}

// doJSON issues a JSON request against the API base URL and decodes the
// response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

// do executes req and decodes the JSON response. Non-2xx responses become
// errors carrying the status code and trimmed body.
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.log.Debug("api call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
