package media

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.cloudinary.com/v1_1"

var (
	ErrEmptyImage   = errors.New("empty image data")
	ErrNotManaged   = errors.New("url is not a managed image")
	ErrUploadFailed = errors.New("image upload failed")
)

// CloudinaryClient uploads and removes pet photos through Cloudinary's signed
// REST API. A nil client is valid; callers get an error instead of a panic
// when the credentials were never configured.
type CloudinaryClient struct {
	cloudName  string
	apiKey     string
	apiSecret  string
	folder     string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewCloudinaryClient(cloudName, apiKey, apiSecret, folder string) *CloudinaryClient {
	if strings.TrimSpace(cloudName) == "" || strings.TrimSpace(apiKey) == "" || strings.TrimSpace(apiSecret) == "" {
		return nil
	}
	return &CloudinaryClient{
		cloudName:  cloudName,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		folder:     strings.Trim(folder, "/"),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// UploadBase64 pushes a base64 image (raw or data-URL form) and returns the
// served HTTPS URL.
func (c *CloudinaryClient) UploadBase64(ctx context.Context, data, publicID string) (string, error) {
	if c == nil {
		return "", errors.New("media client not configured")
	}
	payload := strings.TrimSpace(data)
	if payload == "" {
		return "", ErrEmptyImage
	}
	// Strip a data-URL prefix if the client sent one.
	if i := strings.Index(payload, ","); i != -1 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}

	finalID := c.qualify(publicID)
	timestamp := fmt.Sprintf("%d", c.now().Unix())

	form := url.Values{}
	form.Add("file", "data:image/jpeg;base64,"+payload)
	form.Add("api_key", c.apiKey)
	form.Add("public_id", finalID)
	form.Add("timestamp", timestamp)
	form.Add("signature", c.sign(finalID, timestamp))

	endpoint := c.baseURL + "/" + c.cloudName + "/image/upload"
	var out struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
		Error     struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.postForm(ctx, endpoint, form, &out); err != nil {
		return "", err
	}
	if out.Error.Message != "" {
		return "", fmt.Errorf("%w: %s", ErrUploadFailed, out.Error.Message)
	}

	served := out.SecureURL
	if served == "" {
		served = out.URL
	}
	if served == "" {
		return "", ErrUploadFailed
	}
	return served, nil
}

// Destroy removes a previously uploaded image given its served URL.
func (c *CloudinaryClient) Destroy(ctx context.Context, imageURL string) error {
	if c == nil {
		return errors.New("media client not configured")
	}
	publicID, err := PublicIDFromURL(imageURL)
	if err != nil {
		return err
	}

	finalID := c.qualify(publicID)
	timestamp := fmt.Sprintf("%d", c.now().Unix())

	form := url.Values{}
	form.Add("public_id", finalID)
	form.Add("api_key", c.apiKey)
	form.Add("timestamp", timestamp)
	form.Add("signature", c.sign(finalID, timestamp))

	endpoint := c.baseURL + "/" + c.cloudName + "/image/destroy"
	var out struct {
		Result string `json:"result"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.postForm(ctx, endpoint, form, &out); err != nil {
		return err
	}
	if out.Error.Message != "" {
		return fmt.Errorf("image destroy failed: %s", out.Error.Message)
	}
	if out.Result != "ok" && out.Result != "not found" {
		return fmt.Errorf("image destroy failed: result=%s", out.Result)
	}
	return nil
}

func (c *CloudinaryClient) qualify(publicID string) string {
	if c.folder != "" && !strings.HasPrefix(publicID, c.folder+"/") {
		return c.folder + "/" + publicID
	}
	return publicID
}

// sign produces the SHA1 request signature over the signed parameters plus
// the API secret, the scheme Cloudinary expects for authenticated calls.
func (c *CloudinaryClient) sign(publicID, timestamp string) string {
	base := fmt.Sprintf("public_id=%s&timestamp=%s%s", publicID, timestamp, c.apiSecret)
	return fmt.Sprintf("%x", sha1.Sum([]byte(base)))
}

func (c *CloudinaryClient) postForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("media create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("media request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("media read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("media decode response: %w", err)
	}
	return nil
}

// PublicIDFromURL pulls the public ID out of a served Cloudinary URL, e.g.
// https://res.cloudinary.com/{cloud}/image/upload/v123/{folder}/{id}.jpg
func PublicIDFromURL(imageURL string) (string, error) {
	if !strings.Contains(imageURL, "res.cloudinary.com") {
		return "", ErrNotManaged
	}
	parts := strings.Split(imageURL, "/upload/")
	if len(parts) != 2 || parts[1] == "" {
		return "", ErrNotManaged
	}
	path := parts[1]
	segments := strings.Split(path, "/")
	// Drop a leading version segment like v1712345678.
	if len(segments) > 1 && strings.HasPrefix(segments[0], "v") {
		allDigits := len(segments[0]) > 1
		for _, r := range segments[0][1:] {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			segments = segments[1:]
		}
	}
	id := strings.Join(segments, "/")
	if dot := strings.LastIndex(id, "."); dot != -1 {
		id = id[:dot]
	}
	if id == "" {
		return "", ErrNotManaged
	}
	return id, nil
}
