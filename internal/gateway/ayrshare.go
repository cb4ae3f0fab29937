package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maheshrc27/contentflow/internal/models"
	"golang.org/x/oauth2"
)

const DefaultAyrshareURL = "https://api.ayrshare.com/api"

type Ayrshare struct {
	baseURL string
	client  *http.Client
}

// NewAyrshare returns a gateway that authenticates with apiKey as a bearer
// token. A nil base client uses http.DefaultClient's transport.
func NewAyrshare(baseURL, apiKey string, base *http.Client) *Ayrshare {
	if baseURL == "" {
		baseURL = DefaultAyrshareURL
	}

	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})

	return &Ayrshare{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  oauth2.NewClient(ctx, src),
	}
}

type ayrshareRequest struct {
	Post      string   `json:"post"`
	Platforms []string `json:"platforms"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
}

type ayrshareResponse struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	PostIDs []struct {
		ID       string `json:"id"`
		Platform string `json:"platform"`
		Status   string `json:"status"`
	} `json:"postIds"`
	Message json.RawMessage `json:"message"`
	Error   json.RawMessage `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

func (a *Ayrshare) Publish(ctx context.Context, post *models.Post) (*Result, error) {
	body := ayrshareRequest{
		Post:      post.ContentText,
		Platforms: []string{string(post.Platform)},
	}
	if post.HasMedia() {
		body.MediaURLs = []string{strings.TrimSpace(*post.MediaURL)}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, Permanent(0, fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/post", bytes.NewReader(payload))
	if err != nil {
		return nil, Permanent(0, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, Transient(0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, Transient(resp.StatusCode, fmt.Sprintf("read response: %v", err))
	}

	var result ayrshareResponse
	decodeErr := json.Unmarshal(raw, &result)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, Transient(resp.StatusCode, errorMessage(&result, resp.StatusCode, post.Platform))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || result.Status == "error" {
		return nil, Permanent(resp.StatusCode, errorMessage(&result, resp.StatusCode, post.Platform))
	}
	if decodeErr != nil {
		return nil, Permanent(resp.StatusCode, fmt.Sprintf("malformed provider response: %v", decodeErr))
	}

	id := result.ID
	if len(result.PostIDs) > 0 && result.PostIDs[0].ID != "" {
		id = result.PostIDs[0].ID
	}
	if id == "" {
		return nil, Permanent(resp.StatusCode, "provider response has no post id")
	}
	return &Result{PlatformPostID: id}, nil
}

func errorMessage(r *ayrshareResponse, status int, platform models.Platform) string {
	for _, field := range []json.RawMessage{r.Message, r.Error, r.Errors} {
		if msg := flatten(field); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("posting failed (status %d); check that the %s account is connected", status, platform)
}

// flatten renders a provider error field that may be a string, a list or an object.
func flatten(field json.RawMessage) string {
	if len(field) == 0 || string(field) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		return s
	}

	var list []json.RawMessage
	if err := json.Unmarshal(field, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if p := flatten(item); p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, "; ")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(field, &obj); err == nil {
		if msg := flatten(obj["message"]); msg != "" {
			return msg
		}
	}
	return string(field)
}
