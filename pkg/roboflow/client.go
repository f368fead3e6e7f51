package roboflow

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/menta2k/inference-bench/pkg/processing"
	"github.com/menta2k/inference-bench/pkg/types"
)

const reqTimeout = 5 * time.Minute

// Client calls the Roboflow hosted inference API
type Client struct {
	*resty.Client
	apiKey    string
	processor *processing.Processor
}

// NewClient returns a client for apiURL authenticated by apiKey. Requests are
// never retried.
func NewClient(apiURL, apiKey string, logger *zap.Logger) (*Client, error) {
	if apiURL == "" {
		return nil, errors.New("roboflow: api url is empty")
	}
	if apiKey == "" {
		return nil, errors.New("roboflow: api key is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := resty.New().
		SetLogger(logger.Sugar()).
		SetBaseURL(strings.TrimSuffix(apiURL, "/")).
		SetTimeout(reqTimeout).
		SetRetryCount(0)

	return &Client{Client: r, apiKey: apiKey, processor: processing.NewProcessor()}, nil
}

// Infer posts the base64 encoded image file to POST /<modelID> and returns the
// JSON body
func (c *Client) Infer(ctx context.Context, imagePath, modelID string) (*types.Response, error) {
	payload, err := c.processor.ReadBase64(imagePath)
	if err != nil {
		return nil, errors.Wrap(err, "roboflow")
	}

	resp, err := c.R().
		SetContext(ctx).
		SetQueryParam("api_key", c.apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(payload).
		Post("/" + strings.TrimPrefix(modelID, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "roboflow: couldn't reach inference server")
	}

	body := resp.Body()
	if !resp.IsSuccess() {
		return nil, errors.Errorf("roboflow: server returned status %d: %s", resp.StatusCode(), truncate(string(body), 200))
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("roboflow: malformed response body")
	}

	return &types.Response{Body: body}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
