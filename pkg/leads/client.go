package leads

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harunnryd/lily/pkg/errorsx"
	"github.com/harunnryd/lily/pkg/logging"
	"github.com/harunnryd/lily/pkg/redact"
	"github.com/harunnryd/lily/pkg/resilience"
)

// leadFields is the pipe-delimited layout of a lead_all_info response line.
var leadFields = []string{
	"status", "user", "vendor_lead_code", "source_id", "list_id",
	"gmt_offset_now", "phone_code", "phone_number", "title", "first_name",
	"middle_initial", "last_name", "address1", "address2", "address3",
	"city", "state", "province", "postal_code", "country_code", "gender",
	"date_of_birth", "alt_phone", "email", "security_phrase", "comments",
	"called_count", "last_local_call_time", "rank", "owner",
	"entry_list_id", "lead_id",
}

type Config struct {
	BaseURL        string `mapstructure:"base_url"`
	Source         string `mapstructure:"source"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	TimeoutS       int    `mapstructure:"timeout_s"`
	MaxRetries     int    `mapstructure:"max_retries"`
	RetryBackoffMS int    `mapstructure:"retry_backoff_ms"`
}

func (c Config) withDefaults() Config {
	if c.Source == "" {
		c.Source = "resembleai"
	}
	if c.User == "" {
		c.User = "resembleaiapi"
	}
	if c.TimeoutS <= 0 {
		c.TimeoutS = 10
	}
	return c
}

// Client talks to the dialer's non-agent API. Responses are pipe-delimited
// lines rather than JSON.
type Client struct {
	cfg    Config
	http   *http.Client
	retry  resilience.RetryPolicy
	logger *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("leads base_url is required")
	}
	if strings.TrimSpace(cfg.Password) == "" {
		return nil, fmt.Errorf("leads password is required")
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: time.Duration(cfg.TimeoutS) * time.Second},
		retry:  resilience.NewRetryPolicy(cfg.MaxRetries, time.Duration(cfg.RetryBackoffMS)*time.Millisecond),
		logger: logging.NewComponentLogger(slog.Default(), "lead_client"),
	}, nil
}

func (c *Client) params(function string) url.Values {
	q := url.Values{}
	q.Set("source", c.cfg.Source)
	q.Set("user", c.cfg.User)
	q.Set("pass", c.cfg.Password)
	q.Set("function", function)
	return q
}

// Fetch looks a lead up by phone number. An unknown caller returns nil, nil.
func (c *Client) Fetch(ctx context.Context, phoneNumber string) (*Lead, error) {
	q := c.params("lead_all_info")
	q.Set("phone_number", phoneNumber)

	var body string
	err := c.retry.Do(ctx, func() error {
		var err error
		body, err = c.get(ctx, q)
		return err
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonLeadFetch)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}
	line := strings.SplitN(body, "\n", 2)[0]
	values := strings.Split(line, "|")
	if len(values) != len(leadFields) {
		c.logger.Warn("unexpected lead layout",
			slog.String("phone", redact.Phone(phoneNumber)),
			slog.Int("fields", len(values)))
		return nil, nil
	}

	fields := make(map[string]string, len(leadFields))
	for i, name := range leadFields {
		fields[name] = values[i]
	}
	lead := &Lead{
		LeadID:    fields["lead_id"],
		Status:    fields["status"],
		FirstName: fields["first_name"],
		LastName:  fields["last_name"],
		Phone:     fields["phone_number"],
		Email:     fields["email"],
		Comments:  fields["comments"],
		Fields:    fields,
	}
	c.logger.Info("lead fetched",
		slog.String("lead_id", lead.LeadID),
		slog.String("phone", redact.Phone(phoneNumber)))
	return lead, nil
}

// Update writes the disposition (and optional comments) back to the lead.
func (c *Client) Update(ctx context.Context, leadID, status, comments string) error {
	q := c.params("update_lead")
	q.Set("lead_id", leadID)
	if status != "" {
		q.Set("status", status)
	}
	if comments != "" {
		q.Set("comments", comments)
	}

	err := c.retry.Do(ctx, func() error {
		_, err := c.post(ctx, q)
		return err
	})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonLeadUpdate)
	}
	c.logger.Info("lead updated",
		slog.String("lead_id", leadID),
		slog.String("status", status))
	return nil
}

func (c *Client) get(ctx context.Context, q url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, q url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// A rejected request fails the same way on every attempt.
		return "", resilience.Permanent(fmt.Errorf("lead api status %s", resp.Status))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("lead api status %s", resp.Status)
	}
	return string(data), nil
}

var _ Store = (*Client)(nil)
