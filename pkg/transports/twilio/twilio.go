package twilio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/lily/pkg/errorsx"
	"github.com/harunnryd/lily/pkg/logging"
	"github.com/harunnryd/lily/pkg/transports"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type Config struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
}

type callUpdater interface {
	UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

func restClient(cfg Config) (callUpdater, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("missing twilio credentials")
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return rest.Api, nil
}

// Call wraps one active Twilio call leg.
type Call struct {
	sid    string
	client callUpdater
	logger *slog.Logger
}

func NewCall(cfg Config, callSID string) (*Call, error) {
	client, err := restClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Call{
		sid:    callSID,
		client: client,
		logger: logging.NewComponentLogger(slog.Default(), "twilio_call"),
	}, nil
}

func (c *Call) Identity() string { return c.sid }

// Release completes the call on the Twilio side.
func (c *Call) Release(ctx context.Context) error {
	_ = ctx
	if c.sid == "" {
		return errorsx.New("no active call", errorsx.ReasonCallRelease)
	}
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := c.client.UpdateCall(c.sid, params); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonCallRelease)
	}
	c.logger.Info("call released", slog.String("call_sid", c.sid))
	return nil
}

// Gateway transfers active calls by redirecting them to a dial target.
type Gateway struct {
	client callUpdater
	logger *slog.Logger
}

func NewGateway(cfg Config) (*Gateway, error) {
	client, err := restClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		client: client,
		logger: logging.NewComponentLogger(slog.Default(), "twilio_gateway"),
	}, nil
}

// Transfer redirects the call leg to the destination number. An empty call
// identity means there is no eligible transport leg to hand off.
func (g *Gateway) Transfer(ctx context.Context, callIdentity, destination string) error {
	_ = ctx
	if strings.TrimSpace(callIdentity) == "" {
		return errorsx.New("no eligible transport endpoint", errorsx.ReasonTransferNoEndpoint)
	}
	if strings.TrimSpace(destination) == "" {
		return errorsx.New("transfer destination not configured", errorsx.ReasonTransferFailed)
	}
	params := &api.UpdateCallParams{}
	params.SetTwiml(fmt.Sprintf("<Response><Dial>%s</Dial></Response>", destination))
	if _, err := g.client.UpdateCall(callIdentity, params); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransferFailed)
	}
	g.logger.Info("call transferred",
		slog.String("call_sid", callIdentity),
		slog.String("destination", destination))
	return nil
}

var (
	_ transports.Call            = (*Call)(nil)
	_ transports.TransferGateway = (*Gateway)(nil)
)
