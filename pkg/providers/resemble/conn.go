package resemble

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/lily/pkg/logging"
	"github.com/harunnryd/lily/pkg/synthesis"
)

type Config struct {
	APIKey       string  `mapstructure:"api_key"`
	Endpoint     string  `mapstructure:"endpoint"`
	VoiceID      string  `mapstructure:"voice_id"`
	SampleRate   int     `mapstructure:"sample_rate"`
	Exaggeration float64 `mapstructure:"exaggeration"`
	DialTimeoutS int     `mapstructure:"dial_timeout_s"`
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = "wss://websocket.cluster.resemble.ai/stream"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 24000
	}
	if c.Exaggeration == 0 {
		c.Exaggeration = 0.7
	}
	if c.DialTimeoutS <= 0 {
		c.DialTimeoutS = 10
	}
	return c
}

// DialFunc returns a pool dialer for the configured endpoint. The endpoint
// is an explicit parameter so alternate clusters are a config change, not a
// code change.
func DialFunc(cfg Config) (synthesis.DialFunc, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" || cfg.VoiceID == "" {
		return nil, errors.New("missing resemble config")
	}
	logger := logging.NewComponentLogger(slog.Default(), "resemble")
	return func(ctx context.Context) (synthesis.Conn, error) {
		if ctx == nil {
			ctx = context.Background()
		}
		dialer := websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: time.Duration(cfg.DialTimeoutS) * time.Second,
		}
		conn, resp, err := dialer.DialContext(ctx, cfg.Endpoint, http.Header{
			"Authorization": []string{"Bearer " + cfg.APIKey},
		})
		if err != nil {
			status := ""
			if resp != nil {
				status = resp.Status
			}
			logger.Error("failed to connect to Resemble",
				slog.String("endpoint", cfg.Endpoint),
				slog.String("status", status),
				slog.String("error", err.Error()))
			return nil, err
		}
		logger.Debug("connected to Resemble", slog.String("endpoint", cfg.Endpoint))
		return conn, nil
	}, nil
}

// BridgeOptions maps provider config onto the bridge's synthesis options.
func BridgeOptions(cfg Config) synthesis.Options {
	cfg = cfg.withDefaults()
	return synthesis.Options{
		VoiceID:      cfg.VoiceID,
		SampleRate:   cfg.SampleRate,
		Exaggeration: cfg.Exaggeration,
	}
}
