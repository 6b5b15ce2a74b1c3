package lark

import (
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// International selects the larksuite.com endpoint instead of feishu.cn
	International bool
	// RequestTimeout bounds each API call; zero keeps the SDK default
	RequestTimeout time.Duration
}

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client *lark.Client
	appID  string
	logger *zap.Logger
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.International {
		opts = append(opts, lark.WithOpenBaseUrl(lark.LarkBaseUrl))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, lark.WithReqTimeout(cfg.RequestTimeout))
	}

	logger.Info("Lark client configured",
		zap.String("app_id", cfg.AppID),
		zap.Bool("international", cfg.International))

	return &SDKClient{
		client: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		appID:  cfg.AppID,
		logger: logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}
