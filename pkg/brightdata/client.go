// Package brightdata is the entry point for running scrape, search and crawl
// jobs against the Bright Data API.
//
// A Client owns one authenticated transport, a zone manager and two job
// engines: one for dataset collections and one for unlocker and SERP requests.
// Results from either engine flow through the same sinks.
package brightdata

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/brightdata-go/internal/clock/system"
	"github.com/JakeFAU/brightdata-go/internal/config"
	"github.com/JakeFAU/brightdata-go/internal/id/uuid"
	"github.com/JakeFAU/brightdata-go/internal/platform"
	"github.com/JakeFAU/brightdata-go/internal/remote"
	"github.com/JakeFAU/brightdata-go/internal/validate"
	"github.com/JakeFAU/brightdata-go/pkg/job"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

// Config configures a Client. Zero values fall back to the package defaults.
type Config struct {
	// Token authenticates every call. When empty the first non-empty variable
	// in config.TokenEnvVars is used.
	Token          string
	BaseURL        string
	CustomerID     string
	UserAgent      string
	Timeout        time.Duration `validate:"gte=0"`
	RateLimitRPS   float64       `validate:"gte=0"`
	RateLimitBurst int           `validate:"gte=0"`
	MaxRetries     int           `validate:"gte=0"`
	RetryBaseDelay time.Duration `validate:"gte=0"`

	WebUnlockerZone string `validate:"omitempty,zonename"`
	SERPZone        string `validate:"omitempty,zonename"`
	BrowserZone     string `validate:"omitempty,zonename"`
	AutoCreateZones bool

	PollInterval time.Duration `validate:"gte=0"`
	PollTimeout  time.Duration `validate:"gte=0"`

	CrawlDatasetID string

	// VerifyToken makes New issue one authenticated call before returning.
	VerifyToken bool
}

// FromConfig maps a loaded configuration file onto a client Config.
func FromConfig(c config.Config) Config {
	return Config{
		Token:           c.API.Token,
		BaseURL:         c.API.BaseURL,
		CustomerID:      c.API.CustomerID,
		UserAgent:       c.API.UserAgent,
		Timeout:         c.APITimeout(),
		RateLimitRPS:    c.API.RateLimitRPS,
		RateLimitBurst:  c.API.RateLimitBurst,
		MaxRetries:      c.API.MaxRetries,
		RetryBaseDelay:  c.RetryBaseDelay(),
		WebUnlockerZone: c.Zones.WebUnlocker,
		SERPZone:        c.Zones.SERP,
		BrowserZone:     c.Zones.Browser,
		AutoCreateZones: c.Zones.AutoCreate,
		PollInterval:    c.PollInterval(),
		PollTimeout:     c.PollTimeout(),
		CrawlDatasetID:  c.Crawl.DatasetID,
	}
}

func (c Config) withDefaults() (Config, error) {
	c.Token = strings.TrimSpace(c.Token)
	if c.Token == "" {
		for _, name := range config.TokenEnvVars {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				c.Token = v
				break
			}
		}
	}
	if c.Token == "" {
		return c, sdkerr.Validationf("token", "API token is required: pass it in Config or set %s (get one at %s)",
			config.TokenEnvVars[0], sdkerr.APIKeysURL)
	}
	if len(c.Token) < config.MinTokenLength {
		return c, sdkerr.Validationf("token", "API token looks invalid: expected at least %d characters", config.MinTokenLength)
	}
	if err := validate.Struct(c); err != nil {
		return c, err
	}

	defaults := zone.DefaultNames()
	if c.WebUnlockerZone == "" {
		c.WebUnlockerZone = defaults[zone.RoleWebUnlocker]
	}
	if c.SERPZone == "" {
		c.SERPZone = defaults[zone.RoleSERP]
	}
	if c.BrowserZone == "" {
		c.BrowserZone = defaults[zone.RoleBrowser]
	}
	if c.PollInterval == 0 {
		c.PollInterval = job.DefaultPollInterval
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = job.DefaultPollTimeout
	}
	if c.PollTimeout < c.PollInterval {
		return c, sdkerr.Validationf("poll_timeout", "must be at least the poll interval (%s), got %s", c.PollInterval, c.PollTimeout)
	}
	if c.CrawlDatasetID == "" {
		c.CrawlDatasetID = platform.DefaultCrawlDataset
	}
	return c, nil
}

func (c Config) zoneNames() map[zone.Role]string {
	return map[zone.Role]string{
		zone.RoleWebUnlocker: c.WebUnlockerZone,
		zone.RoleSERP:        c.SERPZone,
		zone.RoleBrowser:     c.BrowserZone,
	}
}

type options struct {
	sinks      []job.Sink
	engineOpts []job.Option
	clock      job.Clock
}

// Option customizes a Client.
type Option func(*options)

// WithSinks registers sinks that receive every finished result.
func WithSinks(sinks ...job.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// WithEngineOptions passes options through to both job engines.
func WithEngineOptions(opts ...job.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// WithClock overrides the clock used for account info timestamps and both engines.
func WithClock(c job.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Client runs jobs against one Bright Data account. It is safe for concurrent use.
type Client struct {
	cfg      Config
	api      *remote.Client
	requests *remote.RequestJobs
	zones    *zone.Manager
	datasets *job.Engine
	unlocker *job.Engine
	clock    job.Clock
	logger   *zap.Logger

	scrape *ScrapeService
	search *SearchService
	crawl  *CrawlService

	accountMu sync.Mutex
	account   *AccountInfo

	closeOnce sync.Once
}

// New builds a Client. With AutoCreateZones set, every configured zone is
// provisioned before New returns; with VerifyToken set, the token is checked
// with one authenticated call.
func New(ctx context.Context, cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	api, err := remote.New(remote.Config{
		BaseURL:        cfg.BaseURL,
		Token:          cfg.Token,
		Timeout:        cfg.Timeout,
		UserAgent:      cfg.UserAgent,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
	}, logger)
	if err != nil {
		return nil, err
	}

	zones := zone.NewManager(api.Zones(), zone.Config{Names: cfg.zoneNames(), AutoCreate: cfg.AutoCreateZones}, logger)
	engineOpts := []job.Option{job.WithSinks(o.sinks...)}
	if o.clock != nil {
		engineOpts = append(engineOpts, job.WithClock(o.clock))
	}
	engineOpts = append(engineOpts, o.engineOpts...)

	c := &Client{
		cfg:      cfg,
		api:      api,
		requests: api.Requests(uuid.New()),
		zones:    zones,
		clock:    o.clock,
		logger:   logger,
	}
	if c.clock == nil {
		c.clock = system.New()
	}
	c.datasets = job.NewEngine(api.Datasets(), zones, logger.Named("datasets"), engineOpts...)
	c.unlocker = job.NewEngine(c.requests, zones, logger.Named("requests"), engineOpts...)
	c.scrape = &ScrapeService{c: c}
	c.search = &SearchService{c: c}
	c.crawl = &CrawlService{c: c}

	if cfg.VerifyToken {
		if err := api.Ping(ctx); err != nil {
			api.Close()
			var authErr *sdkerr.AuthenticationError
			if errors.As(err, &authErr) {
				return nil, err
			}
			return nil, &sdkerr.AuthenticationError{
				Message:     "token verification failed: " + err.Error(),
				Remediation: "check the token at " + sdkerr.TokenSettingsURL,
			}
		}
	}
	if cfg.AutoCreateZones {
		if err := zones.EnsureConfigured(ctx); err != nil {
			api.Close()
			return nil, err
		}
	}

	logger.Debug("client ready",
		zap.String("base_url", api.BaseURL()),
		zap.Bool("auto_create_zones", cfg.AutoCreateZones),
	)
	return c, nil
}

// With builds a Client, passes it to fn and closes it afterwards, whether or
// not fn fails.
func With(ctx context.Context, cfg Config, logger *zap.Logger, fn func(*Client) error, opts ...Option) error {
	c, err := New(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// Close releases pooled connections. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if pending := c.requests.Pending(); pending > 0 {
			c.logger.Debug("dropping unfetched request results", zap.Int("pending", pending))
		}
		c.api.Close()
	})
}

// Config returns the effective configuration with defaults applied.
func (c *Client) Config() Config {
	return c.cfg
}

// Scrape returns the URL and platform scrape service.
func (c *Client) Scrape() *ScrapeService { return c.scrape }

// Search returns the search engine service.
func (c *Client) Search() *SearchService { return c.search }

// Crawl returns the site discovery service.
func (c *Client) Crawl() *CrawlService { return c.crawl }

// Zones returns the zone manager.
func (c *Client) Zones() *zone.Manager { return c.zones }

// ListZones returns the account's active zones. The list is always fetched
// from the remote API, so zones created elsewhere are included.
func (c *Client) ListZones(ctx context.Context, refresh bool) ([]zone.Zone, error) {
	return c.zones.ListZones(ctx, refresh)
}

// DeleteZone removes a zone from the account.
func (c *Client) DeleteZone(ctx context.Context, name string) error {
	if err := validate.ZoneName(name); err != nil {
		return err
	}
	defer c.InvalidateAccountInfo()
	return c.zones.DeleteZone(ctx, name)
}

// EnsureZones provisions every configured zone that does not exist yet.
func (c *Client) EnsureZones(ctx context.Context) error {
	defer c.InvalidateAccountInfo()
	return c.zones.EnsureConfigured(ctx)
}

// TestConnection reports whether one authenticated call succeeds.
func (c *Client) TestConnection(ctx context.Context) bool {
	if err := c.api.Ping(ctx); err != nil {
		c.logger.Debug("connection test failed", zap.Error(err))
		return false
	}
	return true
}
