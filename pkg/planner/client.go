package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/oauth2"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
)

const (
	DefaultEndpoint   = "https://googleads.googleapis.com"
	DefaultAPIVersion = "v17"
	DefaultTokenURL   = "https://oauth2.googleapis.com/token"

	adwordsScope = "https://www.googleapis.com/auth/adwords"
)

// Credentials are passed through to Google unchanged.
type Credentials struct {
	DeveloperToken   string `yaml:"developer_token"`
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	RefreshToken     string `yaml:"refresh_token"`
	LoginCustomerID  string `yaml:"login_customer_id"`
	ClientCustomerID string `yaml:"client_customer_id"`
}

// ClientConfig configures the Ads REST adapter.
type ClientConfig struct {
	Endpoint           string           `mapstructure:"endpoint"`
	APIVersion         string           `mapstructure:"api_version"`
	TokenURL           string           `mapstructure:"token_url"`
	MaxKeywordsPerCall int              `mapstructure:"max_keywords_per_call"`
	RequestTimeout     time.Duration    `mapstructure:"request_timeout"`
	Connection         ConnectionConfig `mapstructure:"connection"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:           DefaultEndpoint,
		APIVersion:         DefaultAPIVersion,
		TokenURL:           DefaultTokenURL,
		MaxKeywordsPerCall: DefaultMaxKeywordsPerCall,
		RequestTimeout:     60 * time.Second,
		Connection:         DefaultConnectionConfig(),
	}
}

// ClientOption customises an AdsClient.
type ClientOption func(*AdsClient)

// WithTokenSource replaces the refresh-token exchange, mostly for tests.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *AdsClient) { c.tokens = ts }
}

// WithDial routes connections through dial instead of the network.
func WithDial(dial fasthttp.DialFunc) ClientOption {
	return func(c *AdsClient) { c.dial = dial }
}

// AdsClient calls KeywordPlanIdeaService.GenerateKeywordHistoricalMetrics
// over the Google Ads REST interface.
type AdsClient struct {
	config     ClientConfig
	creds      Credentials
	customerID string
	tokens     oauth2.TokenSource
	dial       fasthttp.DialFunc
	httpClient *fasthttp.Client
	parser     *ResponseParser
	log        *logger.Logger

	totalRequests  uint64
	failedRequests uint64
}

func NewAdsClient(cfg ClientConfig, creds Credentials, opts ...ClientOption) (*AdsClient, error) {
	defaults := DefaultClientConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaults.APIVersion
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.MaxKeywordsPerCall <= 0 {
		cfg.MaxKeywordsPerCall = defaults.MaxKeywordsPerCall
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.Connection.MaxConnsPerHost <= 0 {
		cfg.Connection = defaults.Connection
	}

	customerID := strings.ReplaceAll(strings.TrimSpace(creds.ClientCustomerID), "-", "")
	if customerID == "" {
		return nil, errors.New("client customer id is required")
	}
	if creds.DeveloperToken == "" {
		return nil, errors.New("developer token is required")
	}

	c := &AdsClient{
		config:     cfg,
		creds:      creds,
		customerID: customerID,
		parser:     NewResponseParser(),
		log:        logger.GetLogger().WithField("component", "ads_client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil {
		if creds.RefreshToken == "" || creds.ClientID == "" || creds.ClientSecret == "" {
			return nil, errors.New("client id, client secret and refresh token are required")
		}
		oauthConfig := &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{adwordsScope},
		}
		c.tokens = oauthConfig.TokenSource(context.Background(), &oauth2.Token{RefreshToken: creds.RefreshToken})
	}

	c.httpClient = newFastHTTPClient(cfg.Connection, c.dial)
	return c, nil
}

// MaxKeywordsPerCall reports the per-request keyword ceiling.
func (c *AdsClient) MaxKeywordsPerCall() int {
	return c.config.MaxKeywordsPerCall
}

type historicalMetricsRequest struct {
	Keywords           []string `json:"keywords"`
	GeoTargetConstants []string `json:"geoTargetConstants"`
	Language           string   `json:"language"`
	KeywordPlanNetwork string   `json:"keywordPlanNetwork"`
}

func (c *AdsClient) Fetch(ctx context.Context, keywords []string, geoTargetID, languageID string) ([]KeywordMetrics, error) {
	if len(keywords) == 0 || len(keywords) > c.config.MaxKeywordsPerCall {
		return nil, &ProviderError{
			Code:      CodeInvalidArgument,
			Message:   fmt.Sprintf("keyword count %d outside 1..%d", len(keywords), c.config.MaxKeywordsPerCall),
			FieldPath: "keywords",
		}
	}
	if languageID == "" {
		languageID = DefaultLanguageID
	}

	atomic.AddUint64(&c.totalRequests, 1)
	start := time.Now()

	records, err := c.doFetch(ctx, keywords, geoTargetID, languageID)
	if err != nil {
		atomic.AddUint64(&c.failedRequests, 1)
		c.log.WithError(err).WithFields(map[string]interface{}{
			"keywords_count": len(keywords),
			"geo_target_id":  geoTargetID,
		}).Warn("Historical metrics request failed")
		return nil, err
	}

	c.log.WithFields(map[string]interface{}{
		"keywords_count": len(keywords),
		"records":        len(records),
		"duration_ms":    time.Since(start).Milliseconds(),
	}).Debug("Historical metrics request completed")
	return records, nil
}

func (c *AdsClient) doFetch(ctx context.Context, keywords []string, geoTargetID, languageID string) ([]KeywordMetrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, tokenError(err)
	}

	body, err := json.Marshal(historicalMetricsRequest{
		Keywords:           keywords,
		GeoTargetConstants: []string{"geoTargetConstants/" + geoTargetID},
		Language:           "languageConstants/" + languageID,
		KeywordPlanNetwork: "GOOGLE_SEARCH",
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.requestURL())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("developer-token", c.creds.DeveloperToken)
	if login := strings.ReplaceAll(c.creds.LoginCustomerID, "-", ""); login != "" {
		req.Header.Set("login-customer-id", login)
	}
	req.SetBody(body)

	timeout := c.config.RequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	if err := c.httpClient.DoTimeout(req, resp, timeout); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return nil, newProviderError(CodeDeadlineExceeded, "request timed out after %s", timeout)
		}
		return nil, newProviderError(CodeUnavailable, "request failed: %v", err)
	}

	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return nil, c.parser.ParseError(status, resp.Body())
	}

	return c.parser.ParseResponse(resp.Body())
}

func (c *AdsClient) requestURL() string {
	return fmt.Sprintf("%s/%s/customers/%s:generateKeywordHistoricalMetrics",
		strings.TrimRight(c.config.Endpoint, "/"), c.config.APIVersion, c.customerID)
}

// Stats returns request counters since construction.
func (c *AdsClient) Stats() (total, failed uint64) {
	return atomic.LoadUint64(&c.totalRequests), atomic.LoadUint64(&c.failedRequests)
}

func tokenError(err error) *ProviderError {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		pe := &ProviderError{
			Code:       CodeUnauthenticated,
			Message:    "access token refresh failed: " + re.ErrorCode,
			HTTPStatus: re.Response.StatusCode,
		}
		if re.Response.StatusCode >= 500 {
			pe.Code = CodeUnavailable
		}
		return pe
	}
	return newProviderError(CodeUnavailable, "access token refresh failed: %v", err)
}
