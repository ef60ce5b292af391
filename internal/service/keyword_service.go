package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesmeistro/keyword-planner-volumes/internal/config"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/batch"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/keywords"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/stats"
)

var ErrUnknownCountry = errors.New("unknown country")

// NewFetcher builds the Ads adapter wrapped in the rate/retry gate.
func NewFetcher(cfg *config.Config, creds planner.Credentials, rec planner.CallRecorder, opts ...planner.ClientOption) (planner.Fetcher, error) {
	client, err := planner.NewAdsClient(cfg.Planner.ClientConfig, creds, opts...)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "secrets", Err: err}
	}

	logger.GetSecurityLogger().SafeInfo("Google Ads client ready", map[string]interface{}{
		"developer_token":    creds.DeveloperToken,
		"client_customer_id": creds.ClientCustomerID,
		"login_customer_id":  creds.LoginCustomerID,
		"api_version":        cfg.Planner.APIVersion,
	})

	return planner.NewGate(client, cfg.Gate).WithRecorder(rec), nil
}

type keywordService struct {
	config   *config.Config
	geo      *config.GeoTargets
	fetcher  planner.Fetcher
	sink     batch.MissingSink
	recorder *stats.Recorder
	detector *keywords.LanguageDetector
	log      *logger.Logger
}

// New wires a KeywordService. sink and recorder may be nil.
func New(cfg *config.Config, geo *config.GeoTargets, fetcher planner.Fetcher, sink batch.MissingSink, recorder *stats.Recorder) KeywordService {
	return &keywordService{
		config:   cfg,
		geo:      geo,
		fetcher:  fetcher,
		sink:     sink,
		recorder: recorder,
		detector: keywords.NewLanguageDetector(),
		log:      logger.GetLogger().WithField("component", "keyword_service"),
	}
}

func (s *keywordService) Countries() []config.Country {
	return s.geo.Countries()
}

// Fetch validates the input, resolves the target and runs the batch. Input
// problems come back as *keywords.InputValidationError before any provider
// call is made.
func (s *keywordService) Fetch(ctx context.Context, req FetchRequest) (*batch.Report, error) {
	if err := keywords.ValidateCountry(req.Country); err != nil {
		return nil, err
	}
	country, ok := s.geo.Lookup(req.Country)
	if !ok {
		return nil, &keywords.InputValidationError{Err: ErrUnknownCountry, Detail: req.Country}
	}

	kws, err := keywords.Parse(req.Keywords, s.config.Input.MaxKeywords)
	if err != nil {
		return nil, err
	}

	languageID := s.detector.ResolveLanguage(s.config.Planner.LanguageID, kws, planner.DefaultLanguageID)

	builder := batch.NewRunnerBuilder().
		WithFetcher(s.fetcher).
		WithMaxKeywordsPerCall(s.config.Planner.MaxKeywordsPerCall).
		WithConfig(s.config.RunConfig()).
		WithMissingSink(s.sink).
		WithProgress(req.Progress)
	if s.recorder != nil {
		builder.WithRecorder(s.recorder)
	}
	runner, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"configured_language": s.config.Planner.LanguageID,
		"language_id":         languageID,
	}).Debug("Resolved run language")

	return runner.Run(ctx, batch.Request{
		Keywords: kws,
		Target: batch.Target{
			Country:     country.Name,
			GeoTargetID: country.CriteriaID,
			LanguageID:  languageID,
		},
	})
}
