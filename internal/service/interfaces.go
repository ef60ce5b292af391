package service

import (
	"context"

	"github.com/jonesmeistro/keyword-planner-volumes/internal/config"
	"github.com/jonesmeistro/keyword-planner-volumes/pkg/batch"
)

// KeywordService is what the CLI and HTTP shells drive.
type KeywordService interface {
	Countries() []config.Country
	Fetch(ctx context.Context, req FetchRequest) (*batch.Report, error)
}

// FetchRequest is raw user input: one keyword per line plus a country name
// as listed by Countries.
type FetchRequest struct {
	Keywords string
	Country  string
	Progress batch.Progress
}
