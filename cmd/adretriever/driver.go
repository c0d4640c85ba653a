package main

import (
	"context"
	"errors"

	"github.com/adobservatory/adharvest/internal/browser"
	"github.com/adobservatory/adharvest/internal/config"
)

// The headless-browser driver and the extraction library are linked in by
// the deployment, which replaces these two factories in its own file in
// this package. The defaults fail on first use so a driverless build cannot
// lease batches it can never process.
var (
	newBrowserContext = func(cfg config.BrowserConfig) browser.ContextFactory {
		return func(ctx context.Context) (browser.Browser, error) {
			return nil, errors.New("no browser driver linked into this build")
		}
	}

	newExtractor = func(cfg config.BrowserConfig) browser.ExtractorFactory {
		return func(b browser.Browser) (browser.Extractor, error) {
			return nil, errors.New("no extraction library linked into this build")
		}
	}
)
