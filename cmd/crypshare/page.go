package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rillToMe/CrypShare/internal/client"
	"github.com/rillToMe/CrypShare/internal/config"
	"github.com/rillToMe/CrypShare/internal/dom"
	"github.com/rillToMe/CrypShare/internal/listing"
	"github.com/rillToMe/CrypShare/internal/logging"
	"github.com/rillToMe/CrypShare/internal/publish"
	"github.com/rillToMe/CrypShare/internal/tracker"
	"github.com/rillToMe/CrypShare/internal/view"
)

func newClient(cfg *config.Config) *client.Client {
	return client.New(client.Config{
		BaseURL:   cfg.BaseURL,
		ListPath:  cfg.ListPath,
		ResetPath: cfg.ResetPath,
		Timeout:   cfg.FetchTimeout,
		Retries:   cfg.FetchRetries,
	})
}

// loadPage returns the page markup: the local template when configured,
// otherwise the files page served upstream.
func loadPage(ctx context.Context, cfg *config.Config, c *client.Client) (string, error) {
	if cfg.TemplateFile != "" {
		data, err := os.ReadFile(cfg.TemplateFile)
		if err != nil {
			return "", fmt.Errorf("read template: %w", err)
		}
		return string(data), nil
	}
	page, err := c.FetchPage(ctx, cfg.PagePath)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	return page, nil
}

// newSession parses the page, discovers its targets and seeds the active
// section tab from SECTION.
func newSession(page string, cfg *config.Config, filter *listing.Filter) (*view.Session, error) {
	doc, err := dom.ParseDocument(page)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	session := view.NewSession(doc, view.Options{UploadsBase: cfg.UploadsBase}, filter)

	if session.Sectioned() != nil {
		tr := tracker.New(view.Sections, tracker.NewLocation(cfg.Section), nil)
		tr.OnChange(session.MarkActiveTab)
		if !tr.Start() {
			logging.Debug("visibility tracking unavailable, using fragment only",
				zap.String("section", tr.Active()))
		}
	}
	return session, nil
}

// buildSinks returns the configured publish destinations.
func buildSinks(ctx context.Context, cfg *config.Config) ([]publish.Sink, error) {
	var sinks []publish.Sink
	if cfg.OutputFile != "" {
		sinks = append(sinks, publish.NewFileSink(cfg.OutputFile))
	}
	if cfg.S3Enabled() {
		s3, err := publish.NewS3Sink(ctx, publish.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Key:       cfg.S3Key,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3)
	}
	return sinks, nil
}
