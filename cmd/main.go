package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/miktoft/policy-transform/pkg/transform"
)

func main() {
	startTime := time.Now()

	opts := Parse()
	if opts == nil {
		return
	}

	defer func() {
		duration := time.Since(startTime)
		log.Info().Msgf("✨ Total execution time: %s", duration.Round(time.Second))
	}()

	if err := run(opts); err != nil {
		log.Error().Msgf("❌ %v", err)
		if !opts.Debug {
			log.Info().Msg("🕵️ Run with '--debug' for more details")
		}
		os.Exit(1)
	}
}

func run(opts *Options) error {
	// Short run ID taken from a fresh UUID, enough to correlate logs
	uniqueID := uuid.New().String()[:5]
	log.Info().Msgf("🔑 Unique ID for this run: %s", uniqueID)

	req := transform.Request{
		InputDir:  opts.InputDir,
		Search:    opts.SearchString,
		Replace:   opts.ReplaceString,
		OutputDir: opts.ResolveOutputDir(),

		MaxReportLength: opts.MaxDiffLength,
	}

	result, err := transform.Run(req)
	if err != nil {
		return err
	}

	log.Info().Msgf("📊 Run summary:\n%s", result.Summary())
	for _, e := range result.Stats.Errors {
		log.Warn().Msgf("⚠️ %s", e)
	}

	if result.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", result.Failed, result.TotalFiles)
	}

	return nil
}
