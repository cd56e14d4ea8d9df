package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitrise-io/go-tusupload/output"
	"github.com/bitrise-io/go-tusupload/upload"
	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

const debugEnvKey = "TUS_DEBUG"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envRepo := env.NewRepository()
	logger := log.NewLogger()
	logger.EnableDebugLog(envRepo.Get(debugEnvKey) == "true")

	if err := run(ctx, envRepo, logger); err != nil {
		logger.Errorf("%s", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, envRepo env.Repository, logger log.Logger) error {
	params, err := upload.NewParamsFromEnv(envRepo)
	if err != nil {
		return err
	}

	events := make(chan upload.Progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range events {
			if p.Done {
				continue
			}
			logger.Printf("%5.1f%% (%s / %s)", p.Fraction*100,
				units.HumanSizeWithPrecision(float64(p.Offset), 3),
				units.HumanSizeWithPrecision(float64(p.TotalLength), 3))
		}
	}()

	service := upload.NewService(envRepo, logger, nil, nil)
	result, err := service.Upload(ctx, params, events)
	close(events)
	<-done
	if err != nil {
		return err
	}

	logger.Println()
	logger.Infof("Upload URL: %s", result.UploadURL)
	if result.MediaID != "" {
		logger.Infof("Media ID: %s", result.MediaID)
	}

	exporter := output.NewExporter(command.NewFactory(envRepo))
	return exporter.ExportResult(result)
}
