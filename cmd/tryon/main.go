// Command tryon runs one virtual fitting against the workflow service from the
// terminal. Slot values are local file paths or image URLs; URLs are fetched
// through the shop's image proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	"github.com/291e/bogofit-shop-sub001/internal/fitting"
	"github.com/291e/bogofit-shop-sub001/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var (
		workflowURL string
		videoURL    string
		shopOrigin  string
		pro         bool
		videoWait   time.Duration
		verbose     bool
	)
	slots := map[fitting.Slot]*string{}
	for _, slot := range fitting.Slots {
		slots[slot] = flag.String(string(slot), "", fmt.Sprintf("%s image: file path or URL", slot))
	}
	flag.StringVar(&workflowURL, "workflow-url", os.Getenv("FITTING_WORKFLOW_URL"), "fitting workflow endpoint")
	flag.StringVar(&videoURL, "video-url", os.Getenv("FITTING_VIDEO_URL"), "video endpoint used with -pro")
	flag.StringVar(&shopOrigin, "shop", "http://localhost:8080", "shop origin whose image proxy fetches URL inputs")
	flag.BoolVar(&pro, "pro", false, "also generate a video from the fitted image")
	flag.DurationVar(&videoWait, "video-timeout", fitting.DefaultVideoTimeout, "upper bound for the video call")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	logger := infra.NewCLILogger(verbose).With().Str("cmd", "tryon").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := fitting.NewClient(fitting.ClientOptions{
		WorkflowURL: workflowURL,
		VideoURL:     videoURL,
		VideoTimeout: videoWait,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("tryon: configure client")
	}

	form := fitting.NewForm(fitting.FormOptions{
		Fetcher: fitting.NewProxyFetcher(shopOrigin, nil),
		Logger:  &logger,
	})
	if err := fillForm(ctx, form, slots); err != nil {
		logger.Fatal().Err(err).Msg("tryon: invalid input")
	}

	sim := fitting.NewSimulator(fitting.SimulatorOptions{})
	ctrl := fitting.NewController(fitting.ControllerOptions{
		Invoker:   client,
		Form:      form,
		Simulator: sim,
		ClientID:  os.Getenv("FITTING_CLIENT_ID"),
		Logger:    &logger,
	})
	defer ctrl.Close()

	updates, unsubscribe := sim.Subscribe()
	defer unsubscribe()
	go func() {
		last := -1
		for p := range updates {
			if p.Percent/10 == last/10 && p.Percent != 100 {
				continue
			}
			last = p.Percent
			logger.Info().Int("percent", p.Percent).Str("phase", string(p.Phase)).Msg(p.StatusMessage)
		}
	}()

	result, err := ctrl.Run(ctx, pro)
	if err != nil {
		logger.Fatal().Err(err).Msg("tryon: run refused")
	}
	if !result.Succeeded() {
		logger.Error().Str("connection_info", ctrl.Snapshot().ConnectionInfo).Msg(result.ErrorMessage)
		os.Exit(1)
	}
	if result.VideoErrorMessage != "" {
		logger.Warn().Msg(result.VideoErrorMessage)
	}
	fmt.Println(result.ImageURL)
	if result.VideoURL != "" {
		fmt.Println(result.VideoURL)
	}
}

// fillForm loads local files directly and hands URLs to the form's fetcher.
func fillForm(ctx context.Context, form *fitting.Form, inputs map[fitting.Slot]*string) error {
	remote := map[fitting.Slot]string{}
	var result *multierror.Error
	for _, slot := range fitting.Slots {
		value := strings.TrimSpace(*inputs[slot])
		if value == "" {
			continue
		}
		if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
			remote[slot] = value
			continue
		}
		file, err := readFile(value)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", slot, err))
			continue
		}
		if err := form.SetFromUpload(ctx, slot, file); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := form.SeedSamples(ctx, remote); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func readFile(path string) (*fitting.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &fitting.File{Name: filepath.Base(path), MIME: http.DetectContentType(data), Data: data}, nil
}
