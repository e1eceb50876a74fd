package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/x7722/mobile-use/internal/config"
	"github.com/x7722/mobile-use/internal/device"
	"github.com/x7722/mobile-use/internal/device/bridge"
	"github.com/x7722/mobile-use/internal/device/native"
	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/llm/anthropic"
	"github.com/x7722/mobile-use/internal/llm/bedrock"
	"github.com/x7722/mobile-use/internal/llm/openai"
	"github.com/x7722/mobile-use/internal/sdk"
	"github.com/x7722/mobile-use/internal/session"
	"github.com/x7722/mobile-use/internal/session/memstore"
	"github.com/x7722/mobile-use/internal/session/redisstore"
	"github.com/x7722/mobile-use/internal/telemetry"
	"github.com/x7722/mobile-use/internal/trace"
)

func buildMultiplexer(ctx context.Context, cfg *config.Config, logger telemetry.Logger) (*llm.Multiplexer, error) {
	profiles := make(map[string]llm.Profile, len(cfg.Providers))
	for _, p := range cfg.Providers {
		client, err := buildLLMClient(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		profile := llm.Profile{Name: p.Name, Client: client, Fallback: p.Fallback}
		if p.RateLimitRPS > 0 {
			profile.Limiter = rate.NewLimiter(rate.Limit(p.RateLimitRPS), 1)
		}
		profiles[p.Name] = profile
	}
	return llm.NewMultiplexer(profiles, logger), nil
}

func buildLLMClient(ctx context.Context, p config.ProviderProfile) (llm.Client, error) {
	switch p.Provider {
	case "anthropic":
		return anthropic.NewFromAPIKey(p.APIKey, anthropic.Options{
			DefaultModel: p.Model,
			HighModel:    p.HighModel,
			SmallModel:   p.SmallModel,
			MaxTokens:    p.MaxTokens,
			Temperature:  float64(p.Temperature),
		})
	case "openai":
		return openai.NewFromAPIKey(p.APIKey, p.Model)
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.Region))
		if err != nil {
			return nil, fmt.Errorf("bedrock: load aws config: %w", err)
		}
		return bedrock.New(bedrock.Options{
			Runtime:      bedrockruntime.NewFromConfig(awsCfg),
			DefaultModel: p.Model,
			HighModel:    p.HighModel,
			SmallModel:   p.SmallModel,
			MaxTokens:    p.MaxTokens,
			Temperature:  p.Temperature,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic, openai, or bedrock)", p.Provider)
	}
}

// packageLister is satisfied by native.Controller; device.Controller itself
// carries no package-listing method since that's a launch_app/stop_app
// resolution concern, not a uniform device action (spec.md §4.6).
type packageLister interface {
	ListPackages(ctx context.Context) ([]string, error)
}

// buildDevice wires the native-first/bridge-fallback device.Controller
// described in spec.md §4.7. A bridge URL is required: the bridge backend
// supplies screen capture even on Android, since ADB has no built-in
// screenshot-streaming equivalent, and is the only backend at all on iOS.
func buildDevice(d config.DeviceTarget) (device.Controller, packageLister, error) {
	if d.BridgeURL == "" {
		return nil, nil, fmt.Errorf("device: bridge_url is required")
	}
	bridgeCtrl := bridge.New(d.BridgeURL, d.Platform)
	bridgeCtrl.DryRun = d.DryRun

	if d.Platform == "ios" {
		return bridgeCtrl, nil, nil
	}

	nativeCtrl := &native.Controller{ADB: execADBClient{}, Serial: d.Serial, Screen: bridgeCtrl}
	return &device.Fallback{Primary: nativeCtrl, Secondary: bridgeCtrl}, nativeCtrl, nil
}

func buildSessionStore(cfg *config.Config) session.Store {
	if cfg.RedisAddr == "" {
		return memstore.New()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return redisstore.New(rdb, "mobileuse:")
}

func buildAgent(ctx context.Context, cfg *config.Config, logger telemetry.Logger) (*sdk.Agent, error) {
	mux, err := buildMultiplexer(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	dev, lister, err := buildDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	var recorder sdk.TraceRecorder
	if cfg.TraceDir != "" {
		recorder = trace.NewRecorder(cfg.TraceDir, logger)
	}

	executorProfile := cfg.Agents.Executor
	if executorProfile == "" {
		executorProfile = cfg.Providers[0].Name
	}

	return sdk.Init(sdk.Config{
		Mux:                 mux,
		PlannerProfile:      orDefault(cfg.Agents.Planner, executorProfile),
		OrchestratorProfile: orDefault(cfg.Agents.Orchestrator, executorProfile),
		CortexProfile:       orDefault(cfg.Agents.Cortex, executorProfile),
		ExecutorProfile:     executorProfile,
		HopperProfile:       orDefault(cfg.Agents.Hopper, executorProfile),
		OutputterProfile:    orDefault(cfg.Agents.Outputter, executorProfile),
		Device:              dev,
		Packages:            lister,
		SessionStore:        buildSessionStore(cfg),
		SessionID:           "local",
		DefaultMaxSteps:     cfg.MaxSteps,
		Recorder:            recorder,
		Logger:              logger,
	})
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
