package app

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/codegen"
	"github.com/yungbote/chartmotion-backend/internal/platform/ffmpegcli"
	"github.com/yungbote/chartmotion-backend/internal/platform/gemini"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/platform/manimcli"
	"github.com/yungbote/chartmotion-backend/internal/platform/objectstore"
	"github.com/yungbote/chartmotion-backend/internal/platform/openai"
	"github.com/yungbote/chartmotion-backend/internal/realtime/bus"
	"github.com/yungbote/chartmotion-backend/internal/temporalx"
)

type Clients struct {
	Bus      bus.Bus
	Store    objectstore.Store
	Codegen  codegen.Backend
	Manim    *manimcli.Engine
	FFmpeg   *ffmpegcli.Runner
	Temporal temporalsdkclient.Client

	RedisAddr      string
	TemporalConfig temporalx.Config
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Event bus: Redis across instances, in-process otherwise.
	busCfg := bus.ConfigFromEnv()
	if busCfg.Addr != "" {
		b, err := bus.NewRedisBus(log, busCfg)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		out.Bus = b
		out.RedisAddr = busCfg.Addr
	} else {
		log.Info("REDIS_ADDR unset; using in-process event bus")
		out.Bus = bus.NewMemory()
	}

	// Object storage
	storageCfg, cfgErr := objectstore.ResolveConfigFromEnv()
	store, err := resolveObjectStore(ctx, log, storageCfg, cfgErr)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	out.Store = store

	// Renderer
	out.Manim = manimcli.New(log, manimcli.ConfigFromEnv())
	if err := out.Manim.AssertReady(ctx); err != nil {
		// Runs fail with a classified error until the binary shows up.
		log.Warn("manim renderer not ready", "error", err)
	}
	out.FFmpeg = ffmpegcli.New(log, ffmpegcli.ConfigFromEnv())
	if err := out.FFmpeg.AssertReady(ctx); err != nil {
		log.Warn("ffmpeg not ready; export merges will fail", "error", err)
	}

	// Codegen backend
	backend, err := wireCodegenBackend(ctx, log, cfg.CodegenBackend)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	out.Codegen = backend

	// Temporal
	if cfg.DispatchMode == DispatchTemporal {
		tcfg := temporalx.LoadConfig()
		if !tcfg.Enabled() {
			out.Close()
			return Clients{}, fmt.Errorf("DISPATCH_MODE=temporal requires TEMPORAL_ADDRESS")
		}
		tc, err := temporalx.NewClient(ctx, log, tcfg)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
		out.Temporal = tc
		out.TemporalConfig = tcfg
	}

	return out, nil
}

// wireCodegenBackend returns nil for "none" or a missing API key; the generative
// fallback is then reported as unavailable.
func wireCodegenBackend(ctx context.Context, log *logger.Logger, name string) (codegen.Backend, error) {
	switch name {
	case "", "none":
		log.Info("Codegen backend disabled")
		return nil, nil
	case "openai":
		ocfg := openai.ConfigFromEnv()
		if ocfg.APIKey == "" {
			log.Warn("OPENAI_API_KEY is empty; generative fallback disabled")
			return nil, nil
		}
		c, err := openai.NewClient(log, ocfg)
		if err != nil {
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		return c, nil
	case "gemini":
		gcfg := gemini.ConfigFromEnv()
		if gcfg.APIKey == "" {
			log.Warn("GEMINI_API_KEY is empty; generative fallback disabled")
			return nil, nil
		}
		c, err := gemini.NewClient(ctx, log, gcfg)
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported CODEGEN_BACKEND %q (allowed: openai, gemini, none)", name)
	}
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
		c.Temporal = nil
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
		c.Bus = nil
	}
}
