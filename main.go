package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/chative-gateway/agent/agents/fallback"
	"github.com/tanpawarit/chative-gateway/agent/agents/orchestrator"
	"github.com/tanpawarit/chative-gateway/agent/intent"
	llmx "github.com/tanpawarit/chative-gateway/agent/llm"
	"github.com/tanpawarit/chative-gateway/agent/remote"
	storex "github.com/tanpawarit/chative-gateway/agent/store"
	"github.com/tanpawarit/chative-gateway/agent/tool"
	alertx "github.com/tanpawarit/chative-gateway/pkg/alert"
	auditx "github.com/tanpawarit/chative-gateway/pkg/audit"
	configx "github.com/tanpawarit/chative-gateway/pkg/config"
	_ "github.com/tanpawarit/chative-gateway/pkg/logger/autoload"
	serverx "github.com/tanpawarit/chative-gateway/pkg/server"
	"golang.org/x/sync/errgroup"
)

type AppConfig struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	DataFile        string        `envconfig:"DATA_FILE" default:"data/products.json"`
	EntityName      string        `envconfig:"ENTITY_NAME" default:"products"`
	SeedData        bool          `envconfig:"SEED_DATA" default:"true"`
	StreamChunkSize int           `envconfig:"STREAM_CHUNK_SIZE" default:"24"`
	ToolsManifest   string        `envconfig:"TOOLS_MANIFEST"`
	RemoteTimeout   time.Duration `envconfig:"REMOTE_TIMEOUT" default:"25s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("FALLBACK")
	alertCfg := configx.MustNew[alertx.Config]("SENTRY")
	auditCfg := configx.MustNew[auditx.Config]("AUDIT")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *appCfg, *llmCfg, *alertCfg, *auditCfg); err != nil {
		log.Fatal().Err(err).Msg("gateway stopped")
	}
}

func run(ctx context.Context, appCfg AppConfig, llmCfg llmx.Config, alertCfg alertx.Config, auditCfg auditx.Config) error {
	storeOpts := []storex.Option{storex.WithEntityName(appCfg.EntityName)}
	if appCfg.SeedData {
		storeOpts = append(storeOpts, storex.WithSeed(storex.DefaultSeed()))
	}
	st, err := storex.Open(appCfg.DataFile, storeOpts...)
	if err != nil {
		return err
	}

	manifest, err := remote.LoadManifest(appCfg.ToolsManifest)
	if err != nil {
		return err
	}
	caller, err := remote.NewCaller(manifest, &http.Client{})
	if err != nil {
		return err
	}

	registry, err := tool.NewRegistry(
		tool.ProductTools(st),
		remote.Tools(manifest, caller, appCfg.RemoteTimeout),
	)
	if err != nil {
		return err
	}

	alerter, err := alertx.New(alertCfg)
	if err != nil {
		return err
	}
	defer alerter.Flush()

	gatewayOpts := []tool.GatewayOption{
		tool.WithRemoteTimeout(appCfg.RemoteTimeout),
		tool.WithAlerter(alerter),
	}
	journal, err := auditx.Open(ctx, auditCfg)
	if err != nil {
		return err
	}
	if journal != nil {
		recorder := auditx.NewRecorder(journal, auditCfg)
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Warn().Err(err).Msg("close audit journal")
			}
		}()
		gatewayOpts = append(gatewayOpts, tool.WithAuditSink(recorder))
	}

	gateway, err := tool.NewGateway(registry, gatewayOpts...)
	if err != nil {
		return err
	}

	resolver := intent.NewResolver(registry)
	responder, err := fallback.NewFromConfig(ctx, llmCfg, resolver.Examples())
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(resolver, gateway, responder, orchestrator.Config{ChunkSize: appCfg.StreamChunkSize})
	if err != nil {
		return err
	}

	handler, err := serverx.New(orch, gateway, serverx.WithAllowedOrigins(appCfg.AllowedOrigins...))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		remote.Probe(gctx, manifest, caller)
		return nil
	})
	g.Go(func() error {
		log.Info().
			Str("addr", appCfg.HTTPAddr).
			Str("data_file", st.Path()).
			Int("tools", len(registry.Definitions())).
			Bool("llm_fallback", llmCfg.Enabled()).
			Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
