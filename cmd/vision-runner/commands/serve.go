package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ST2Projects/vision-runner/pkg/hardware"
	"github.com/ST2Projects/vision-runner/pkg/inference"
	"github.com/ST2Projects/vision-runner/pkg/inference/ollama"
	"github.com/ST2Projects/vision-runner/pkg/inference/openai"
	"github.com/ST2Projects/vision-runner/pkg/logging"
	"github.com/ST2Projects/vision-runner/pkg/metrics"
	"github.com/ST2Projects/vision-runner/pkg/modelinfo"
	"github.com/ST2Projects/vision-runner/pkg/server"
	"github.com/ST2Projects/vision-runner/pkg/vision"
	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const (
	// probeTimeout bounds each startup engine probe.
	probeTimeout = 15 * time.Second
	// shutdownTimeout bounds the drain of in-flight requests on shutdown.
	shutdownTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the vision-runner daemon",
		Long:  `Probe the configured inference engine and serve the image analysis API.`,
		RunE:  runServe,
	}

	flags := c.Flags()
	flags.String("host", "0.0.0.0", "address to listen on")
	flags.Int("port", 7860, "port to listen on")
	flags.String("engine", openai.Name, "inference engine to bind (openai, ollama)")
	flags.String("openai-url", "http://localhost:8000/v1", "base URL of the OpenAI-compatible engine")
	flags.String("openai-api-key", "", "API key for the OpenAI-compatible engine")
	flags.String("ollama-url", "http://localhost:11434", "base URL of the Ollama engine")
	flags.String("model", "Qwen/Qwen2.5-VL-7B-Instruct", "model the engine must serve")
	flags.String("model-file", "", "GGUF file to read the model card from")
	flags.String("max-upload", "25MiB", "maximum request body size for image uploads")
	flags.StringSlice("allowed-origins", nil, "origins allowed to make cross-origin requests")

	mustBindPFlag("host", flags.Lookup("host"))
	mustBindPFlag("port", flags.Lookup("port"))
	mustBindPFlag("engine", flags.Lookup("engine"))
	mustBindPFlag("openai.url", flags.Lookup("openai-url"))
	mustBindPFlag("openai.api_key", flags.Lookup("openai-api-key"))
	mustBindPFlag("ollama.url", flags.Lookup("ollama-url"))
	mustBindPFlag("model", flags.Lookup("model"))
	mustBindPFlag("model_file", flags.Lookup("model-file"))
	mustBindPFlag("max_upload", flags.Lookup("max-upload"))
	mustBindPFlag("allowed_origins", flags.Lookup("allowed-origins"))

	return c
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logging.SetLevel(viper.GetString("log.level"))
	logging.SetJSONFormat(viper.GetBool("log.json"))
	log := logging.NewLogger("serve")

	hardware.LogDiagnostics(logging.NewLogger("hardware"))

	maxUpload, err := units.RAMInBytes(viper.GetString("max_upload"))
	if err != nil {
		return fmt.Errorf("invalid max-upload value %q: %w", viper.GetString("max_upload"), err)
	}

	engine, err := bindEngine(ctx, log)
	if err != nil {
		metrics.SetEngineUp(false)
		return err
	}
	metrics.SetEngineUp(true)
	log.Infof("Engine %s: %s", engine.Name(), engine.Status())
	log.Infoln("Model loaded successfully!")

	analyzer := vision.NewAnalyzer(logging.NewLogger("vision"), engine)
	srv := server.New(logging.NewLogger("server"), analyzer, resolveModelInfo(log), server.Config{
		AllowedOrigins: viper.GetStringSlice("allowed_origins"),
		MaxUploadBytes: maxUpload,
	})

	addr := net.JoinHostPort(viper.GetString("host"), strconv.Itoa(viper.GetInt("port")))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Infof("Listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Infoln("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// bindEngine probes the preferred engine and falls back to the alternate one
// when the preferred engine cannot be reached or lacks the model.
func bindEngine(ctx context.Context, log logging.Logger) (inference.Engine, error) {
	order, err := engineOrder(viper.GetString("engine"))
	if err != nil {
		return nil, err
	}

	var probeErrs []error
	for _, name := range order {
		engine := buildEngine(name)
		probeCtx, probeCancel := context.WithTimeout(ctx, probeTimeout)
		err := engine.Probe(probeCtx)
		probeCancel()
		if err == nil {
			return engine, nil
		}
		log.Warnf("Engine %s probe failed: %v", name, err)
		probeErrs = append(probeErrs, fmt.Errorf("%s: %w", name, err))
	}
	return nil, fmt.Errorf("no inference engine available: %w", errors.Join(probeErrs...))
}

// engineOrder returns the probe order for the preferred engine name.
func engineOrder(preferred string) ([]string, error) {
	switch preferred {
	case openai.Name:
		return []string{openai.Name, ollama.Name}, nil
	case ollama.Name:
		return []string{ollama.Name, openai.Name}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (expected %q or %q)", preferred, openai.Name, ollama.Name)
	}
}

func buildEngine(name string) inference.Engine {
	if name == ollama.Name {
		return ollama.New(logging.NewLogger(ollama.Name), &ollama.Config{
			BaseURL: viper.GetString("ollama.url"),
			Model:   viper.GetString("model"),
		})
	}
	return openai.New(logging.NewLogger(openai.Name), &openai.Config{
		BaseURL: viper.GetString("openai.url"),
		APIKey:  viper.GetString("openai.api_key"),
		Model:   viper.GetString("model"),
	})
}

// resolveModelInfo builds the model card shown on the form and in status
// responses, preferring GGUF metadata when a model file is configured.
func resolveModelInfo(log logging.Logger) *modelinfo.Info {
	model := viper.GetString("model")
	if path := viper.GetString("model_file"); path != "" {
		info, err := modelinfo.FromGGUF(path)
		if err != nil {
			log.Warnf("Could not read model card from %s: %v", path, err)
		} else {
			if info.Name == "" {
				info.Name = model
			}
			return info
		}
	}
	return modelinfo.Fallback(model)
}
