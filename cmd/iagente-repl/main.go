// Command iagente-repl runs the sales assistant in the terminal, keeping
// the conversation in memory.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/config"
	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/extractor"
	"github.com/boddenberg/iagente-vida-go/internal/infra/llm"
	"github.com/boddenberg/iagente-vida-go/internal/infra/observability"
	"github.com/boddenberg/iagente-vida-go/internal/infra/resilience"
	"github.com/boddenberg/iagente-vida-go/internal/infra/statestore"
	"github.com/boddenberg/iagente-vida-go/internal/instructions"
	"github.com/boddenberg/iagente-vida-go/internal/quoting"
	"github.com/boddenberg/iagente-vida-go/internal/responder"
	"github.com/boddenberg/iagente-vida-go/internal/router"
	"github.com/boddenberg/iagente-vida-go/internal/service"

	"go.uber.org/zap"
)

const replUser = "usuario_real"

var exitWords = map[string]bool{"salir": true, "exit": true, "quit": true}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "reading .env: %v\n", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	// Only warnings are logged so the dialogue stays readable.
	logger := observability.NewLogger("warn")
	defer logger.Sync()

	conv, cleanup, err := buildConversation(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	run(context.Background(), conv, os.Stdin, os.Stdout)
}

func buildConversation(cfg *config.Config, logger *zap.Logger) (*service.Conversation, func(), error) {
	metrics := observability.NewMetrics()
	store := statestore.NewMemory(cfg.StateTTL, metrics)

	client, err := llm.New(&http.Client{Timeout: cfg.HTTPTimeout}, llm.Options{
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Resilience: resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		},
	}, metrics, logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	prompts := instructions.NewLoader(cfg.InstructionsDir, cfg.InstructionsTTL, logger)
	env := &responder.Env{
		LLM:       client,
		Prompts:   prompts,
		Extractor: extractor.New(client, metrics, logger),
		Engine:    quoting.NewEngine(),
		Metrics:   metrics,
		Logger:    logger,
	}
	rt := router.New(router.NewClassifier(client, metrics, logger), client, prompts, metrics, logger)

	cleanup := func() {
		prompts.Close()
		store.Close()
	}
	return service.NewConversation(store, rt, env, nil, metrics, logger), cleanup, nil
}

func run(ctx context.Context, conv *service.Conversation, in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "🤖 ¡Hola! Soy iAgente_Vida, tu asistente para vender seguros de vida.")
	fmt.Fprintln(out, "📝 Cuéntame sobre tu cliente y te ayudo a crear la propuesta perfecta. Escribe 'salir' para terminar")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "👤 Tú: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		line := strings.TrimSpace(scanner.Text())

		if exitWords[strings.ToLower(line)] {
			fmt.Fprintln(out, "🤖 ¡Gracias por tu tiempo! Que tengas un excelente día.")
			return
		}
		if line == "" {
			fmt.Fprintln(out, "🤖 No escuché nada. ¿Podrías repetir?")
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		res, err := conv.ProcessMessage(turnCtx, replUser, line, service.InboundMeta{Channel: "repl"})
		cancel()
		if err != nil {
			fmt.Fprintf(out, "❌ Error: %v\n", err)
			fmt.Fprintln(out, "🤖 Disculpa, hubo un problema técnico. ¿Podrías repetir?")
			fmt.Fprintln(out)
			continue
		}

		fmt.Fprintf(out, "🤖 iAgente_Vida: %s\n", res.Reply)
		if state, err := conv.GetState(ctx, replUser); err == nil && state.Profile.Name != "" {
			fmt.Fprintf(out, "📊 Progreso: %d/4 datos principales\n", mainFields(state.Profile))
		}
		if len(res.Quotes) > 0 {
			fmt.Fprintf(out, "💰 %d cotizaciones disponibles\n", len(res.Quotes))
		}
		fmt.Fprintln(out)
	}
}

// mainFields counts name, age, dependents and monthly income.
func mainFields(p domain.ClientProfile) int {
	n := 0
	if p.Name != "" {
		n++
	}
	if p.Age != nil {
		n++
	}
	if p.Dependents != nil {
		n++
	}
	if p.MonthlyIncome != nil {
		n++
	}
	return n
}
