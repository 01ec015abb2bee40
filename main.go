// Command refuel is a conversational agent that manages auto top-up
// automations on a Supra network: describe what you want in plain language
// and it creates, cancels, lists or checks fixed-parameter top-up strategies
// for you, while a background monitor watches every target balance.
//
// Usage:
//
//	refuel setup             interactive configuration wizard
//	refuel --config conf.yml interactive chat session
//
// Required environment variables: SUPRA_PRIVATE_KEY, LLM_API_KEY.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/refuel/config"
	"github.com/vadiminshakov/refuel/internal/chat"
	"github.com/vadiminshakov/refuel/internal/clients"
	"github.com/vadiminshakov/refuel/internal/events"
	"github.com/vadiminshakov/refuel/internal/registry"
	"github.com/vadiminshakov/refuel/internal/services/agent"
	"github.com/vadiminshakov/refuel/internal/services/gateway"
	"github.com/vadiminshakov/refuel/internal/services/monitor"
	"github.com/vadiminshakov/refuel/internal/services/oracle"
	"github.com/vadiminshakov/refuel/internal/setup"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	conf, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	chainClient, err := clients.NewSupraClient(conf.RPCURL, conf.AutomationRegistry, conf.SenderAddress, conf.SenderKey)
	if err != nil {
		logger.Fatal("failed to create chain client", zap.Error(err))
	}

	bus := events.NewBus(256)
	store := registry.New()
	balances := oracle.New(chainClient, logger)
	gw := gateway.New(chainClient, balances, store, bus, logger)

	openaiClient := openai.NewClient(
		option.WithAPIKey(conf.LLM.APIKey),
		option.WithBaseURL(conf.LLM.APIURL),
	)
	assistant := agent.New(&openaiClient, conf.LLM.Model, gw, store, balances, logger)

	loop := monitor.New(store, balances, bus, conf.MonitorInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop.Start(ctx)
	defer loop.Stop()

	repl := chat.New(assistant, store, bus, logger, os.Stdin, os.Stdout)
	if err := repl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("chat loop failed", zap.Error(err))
	}
}
