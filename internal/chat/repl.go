// Package chat is the process boundary: a text-in/text-out loop. A few
// literal commands bypass the model and hit the core directly; everything
// else goes through the agent.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/refuel/internal/events"
	"github.com/vadiminshakov/refuel/internal/registry"
	"go.uber.org/zap"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}).
			Bold(true)

	replyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#6C6C6C"})
)

const helpText = `commands:
  help         show this help
  status       registry and monitor summary
  strategies   list active strategies
  exit, quit   leave

anything else is sent to the assistant, e.g.
  create a top-up strategy called Trading Wallet for 0x<64 hex chars>`

// conversationalAgent is the model-backed boundary the REPL forwards to.
type conversationalAgent interface {
	Chat(ctx context.Context, userText string) (string, error)
}

// Repl runs the interactive loop.
type Repl struct {
	agent  conversationalAgent
	store  *registry.Registry
	bus    *events.Bus
	logger *zap.Logger
	in     io.Reader
	out    io.Writer
}

func New(agent conversationalAgent, store *registry.Registry, bus *events.Bus, logger *zap.Logger, in io.Reader, out io.Writer) *Repl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repl{agent: agent, store: store, bus: bus, logger: logger, in: in, out: out}
}

// Run reads messages until exit or EOF. Strictly sequential: the next line
// is not read until the current dispatch completed. Returns with no state
// persisted anywhere.
func (r *Repl) Run(ctx context.Context) error {
	stopNotifier := r.startNotifier()
	defer stopNotifier()

	fmt.Fprintln(r.out, dimStyle.Render("refuel ready, type 'help' for commands"))

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, promptStyle.Render("you> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(r.out, dimStyle.Render("bye"))
			return nil
		case "help":
			fmt.Fprintln(r.out, helpText)
		case "status":
			r.printStatus()
		case "strategies":
			r.printStrategies()
		default:
			reply, err := r.agent.Chat(ctx, line)
			if err != nil {
				r.logger.Error("chat dispatch failed", zap.Error(err))
				fmt.Fprintln(r.out, alertStyle.Render("something went wrong talking to the model, try again"))
				continue
			}
			fmt.Fprintln(r.out, replyStyle.Render(reply))
		}
	}
}

func (r *Repl) printStatus() {
	active := len(r.store.ListActive())
	fmt.Fprintf(r.out, "strategies: %d created, %d active, %d total in registry\n",
		r.store.Created(), active, r.store.Len())
}

func (r *Repl) printStrategies() {
	active := r.store.ListActive()
	if len(active) == 0 {
		fmt.Fprintln(r.out, dimStyle.Render("no active strategies"))
		return
	}
	for _, s := range active {
		checked := "never"
		if !s.LastChecked.IsZero() {
			checked = s.LastChecked.Format("15:04:05")
		}
		fmt.Fprintf(r.out, "%s  %s  %s  mode=%s  checked=%s\n",
			s.ID, s.Name, s.TargetAddress, s.Mode, checked)
	}
}

// startNotifier prints monitor notifications between prompts so low-balance
// alerts surface without the user asking.
func (r *Repl) startNotifier() func() {
	ch := r.bus.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range ch {
			switch event.Type {
			case events.TypeLowBalanceAlert, events.TypeStrategyError, events.TypeTopupObserved:
				fmt.Fprintln(r.out, alertStyle.Render(
					fmt.Sprintf("[%s] %s %s", event.Type, event.StrategyID, event.Message)))
			}
		}
	}()
	return func() {
		r.bus.Unsubscribe(ch)
		<-done
	}
}
