// Package setup hosts the terminal wizard that writes config.yaml.
package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/refuel/config"
	"github.com/vadiminshakov/refuel/internal/entity"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the configuration wizard and writes config.yaml.
func RunTUI() error {
	var (
		rpcURL       string
		senderAddr   string
		registryAddr string
		intervalStr  string
		apiURL       string
		model        string
		confirm      bool
	)

	// defaults
	rpcURL = "https://rpc-testnet.supra.com"
	intervalStr = "30s"
	apiURL = config.DefaultLLMAPIURL
	model = config.DefaultModel

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("REFUEL CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Auto top-up automations, configured once.\n"))

	fmt.Println(stepStyle.Render("STEP 1: NETWORK"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Supra RPC endpoint").
				Value(&rpcURL),
			huh.NewInput().
				Title("Sender account address").
				Description("0x followed by 64 hex characters; its key comes from SUPRA_PRIVATE_KEY").
				Validate(func(s string) error { return entity.ValidateAddress(s) }).
				Value(&senderAddr),
			huh.NewInput().
				Title("Automation registry address").
				Description("Deployed auto_topup module account").
				Validate(func(s string) error { return entity.ValidateAddress(s) }).
				Value(&registryAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("REFUEL CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: MODEL"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Model API base URL").
				Value(&apiURL),
			huh.NewInput().
				Title("Model").
				Description("Any chat model with tool calling; key comes from LLM_API_KEY").
				Value(&model),
			huh.NewInput().
				Title("Monitor interval").
				Description("How often balances are re-checked (e.g. 30s, 2m)").
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}).
				Value(&intervalStr),
		),
	).Run()
	if err != nil {
		return err
	}

	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return err
	}

	conf := config.Config{
		RPCURL:             rpcURL,
		SenderAddress:      senderAddr,
		AutomationRegistry: registryAddr,
		MonitorInterval:    interval,
		LLM: config.LLM{
			APIURL: apiURL,
			Model:  model,
		},
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("REFUEL CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: CONFIRM"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Write %s?", config.DefaultConfigPath)).
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("nothing written"))
		return nil
	}

	raw, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(config.DefaultConfigPath, raw, 0o600); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(config.DefaultConfigPath + " written"))
	return nil
}
