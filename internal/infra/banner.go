package infra

import (
	"fmt"
	"strings"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
)

// PrintBanner displays the startup banner with mode-specific warnings.
func PrintBanner(cfg *Config) {
	mode := strings.ToUpper(cfg.Trading.Mode)

	color := colorCyan
	modeDesc := "INTERNAL SIMULATION"
	if mode == "LIVE" {
		color = colorRed
		modeDesc = "REAL MONEY TRADING"
	}

	fmt.Println()
	fmt.Printf("%s###########################################################%s\n", color, colorReset)
	fmt.Printf("%s#  %s v%s%s\n", color, cfg.App.Name, cfg.App.Version, colorReset)
	fmt.Printf("%s#  MODE: %s (%s)%s\n", color, mode, modeDesc, colorReset)
	fmt.Printf("%s#  Symbols: %s%s\n", color, strings.Join(cfg.Trading.Symbols, ", "), colorReset)
	fmt.Printf("%s###########################################################%s\n", color, colorReset)
	if mode == "LIVE" {
		fmt.Printf("%s⚠️  LIVE MODE: orders will reach the exchange.%s\n", colorYellow, colorReset)
	}
	fmt.Println()
}
