package commands

import (
	"fmt"
	"io"

	"github.com/MrWong99/verbi/internal/config"
	"github.com/MrWong99/verbi/internal/dispatch"
)

func printStartupSummary(w io.Writer, cfg *config.Config, d *dispatch.Dispatcher) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║          verbi: startup summary       ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printProvider(w, "Transcription", string(d.Transcriber.Kind()), cfg.Providers.Transcription.Model)
	printProvider(w, "Response", string(d.Responder.Kind()), cfg.Providers.Response.Model)
	printProvider(w, "Speech", string(d.Synthesizer.Kind()), cfg.Providers.Speech.Model)
	printRow(w, "Output file", d.Synthesizer.OutputFile())
	printRow(w, "Exit words", fmt.Sprint(cfg.Assistant.ExitWords))
	if cfg.Server.ListenAddr != "" {
		printRow(w, "Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printProvider(w io.Writer, role, name, model string) {
	value := name
	if model != "" {
		value = name + " / " + model
	}
	printRow(w, role, value)
}

func printRow(w io.Writer, label, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-14s : %-19s ║\n", label, value)
}
