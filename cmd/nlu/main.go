package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/liuscraft/orion-therapy/internal/config"
	"github.com/liuscraft/orion-therapy/internal/logging"
	"github.com/liuscraft/orion-therapy/internal/nlu"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	backend := flag.String("backend", "", "nlu backend override (wit, llm, keyword)")
	timeout := flag.Duration("timeout", 15*time.Second, "request timeout")
	flag.Parse()

	_ = godotenv.Load()

	appConfig, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		appConfig.NLU.Backend = *backend
	}
	if err := appConfig.ValidateKeys(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(logging.Config{Level: appConfig.Logging.Level, Format: appConfig.Logging.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, "usage: nlu [-config path] [-backend name] <utterance>")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	interp, err := nlu.New(ctx, appConfig.NLU, appConfig.DialogueConfig().CalibrationPhrases)
	if err != nil {
		logging.Fatalf("create interpreter: %v", err)
	}

	logging.Infof("backend=%s input=%q", interp.Name(), text)
	result, err := interp.Interpret(ctx, text)
	if err != nil {
		logging.Fatalf("interpret: %v", err)
	}

	band := appConfig.DialogueConfig().Classify(result.Confidence)
	out, _ := json.MarshalIndent(struct {
		Backend string `json:"backend"`
		Band    string `json:"band"`
		Result  any    `json:"result"`
	}{interp.Name(), band.String(), result}, "", "  ")
	fmt.Println(string(out))
}
