package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/detector"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/dispatch"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/gemini"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/harvest"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/logging"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/model"
	"github.com/srbarrios/jenkins-flaky-tests-detector/internal/serve"
)

const version = "1.0.0"

const defaultConfigPath = "/etc/monitoring/flaky_config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runDetector(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "version":
		fmt.Printf("flakydetector %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runDetector(args []string) {
	configPath := defaultConfigPath
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: flakydetector run [--config <path>]\n", args[i])
			os.Exit(1)
		}
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	harvester, err := harvest.New(cfg.Prometheus.URL, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create harvester: %v\n", err)
		os.Exit(1)
	}

	var classifier dispatch.BatchClassifier
	if cfg.Gemini.APIKey != "" {
		c, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create gemini classifier: %v\n", err)
			os.Exit(1)
		}
		classifier = c
	} else {
		logger.Warnf("main", "no gemini api_key configured; ambiguous tests will be reported UNKNOWN")
	}

	dispatcher := dispatch.New(
		classifier,
		cfg.Analysis.BatchSize,
		time.Duration(cfg.Analysis.BatchDelaySec)*time.Second,
		logger,
	)

	det := detector.New(cfg, harvester, dispatcher, logger)
	if err := det.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		os.Exit(1)
	}
}

func runServe(args []string) {
	configPath := defaultConfigPath
	dirOverride := ""
	portOverride := 0

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		case "--dir":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--dir requires a value")
				os.Exit(1)
			}
			i++
			dirOverride = args[i]
		case "--port":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--port requires a value")
				os.Exit(1)
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "invalid --port value: %s\n", args[i])
				os.Exit(1)
			}
			portOverride = n
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: flakydetector serve [--config <path>] [--dir <path>] [--port <n>]\n", args[i])
			os.Exit(1)
		}
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	dir := cfg.Output.Directory
	if dirOverride != "" {
		dir = dirOverride
	}
	port := cfg.Server.Port
	if portOverride > 0 {
		port = portOverride
	}

	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.Logging.Level))

	srv := serve.New(dir, port, logger)
	if err := srv.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `flakydetector %s - CI flaky-test pattern classifier

Usage: flakydetector <command> [options]

Commands:
  run [--config <path>]                       Run one classification pass and write the report
  serve [--config <path>] [--dir] [--port]    Serve the report directory over HTTP
  version                                     Show version
  help                                        Show this help

`, version)
}
