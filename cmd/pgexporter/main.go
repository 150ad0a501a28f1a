package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/lesovsky/pgexporter/internal/config"
	"github.com/lesovsky/pgexporter/internal/log"
	"github.com/lesovsky/pgexporter/internal/pgexporter"
)

var gitCommit, gitBranch string

func main() {
	var (
		showVersion = kingpin.Flag("version", "show version and exit").Default().Bool()
		logLevel    = kingpin.Flag("log-level", "set log level: trace, debug, info, warn, error").Default("info").Envar("LOG_LEVEL").String()
		configFile  = kingpin.Flag("config", "path to config file").Default("/etc/pgexporter/pgexporter.yaml").Envar("CONFIG_FILE").String()
	)
	kingpin.Parse()

	log.SetLevel(*logLevel)
	log.SetApplication("pgexporter")

	if *showVersion {
		fmt.Printf("pgexporter %s-%s\n", gitCommit, gitBranch)
		os.Exit(0)
	}

	pgexporter.BuildVersion = fmt.Sprintf("%s-%s", gitCommit, gitBranch)

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Errorf("cannot start: unable to load config: %s", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		log.Errorf("cannot start: invalid config: %s", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	doExit := make(chan error, 2)
	go func() {
		doExit <- listenSignals()
		cancel()
	}()

	go func() {
		doExit <- pgexporter.Start(ctx, cfg)
		cancel()
	}()

	log.Warnf("shutdown: %s", <-doExit)
}

func listenSignals() error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	return fmt.Errorf("got %s", <-c)
}
