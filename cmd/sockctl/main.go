package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/sockctl/internal/config"
	"github.com/danmuck/sockctl/internal/observability"
	"github.com/danmuck/sockctl/internal/socket"
	"github.com/danmuck/sockctl/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "path to a sockctl client toml config")
	endpoint := flag.String("endpoint", "", "ws:// or wss:// endpoint (overrides config)")
	name := flag.String("name", "sockctl", "client name used in logs and metrics")
	flag.Parse()

	observability.InitLogger("sockctl")

	cfg, err := resolveConfig(*configPath, *endpoint, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	client, err := socket.New(cfg, ws.NewDialer(cfg.Session))
	if err != nil {
		log.Fatal().Err(err).Msg("client")
	}

	// Incoming payloads go to stdout untouched.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for item := range client.Incoming() {
			fmt.Println(string(item.Payload))
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info().Msg("signal received, stopping")
		client.Stop()
	}()

	// Each stdin line is one outbound payload.
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		receipt, err := client.Submit(context.Background(), []byte(scanner.Text()))
		if err != nil {
			log.Warn().Err(err).Msg("submit")
			break
		}
		go func() {
			<-receipt.Done()
			if receipt.Outcome() == socket.OutcomeCancelled {
				log.Warn().Msg("payload cancelled")
			}
		}()
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("stdin")
	}

	client.Stop()
	<-drained
}

func resolveConfig(path, endpoint, name string) (socket.Config, error) {
	if path != "" {
		fileCfg, err := config.LoadClientConfig(path)
		if err != nil {
			return socket.Config{}, err
		}
		cfg, err := fileCfg.ToSocketConfig()
		if err != nil {
			return socket.Config{}, err
		}
		if endpoint != "" {
			cfg.Endpoint = endpoint
		}
		return cfg, nil
	}
	cfg := socket.DefaultClientConfig()
	cfg.Name = name
	cfg.Endpoint = endpoint
	if cfg.Endpoint == "" {
		return socket.Config{}, fmt.Errorf("sockctl: -endpoint or -config required")
	}
	return cfg, nil
}
