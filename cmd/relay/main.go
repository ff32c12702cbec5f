package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ET2780/buti-buzz-hub/internal/config"
	"github.com/ET2780/buti-buzz-hub/internal/relay"
	"github.com/ET2780/buti-buzz-hub/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	allowedOrigins stringSliceFlag
)

func main() {
	// .env is optional; real env vars win either way
	godotenv.Load()

	defaultAddr := net.JoinHostPort("", config.DefaultRelayPort)
	if env := os.Getenv("BUZZ_RELAY_ADDR"); env != "" {
		defaultAddr = env
	}
	if env := os.Getenv("BUZZ_ALLOWED_ORIGINS"); env != "" {
		_ = allowedOrigins.Set(env)
	}

	flag.StringVar(&addr, "addr", defaultAddr, "relay listen address")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS (empty allows all)")
	flag.Parse()

	logger := log.New(os.Stderr, "[buzz-relay] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)

	relayServer := relay.NewRelayServer(mux, logger, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go relayServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- relayServer.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("relay:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := relayServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("relay shutdown:", err)
	}

	logger.Println("shutdown complete")
}
