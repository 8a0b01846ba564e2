package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wsreplay/config"
	"wsreplay/logger"
	"wsreplay/pkg/replayclient"

	"go.uber.org/zap"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "replay server websocket url")
	symbols := flag.String("symbols", "", "comma separated symbols, e.g. NSE:SBIN-EQ,NSE:TCS-EQ")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	log, err := logger.New(config.LogConfig{Level: *level, Format: "console", Environment: "dev"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	// symbols come from -symbols or the positional arguments
	var syms []string
	for _, s := range append(strings.Split(*symbols, ","), flag.Args()...) {
		if s = strings.TrimSpace(s); s != "" {
			syms = append(syms, s)
		}
	}
	if len(syms) == 0 {
		fmt.Fprintln(os.Stderr, "usage: replayctl [-url ws://host:8080/ws] SYMBOL [SYMBOL...]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := replayclient.NewClient(*url, log)
	client.SetMessageHandler(func(s replayclient.Sample) {
		fmt.Printf("%s\t%s\t%.2f\n", time.Unix(s.Timestamp, 0).UTC().Format(time.RFC3339), s.Symbol, s.LTP)
	})

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(dialCtx, syms); err != nil {
		log.Fatal("connect failed", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()
	if err := client.Listen(); err != nil && ctx.Err() == nil {
		log.Fatal("stream failed", zap.Error(err))
	}
}
