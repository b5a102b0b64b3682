package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/imaneimrh/relaychat/config"
	"github.com/imaneimrh/relaychat/room"
	"github.com/imaneimrh/relaychat/server"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "broker settings file")
	addr := flag.String("addr", "", "TCP listen address, overrides the settings file")
	wsAddr := flag.String("ws", "", "WebSocket listen address, overrides the settings file")
	advertise := flag.Bool("advertise", false, "publish the broker over mDNS")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *wsAddr != "" {
		cfg.WebSocketAddr = *wsAddr
	}
	cfg.Advertise = cfg.Advertise || *advertise

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chatServer := server.NewServer(cfg, room.New())
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Println("Starting relay chat broker...")
		return chatServer.Start(ctx)
	})

	if cfg.WebSocketAddr != "" {
		httpServer := &http.Server{Addr: cfg.WebSocketAddr, Handler: chatServer.WebSocketHandler()}
		g.Go(func() error {
			log.Printf("WebSocket ingress on %s%s", cfg.WebSocketAddr, server.WebSocketPath)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return httpServer.Close()
		})
	}

	if cfg.Advertise {
		g.Go(func() error {
			_, portStr, err := net.SplitHostPort(cfg.ListenAddr)
			if err != nil {
				return err
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return err
			}
			if err := server.Advertise(ctx, cfg.ServiceName, port); err != nil {
				// Chat works without discovery.
				log.Printf("mDNS advertisement disabled: %v", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Println("Server stopped")
}
