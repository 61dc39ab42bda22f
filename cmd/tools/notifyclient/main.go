package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/wsnotify/internal/config"
	"github.com/zhouzirui/wsnotify/internal/service/notify"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	host := flag.String("host", cfg.Client.Host, "relay host, e.g. localhost:8080")
	secure := flag.Bool("secure", cfg.Client.Secure, "use wss:// instead of ws://")
	broadcast := flag.Bool("broadcast", false, "send one broadcast after connecting")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	options := notify.DefaultOptions()
	options.HandshakeTimeout = cfg.Client.HandshakeTimeout

	client := notify.NewHandler(notify.NewWriterLog(os.Stdout), nil, options)
	if err := client.Connect(ctx, notify.EndpointURL(*host, *secure)); err != nil {
		os.Exit(1)
	}

	if *broadcast {
		if err := client.SendBroadcast(); err != nil {
			log.Printf("broadcast failed: %v", err)
		}
	}

	go readCommands(client)

	if err := client.Run(ctx); err != nil {
		log.Fatalf("client error: %v", err)
	}
}

// readCommands sends a broadcast for every "broadcast" (or "b") line on stdin.
func readCommands(client *notify.Handler) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "broadcast", "b":
			if err := client.SendBroadcast(); err != nil {
				log.Printf("broadcast failed: %v", err)
			}
		case "":
		default:
			log.Println(`unknown command, type "broadcast" to send`)
		}
	}
}
