package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"shorewatch/internal/config"
	messaging "shorewatch/internal/pkg/messaging/domain"
	"shorewatch/internal/pkg/session"
	"shorewatch/internal/pkg/session/apiclient"
	"shorewatch/pkg/logger"
)

// chat is a terminal client for one conversation. It drives a session
// reconciler end to end: live websocket delivery with automatic fallback to
// polling, optimistic sends, and read receipts on exit.
func main() {
	_ = godotenv.Load()

	var (
		baseURL   = flag.String("api", envOr("CHAT_API_URL", "http://localhost:8080"), "api base url")
		token     = flag.String("token", os.Getenv("CHAT_TOKEN"), "bearer token")
		selfID    = flag.Int64("self", 0, "own user id (must match the token subject)")
		peerID    = flag.Int64("peer", 0, "peer user id to talk to")
		debugMode = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	if *token == "" || *selfID <= 0 || *peerID <= 0 {
		log.Fatal("usage: chat -token <jwt> -self <id> -peer <id> [-api url]")
	}

	zl, err := logger.New(*debugMode, map[bool]string{true: "debug", false: "error"}[*debugMode])
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	sessionCfg := session.Config{}
	if v, err := config.Load("config"); err == nil {
		if cfg, err := config.Parse(v); err == nil {
			sessionCfg.Grace = cfg.Messaging.SubscribeWait
			sessionCfg.PollInterval = cfg.Messaging.PollInterval
			sessionCfg.PageLimit = cfg.Messaging.PageSize
		}
	}

	client := apiclient.New(*baseURL, *token)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conversationID, _, err := client.OpenConversation(ctx, *peerID)
	if err != nil {
		log.Fatalf("open conversation: %v", err)
	}
	fmt.Printf("conversation %d with user %d\n", conversationID, *peerID)

	rec := session.NewReconciler(conversationID, *selfID, client, client, client, sessionCfg, zl)
	rec.OnChange = func(state session.State, entries []session.Entry) {
		render(*selfID, state, entries)
	}

	go rec.Run(ctx)
	defer rec.Close()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("type a message and press enter; /quit to exit")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		if _, err := rec.Send(ctx, line, messaging.MessageTypeText); err != nil {
			fmt.Printf("!! send failed: %v (your text: %q)\n", err, line)
		}
	}

	if err := client.MarkRead(context.Background(), conversationID); err != nil {
		zl.Sugar().Warnf("mark read: %v", err)
	}
}

var (
	renderMu     sync.Mutex
	lastRendered int
)

// render prints only new tail entries; a state change reprints the banner.
func render(selfID int64, state session.State, entries []session.Entry) {
	renderMu.Lock()
	defer renderMu.Unlock()
	if len(entries) < lastRendered {
		lastRendered = 0
	}
	for _, e := range entries[lastRendered:] {
		who := "peer"
		if e.Message.SenderID == selfID {
			who = "me"
		}
		suffix := ""
		if e.Pending {
			suffix = " (sending...)"
		}
		fmt.Printf("[%s] %s: %s%s\n",
			e.Message.CreatedAt.Local().Format("15:04:05"), who, e.Message.Content, suffix)
	}
	lastRendered = len(entries)
	if state == session.StateDegraded {
		fmt.Println("-- connection degraded, polling for updates --")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
