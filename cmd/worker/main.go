package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"verimail"
	"verimail/internal/queue"
	"verimail/internal/store"
	"verimail/internal/worker"
)

func main() {
	log.Println("🚀 Starting Verimail worker...")

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	q, err := queue.Dial(redisAddr)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal("❌ DB_URL environment variable is required")
	}
	st, err := store.Open(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	defer st.Close()
	log.Println("✅ Connected to PostgreSQL")

	verifier := verimail.New().WithRedis(q.Redis())
	if os.Getenv("DEBUG") == "true" {
		verifier.WithDebug()
	}
	if proxyListRaw := os.Getenv("PROXY_LIST"); proxyListRaw != "" {
		proxies := strings.Split(proxyListRaw, ",")
		limit, _ := strconv.Atoi(os.Getenv("PROXY_CONCURRENCY"))
		if _, err := verifier.WithProxies(proxies, limit, 30*time.Second); err != nil {
			log.Fatalf("❌ Failed to initialize proxy rotation: %v", err)
		}
		log.Printf("🛡️  Proxy rotation enabled (%d proxies)", len(proxies))
	}

	// Workers do the expensive part; SMTP is on unless disabled.
	opts := verimail.Params{
		VerifySMTP:                  os.Getenv("SMTP_ENABLED") != "false",
		EnableProviderOptimizations: os.Getenv("PROVIDER_TUNING") == "true",
		UseYahooAPI:                 os.Getenv("YAHOO_API_ENABLED") == "true",
		FromEmail:                   os.Getenv("FROM_EMAIL"),
		HelloName:                   os.Getenv("HELLO_NAME"),
		Timeout:                     55 * time.Second,
	}
	if endpoint := os.Getenv("WEBDRIVER_ENDPOINT"); endpoint != "" {
		opts.Headless = &verimail.HeadlessParams{Endpoint: endpoint}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runner := worker.New(q, st, verifier, opts)
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("❌ Worker stopped: %v", err)
	}
	log.Println("✅ Worker shut down cleanly.")
}
