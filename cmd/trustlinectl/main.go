package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"trustline-client-go/internal/config"
	"trustline-client-go/internal/events"
	"trustline-client-go/internal/logging"
	"trustline-client-go/internal/platform"
	"trustline-client-go/internal/session"
	"trustline-client-go/internal/tracing"
	"trustline-client-go/internal/transport"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	mgr, err := config.NewManager(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	defer mgr.Stop()
	cfg := mgr.Config()
	if *debug {
		cfg.Debug = true
	}

	if err := logging.Setup(cfg); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}
	mgr.OnReload(func(next *config.Config) {
		if err := logging.Setup(next); err != nil {
			log.WithError(err).Warn("failed to reconfigure logging after reload")
		}
	})
	mgr.Watch()

	traceShutdown, err := tracing.Init(context.Background())
	if err != nil {
		log.WithError(err).Warn("failed to initialize tracing")
	}
	if traceShutdown != nil {
		defer func() {
			if err := traceShutdown(context.Background()); err != nil {
				log.WithError(err).Warn("failed to shutdown tracing")
			}
		}()
	}

	hub := events.NewHub()
	hub.Subscribe(events.TopicSessionTerminated, func(_ context.Context, ev events.Event) {
		reason := ev.Metadata["reason"]
		log.WithField("reason", reason).Warn("session terminated, sign in again")
	})

	store := buildStore(cfg, hub)
	clock := session.NewClock(store)
	refresher := session.NewRefresher(store, hub, cfg.AuthBaseURL,
		session.WithTerminatedCallback(func(reason string) {
			// CLI equivalent of redirecting to the sign-in page.
			fmt.Fprintf(os.Stderr, "session ended (%s); run `trustlinectl login`\n", reason)
		}),
	)
	client := transport.New(cfg, store, clock, refresher)

	ctx := context.Background()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "login":
		runLogin(ctx, cfg, store)
	case "status":
		runStatus(ctx, store, clock, platform.NewFeatureService(client))
	case "wallet":
		runWallet(ctx, platform.NewWalletService(client))
	case "cases":
		runCases(ctx, platform.NewCaseService(client))
	case "disputes":
		runDisputes(ctx, platform.NewDisputeService(client))
	case "passkeys":
		runPasskeys(ctx, platform.NewFeatureService(client))
	case "call":
		runCall(ctx, client, args[1:])
	case "logout":
		refresher.Teardown("logout")
		fmt.Println("logged out")
	default:
		usage()
		os.Exit(2)
	}
}

func defaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.config/trustline/config.yaml"
	}
	return "config.yaml"
}

func buildStore(cfg *config.Config, hub *events.Hub) session.Store {
	switch cfg.StorageBackend {
	case config.StorageRedis:
		return session.NewRedisStore(session.RedisStoreConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, hub)
	case config.StorageFile:
		path := cfg.TokenFile
		if path == "" {
			if home, err := os.UserHomeDir(); err == nil {
				path = home + "/.config/trustline/tokens.json"
			} else {
				path = "tokens.json"
			}
		}
		return session.NewFileStore(path, hub)
	default:
		return session.NewMemoryStore(hub)
	}
}

func runLogin(ctx context.Context, cfg *config.Config, store session.Store) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		fatal(err)
	}
	fmt.Print("password: ")
	password, err := reader.ReadString('\n')
	if err != nil {
		fatal(err)
	}

	auth := platform.NewAuthService(cfg.AuthBaseURL, store)
	if err := auth.Login(ctx, strings.TrimSpace(email), strings.TrimSpace(password)); err != nil {
		fatal(err)
	}
	fmt.Println("logged in")
}

func runStatus(ctx context.Context, store session.Store, clock *session.Clock, features *platform.FeatureService) {
	tokens := store.Get()
	if tokens.Empty() {
		fmt.Println("not logged in")
		return
	}
	fmt.Printf("access token: present (usable: %v, expires %s)\n", clock.Usable(), tokens.ExpiresAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("refresh token: %v\n", tokens.RefreshToken != "")
	if err := features.ProbeSession(ctx); err != nil {
		fmt.Printf("backend session check: %v\n", err)
		return
	}
	fmt.Println("backend session check: ok")
}

func runWallet(ctx context.Context, wallet *platform.WalletService) {
	balance, err := wallet.Balance(ctx)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("available: %s %s (locked: %s)\n", balance.Available, balance.Currency, balance.Locked)
}

func runCases(ctx context.Context, cases *platform.CaseService) {
	list, err := cases.List(ctx)
	if err != nil {
		fatal(err)
	}
	for _, c := range list {
		fmt.Printf("%s\t%s\t%s\n", c.ID, c.Status, c.Title)
	}
}

func runDisputes(ctx context.Context, disputes *platform.DisputeService) {
	list, err := disputes.List(ctx)
	if err != nil {
		fatal(err)
	}
	for _, d := range list {
		fmt.Printf("%s\t%s\t%s\n", d.ID, d.Status, d.Reason)
	}
}

func runPasskeys(ctx context.Context, features *platform.FeatureService) {
	keys, err := features.Passkeys(ctx)
	if err != nil {
		fatal(err)
	}
	for _, k := range keys {
		fmt.Printf("%s\t%s\n", k.ID, k.Label)
	}
}

func runCall(ctx context.Context, client *transport.Client, args []string) {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	method := fs.String("X", "GET", "HTTP method")
	data := fs.String("d", "", "Request body (JSON)")
	feature := fs.Bool("feature", false, "Target the feature origin")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if fs.NArg() != 1 {
		fatal(fmt.Errorf("usage: trustlinectl call [-X METHOD] [-d BODY] [-feature] /path"))
	}

	origin := transport.OriginAPI
	if *feature {
		origin = transport.OriginFeature
	}
	var out map[string]any
	err := client.DoJSON(ctx, &transport.Request{
		Origin: origin,
		Method: strings.ToUpper(*method),
		Path:   fs.Arg(0),
		Body:   []byte(*data),
	}, &out)
	if err != nil {
		fatal(err)
	}
	for k, v := range out {
		fmt.Printf("%s: %v\n", k, v)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: trustlinectl [-config PATH] [-debug] <login|status|wallet|cases|disputes|passkeys|call|logout>")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
