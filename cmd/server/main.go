package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"
	"time"

	"github.com/adamdray/gaia-mud/pkg/accounts"
	"github.com/adamdray/gaia-mud/pkg/boltstore"
	"github.com/adamdray/gaia-mud/pkg/server"
	"github.com/adamdray/gaia-mud/pkg/world"
)

// Exit codes: 0 normal, 1 fatal startup, 2 unrecoverable store error,
// 3 bind failure.
const (
	exitOK      = 0
	exitStartup = 1
	exitStore   = 2
	exitBind    = 3
)

// envDefault returns the environment variable value if set, otherwise the
// fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("GAIA_CONF", ""), "Path to YAML config file (env: GAIA_CONF)")
	worldDB := flag.String("world", envDefault("GAIA_WORLD_DB", ""), "World collection connection string (env: GAIA_WORLD_DB)")
	accountsDB := flag.String("accounts", envDefault("GAIA_ACCOUNTS_DB", ""), "Accounts collection connection string (env: GAIA_ACCOUNTS_DB)")
	telnetPort := flag.Int("telnet-port", 0, "Telnet port, overrides config (env: GAIA_TELNET_PORT)")
	webPort := flag.Int("web-port", 0, "WebSocket port, overrides config (env: GAIA_WEB_PORT)")
	worldDir := flag.String("worlddir", envDefault("GAIA_WORLD_DIR", ""), "World definition directory (env: GAIA_WORLD_DIR)")
	textDir := flag.String("textdir", envDefault("GAIA_TEXT_DIR", ""), "Connection text file directory (env: GAIA_TEXT_DIR)")
	logLevel := flag.String("loglevel", envDefault("GAIA_LOG_LEVEL", ""), "Log level (env: GAIA_LOG_LEVEL)")
	adminLogin := flag.String("admin", envDefault("GAIA_ADMIN_LOGIN", ""), "Bootstrap admin login (env: GAIA_ADMIN_LOGIN)")
	adminPassword := flag.String("adminpass", envDefault("GAIA_ADMIN_PASSWORD", ""), "Bootstrap admin password (env: GAIA_ADMIN_PASSWORD)")
	flag.Parse()

	// Config file, then flag/env overrides.
	var gc *server.GameConf
	if *confFile != "" {
		var err error
		gc, err = server.LoadGameConf(*confFile)
		if err != nil {
			log.Printf("Fatal: %v", err)
			os.Exit(exitStartup)
		}
		log.Printf("Loaded config from %s", *confFile)
	} else {
		gc = server.DefaultGameConf()
	}

	if *worldDB != "" {
		gc.WorldDB = *worldDB
	}
	if *accountsDB != "" {
		gc.AccountsDB = *accountsDB
	}
	if *telnetPort != 0 {
		gc.TelnetPort = *telnetPort
	} else if p, err := strconv.Atoi(os.Getenv("GAIA_TELNET_PORT")); err == nil {
		gc.TelnetPort = p
	}
	if *webPort != 0 {
		gc.WebPort = *webPort
	} else if p, err := strconv.Atoi(os.Getenv("GAIA_WEB_PORT")); err == nil {
		gc.WebPort = p
	}
	if *worldDir != "" {
		gc.WorldDir = *worldDir
	}
	if *textDir != "" {
		gc.TextDir = *textDir
	}
	if *logLevel != "" {
		gc.LogLevel = *logLevel
	}
	if *adminLogin != "" {
		gc.AdminLogin = *adminLogin
	}
	if *adminPassword != "" {
		gc.AdminPassword = *adminPassword
	}

	if gc.WorldDB == "" {
		gc.WorldDB = "data/world.bolt"
	}
	if gc.AccountsDB == "" {
		gc.AccountsDB = "data/accounts.bolt"
	}

	log.Printf("Starting %s (telnet :%d, websocket :%d)", gc.WorldName, gc.TelnetPort, gc.WebPort)

	// Open the stores.
	worldStore, err := boltstore.OpenWorld(gc.WorldDB)
	if err != nil {
		log.Printf("Store error: %v", err)
		os.Exit(exitStore)
	}
	defer worldStore.Close()
	log.Printf("World store: %s (%d objects)", gc.WorldDB, worldStore.Count())

	acctStore, err := boltstore.OpenAccounts(gc.AccountsDB)
	if err != nil {
		log.Printf("Store error: %v", err)
		os.Exit(exitStore)
	}
	defer acctStore.Close()

	cache := world.NewCache(worldStore,
		time.Duration(gc.FlushSeconds)*time.Second, gc.DirtyFlushAt)
	acctSvc := accounts.NewService(acctStore)

	game := server.NewGame(gc, cache, acctSvc)
	if err := game.EnsureCoreObjects(); err != nil {
		log.Printf("Fatal: core objects: %v", err)
		os.Exit(exitStore)
	}

	// Bootstrap the default admin account if configured and missing.
	if gc.AdminLogin != "" && gc.AdminPassword != "" {
		if _, err := acctStore.GetByLogin(gc.AdminLogin); errors.Is(err, accounts.ErrNotFound) {
			a, err := acctSvc.Create(gc.AdminLogin, gc.AdminPassword, "", gc.AdminLogin)
			if err != nil {
				log.Printf("Fatal: bootstrap admin: %v", err)
				os.Exit(exitStartup)
			}
			if _, err := acctSvc.SetRoles(a.LoginID, []string{accounts.RoleAdmin, accounts.RoleWizard}, nil); err != nil {
				log.Printf("Fatal: bootstrap admin roles: %v", err)
				os.Exit(exitStartup)
			}
			log.Printf("Bootstrapped admin account %q", gc.AdminLogin)
		}
	}

	// World definition files.
	if gc.WorldDir != "" {
		if err := game.LoadWorldDir(gc.WorldDir); err != nil {
			log.Printf("Fatal: %v", err)
			os.Exit(exitStartup)
		}
	}

	// Connection text files, watched for edits.
	if gc.TextDir != "" {
		game.Texts = server.LoadTextFiles(gc.TextDir)
		game.Texts.Watch(gc.TextDir)
	}

	// Metrics and scrollback.
	game.Metrics = server.NewMetrics(game)
	if gc.ScrollbackDB != "" {
		sw, err := server.NewScrollbackWriter(game, gc.ScrollbackDB,
			time.Duration(gc.ScrollbackRetention)*time.Second)
		if err != nil {
			log.Printf("WARNING: scrollback disabled: %v", err)
		} else {
			game.Scrollback = sw
			defer sw.Close()
		}
	}

	// pprof debug endpoint.
	go func() {
		log.Printf("pprof debug endpoint at http://0.0.0.0:6060/debug/pprof/")
		if err := http.ListenAndServe(":6060", nil); err != nil {
			log.Printf("pprof server error: %v", err)
		}
	}()

	srv := server.NewServer(game)
	if err := srv.Start(); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(exitBind)
	}

	// Final flush before exit.
	if err := cache.Flush(); err != nil {
		log.Printf("Final flush: %v", err)
		os.Exit(exitStore)
	}
	os.Exit(exitOK)
}
