package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/sparkd-app/dategame/internal/config"
	"github.com/sparkd-app/dategame/internal/gateway"
)

const version = "v1.0.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`DateGame gateway - paired quiz session server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT             Port to listen on (default: 8080)
  INVITE_TTL       How long invitations stay answerable (default: 30s)
  EXPORT_ENABLED   Append finished results to a file (default: false)
  EXPORT_FILE      Path for exported results (default: data/results.txt)
  LOG_LEVEL        zerolog level (default: info)

Examples:
  %s                  Start gateway with default settings
  %s --port 3000      Start gateway on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("dategame gateway %s\n", version)
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	port := *portFlag
	if port == "" {
		port = cfg.Port
	}

	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/ws") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		zerologlog.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	mgr := gateway.NewManager()
	srv := gateway.NewServer(mgr, zerologlog.Logger)
	srv.SetInviteTTL(cfg.InviteTTL)
	if cfg.ExportEnabled {
		srv.SetResultHook(func(res *gateway.SessionResults) {
			if err := gateway.ExportResults(res, cfg.ExportFile); err != nil {
				zerologlog.Error().Err(err).Msg("failed to export results")
			} else {
				zerologlog.Info().Str("file", cfg.ExportFile).Msg("exported results")
			}
		})
	}
	srv.Routes(r)
	defer srv.Close()

	log.Printf("listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
