package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/rcanales/recibo-capture/internal/capture"
	"github.com/rcanales/recibo-capture/internal/extraction"
	"github.com/rcanales/recibo-capture/internal/session"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("recibo-capture")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		extractorURL = fs.StringLong("extractor-url", "http://localhost:9000", "Extraction service base URL")
		cameraURL    = fs.StringLong("camera-url", "", "MJPEG camera stream URL (optional)")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECIBO_CAPTURE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Camera is optional: without one, activation reports the access
	// failure and file input remains available.
	var source capture.Source
	if *cameraURL != "" {
		slog.Info("Using MJPEG camera", "url", *cameraURL)
		source = capture.NewMJPEG(*cameraURL)
	} else {
		slog.Info("No camera configured, capture disabled")
	}

	client := extraction.NewClient(*extractorURL)
	controller := session.NewController(capture.NewAdapter(source), client)
	defer controller.Close()

	basicAuth := session.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := session.NewServer(controller, session.NewNativePicker(), basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "extractor", *extractorURL)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
