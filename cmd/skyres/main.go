package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/skyres/internal/app"
)

func main() {
	// A missing .env is fine; the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	var (
		method  = flag.String("X", "GET", "HTTP method")
		data    = flag.String("d", "", "JSON request body, @file to read a file or @- for stdin")
		logout  = flag.Bool("logout", false, "revoke the stored session and exit")
		info    = flag.Bool("info", false, "show what the API knows about the current token")
		profile = flag.String("profile", "", "session profile (default: $SKYRES_PROFILE)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: skyres [flags] PATH\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cmd := app.Command{Method: *method, Logout: *logout, Info: *info}
	if !cmd.Logout && !cmd.Info {
		if flag.NArg() != 1 {
			flag.Usage()
			os.Exit(2)
		}
		cmd.Path = flag.Arg(0)
	}

	body, err := readBody(*data)
	if err != nil {
		log.Fatalf("failed to read request body: %v", err)
	}
	cmd.Body = body

	cfg := app.LoadConfig()
	if *profile != "" {
		cfg.Profile = *profile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	runErr := application.Run(ctx, cmd, os.Stdout)
	if err := application.Close(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}

func readBody(arg string) (string, error) {
	name, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	if name == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(name)
	return string(b), err
}
