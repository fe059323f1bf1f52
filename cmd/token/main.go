// Command token mints a viewer token for local testing against the engine.
//
//	go run ./cmd/token -user 7c1e...
package main

import (
	"flag"
	"fmt"
	"os"

	"gator-social/internal/config"
	"gator-social/internal/middleware"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	userFlag := flag.String("user", "", "user id to mint a token for")
	flag.Parse()

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -user %q: %v\n", *userFlag, err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	token, err := middleware.NewAuthenticator(cfg.JWTSecret, zerolog.Nop()).GenerateToken(userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
