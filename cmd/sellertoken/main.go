package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/291e/bogofit-shop-sub001/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	var (
		subFlag   string
		brandFlag string
		ttlFlag   time.Duration
	)
	flag.StringVar(&subFlag, "sub", "", "seller account ID the token is issued to")
	flag.StringVar(&brandFlag, "brand", "", "brand shown in the seller console (optional)")
	flag.DurationVar(&ttlFlag, "ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	sub := strings.TrimSpace(subFlag)
	if sub == "" {
		exitWithError(errors.New("-sub is required"))
	}
	if ttlFlag <= 0 {
		exitWithError(errors.New("-ttl must be positive"))
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		exitWithError(errors.New("JWT_SECRET is required"))
	}

	now := time.Now()
	claims := middleware.NewSellerClaims(sub, strings.TrimSpace(brandFlag), now, ttlFlag)
	token, err := middleware.SignJWT(secret, claims)
	if err != nil {
		exitWithError(err)
	}
	fmt.Fprintf(os.Stderr, "seller token for %s expires %s\n", sub, time.Unix(claims.Exp, 0).UTC().Format(time.RFC3339))
	fmt.Println(token)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "sellertoken: %v\n", err)
	os.Exit(1)
}
