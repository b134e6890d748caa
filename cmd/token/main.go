// Command token prints a bearer token signed with JWT_SECRET, for calling
// the API locally without the identity service.
//
//	go run ./cmd/token -user u-1 -role CUSTOMER -ttl 2h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/config"
	"github.com/iliyamo/seat-booking/internal/utils"
)

func main() {
	user := flag.String("user", "", "user id placed in the sub claim")
	role := flag.String("role", "CUSTOMER", "CUSTOMER or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, *user, *role, *ttl)
	if err != nil {
		logrus.WithError(err).Fatal("issuing token failed")
	}
	fmt.Fprintln(os.Stdout, tok.Token)
	logrus.WithField("expires_at", tok.Exp.Format(time.RFC3339)).Info("token issued")
}
