package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coachdesk/coachdesk/libs/auth"
	"github.com/google/uuid"
)

// token-gen mints an access token for poking the services locally
// without going through the register/login flow.
func main() {
	var (
		secret = flag.String("secret", getenv("AUTH_JWT_SECRET", ""), "HS256 signing secret")
		sub    = flag.String("sub", getenv("SUBJECT", ""), "subject (user id); random uuid when empty")
		role   = flag.String("role", getenv("ROLE", "client"), "role claim (client, consultant, admin)")
		name   = flag.String("name", getenv("NAME", "Local Tester"), "name claim")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("AUTH_JWT_SECRET is required")
	}
	subject := strings.TrimSpace(*sub)
	if subject == "" {
		subject = uuid.NewString()
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  subject,
		Role: *role,
		Name: *name,
		Iat:  now.Unix(),
		Exp:  now.Add(*ttl).Unix(),
	}, *secret)
	if err != nil {
		fatal(err.Error())
	}

	fmt.Printf("sub=%s role=%s\n%s\n", subject, *role, token)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
