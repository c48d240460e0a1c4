package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/callsight/console/internal/token"
)

type TokenCmd struct {
	Token string `arg:"" help:"Raw JWT access token to inspect"`
}

func (t *TokenCmd) Run(ctx context.Context) error {
	claims := token.Decode(t.Token)
	if claims == nil {
		return errors.New("token is not a decodable JWT")
	}

	fmt.Printf("subject:    %s\n", claims.Subject)
	fmt.Printf("email:      %s\n", claims.Email)
	if !claims.IssuedAt.IsZero() {
		fmt.Printf("issued at:  %s\n", claims.IssuedAt.Format(time.RFC3339))
	}
	if claims.ExpiresAt.IsZero() {
		fmt.Println("expires at: (none)")
		return nil
	}

	fmt.Printf("expires at: %s\n", claims.ExpiresAt.Format(time.RFC3339))
	switch {
	case claims.Expired():
		fmt.Println("status:     expired")
	case claims.ExpiresWithin(token.DefaultExpiryThreshold):
		fmt.Println("status:     expiring soon")
	default:
		fmt.Println("status:     valid")
	}
	return nil
}
