package core

import (
	"context"
	"fmt"
)

// Client is a read model from the client registry; the policy core only
// resolves references and searches by name.
type Client struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	PESEL    string `json:"pesel,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type ClientRepo interface {
	Get(ctx context.Context, id string) (Client, error)
	Put(ctx context.Context, c Client) error

	// SearchByName returns ids of clients whose full name contains the
	// given fragment (case-insensitive). Used by the policy name search.
	SearchByName(ctx context.Context, fragment string, limit int) ([]Client, error)
}

var ErrClientNotFound = fmt.Errorf("%w: client not found", ErrNotFound)
