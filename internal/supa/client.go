package supa

import (
	"context"
	"fmt"

	"github.com/dafibh/authgate/authgate-backend/internal/config"
	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/supabase-community/supabase-go"
)

// Clients holds the Supabase clients the server needs.
// Auth always carries the anon key. Data carries the service role key when
// configured; without it, data requests run as the signed-in user so the
// project's row level security applies.
type Clients struct {
	Auth *supabase.Client
	Data *supabase.Client

	url         string
	anonKey     string
	serviceRole bool
}

// NewClients creates the Supabase clients from configuration
func NewClients(cfg config.SupabaseConfig) (*Clients, error) {
	authClient, err := supabase.NewClient(cfg.URL, cfg.AnonKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase auth client: %w", err)
	}

	clients := &Clients{Auth: authClient, Data: authClient, url: cfg.URL, anonKey: cfg.AnonKey}
	if cfg.ServiceRoleKey == "" {
		return clients, nil
	}

	dataClient, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase service client: %w", err)
	}
	clients.Data = dataClient
	clients.serviceRole = true
	return clients, nil
}

// ServiceRole reports whether data requests bypass row level security
func (c *Clients) ServiceRole() bool {
	return c.serviceRole
}

// DataFor returns the client for a data request made in ctx. With the
// service role key that is the shared Data client; otherwise it is a client
// bearing the caller's access token, falling back to the anon key when ctx
// carries none.
func (c *Clients) DataFor(ctx context.Context) (*supabase.Client, error) {
	if c.serviceRole {
		return c.Data, nil
	}
	token := domain.AccessTokenFromContext(ctx)
	if token == "" {
		return c.Data, nil
	}
	client, err := supabase.NewClient(c.url, c.anonKey, &supabase.ClientOptions{
		Headers: map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase user client: %w", err)
	}
	return client, nil
}
