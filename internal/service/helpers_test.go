package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront-identity/internal/auth"
	"github.com/spec-kit/storefront-identity/internal/domain"
	"github.com/spec-kit/storefront-identity/internal/events"
)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func recordEvents(d events.Dispatcher, types ...events.EventType) *eventLog {
	log := &eventLog{}
	for _, et := range types {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			log.mu.Lock()
			defer log.mu.Unlock()
			log.events = append(log.events, e)
			return nil
		})
	}
	return log
}

func (l *eventLog) ofType(et events.EventType) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password, testConfig().Auth.BcryptCost)
	require.NoError(t, err)
	return hash
}

func principalFor(identity *domain.Identity) *auth.Principal {
	return &auth.Principal{Identity: identity, Capabilities: auth.Evaluate(identity)}
}

func seedSuperAdmin(t *testing.T, repo *memIdentityRepo) *domain.Identity {
	t.Helper()
	return repo.seed(&domain.Identity{
		Kind:         domain.KindAdmin,
		Email:        "root@shop.test",
		Name:         "Root",
		PasswordHash: mustHash(t, "root-pass"),
		Role:         "admin",
		IsAdmin:      true,
		IsActive:     true,
		Extension:    domain.Extension{Admin: &domain.AdminProfile{AdminLevel: domain.AdminLevelSuperAdmin, SuperAdmin: true}},
	})
}
