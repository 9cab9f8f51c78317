package server

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pricewire/pricewire/internal/auth"
	"github.com/pricewire/pricewire/internal/config"
	"github.com/pricewire/pricewire/internal/domain"
	"github.com/pricewire/pricewire/internal/listener"
	"github.com/pricewire/pricewire/internal/registry"
)

// --- shared test doubles ---

type stubTokenRepo struct {
	valid       map[string]bool
	created     string
	issued      []domain.Token
	createErr   error
	revokeErr   error
	validateErr error
	listErr     error
}

func (s *stubTokenRepo) Create(context.Context) (string, error) {
	return s.created, s.createErr
}

func (s *stubTokenRepo) Revoke(context.Context, string) error {
	return s.revokeErr
}

func (s *stubTokenRepo) Validate(_ context.Context, token string) (bool, error) {
	if s.validateErr != nil {
		return false, s.validateErr
	}
	return s.valid[token], nil
}

func (s *stubTokenRepo) List(context.Context) ([]domain.Token, error) {
	return s.issued, s.listErr
}

type stubPriceRepo struct {
	closing    *domain.ClosingPrice
	closingErr error
	latest     *domain.PriceUpdate
	latestErr  error
}

func (s *stubPriceRepo) ClosingPrice(context.Context, string, time.Time) (*domain.ClosingPrice, error) {
	return s.closing, s.closingErr
}

func (s *stubPriceRepo) LatestPrice(context.Context, string) (*domain.PriceUpdate, error) {
	return s.latest, s.latestErr
}

type stubFeed struct {
	state listener.State
}

func (s *stubFeed) State() listener.State { return s.state }

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error { return s.err }

type fixture struct {
	server *Server
	tokens *stubTokenRepo
	prices *stubPriceRepo
	feed   *stubFeed
	db     *stubPinger
}

func newFixture() *fixture {
	cfg := &config.Config{
		Port:                "0",
		AdminToken:          "test-admin-secret",
		ListenChannel:       "stock_updates",
		ReconnectDelay:      5 * time.Second,
		MaxConnections:      100,
		MaxConnectionsPerIP: 10,
		ConnectionsPerSec:   1000,
		ConnectionBurst:     1000,
	}

	tokens := &stubTokenRepo{valid: map[string]bool{"good-token": true}}
	prices := &stubPriceRepo{}
	feed := &stubFeed{state: listener.StateSubscribed}
	db := &stubPinger{}

	srv := NewServer(
		cfg,
		auth.NewGate(tokens),
		registry.New(),
		prices,
		tokens,
		feed,
		db,
		clockwork.NewRealClock(),
	)

	return &fixture{server: srv, tokens: tokens, prices: prices, feed: feed, db: db}
}
