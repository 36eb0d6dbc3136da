package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redmaple030/shopee-oms/internal/domain"
)

type operatorStoreStub struct {
	mu       sync.Mutex
	accounts map[string]domain.OperatorAccount
	updates  int
}

func (s *operatorStoreStub) CreateOperator(_ context.Context, account domain.OperatorAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts == nil {
		s.accounts = make(map[string]domain.OperatorAccount)
	}
	s.accounts[account.Username] = account
	return nil
}

func (s *operatorStoreStub) Operators(_ context.Context) ([]domain.OperatorAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OperatorAccount, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, account)
	}
	return out, nil
}

func (s *operatorStoreStub) UpdateOperatorPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.accounts[username]
	account.Password = password
	s.accounts[username] = account
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	stub := &operatorStoreStub{
		accounts: map[string]domain.OperatorAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, stub)
	if _, err := manager.Login(domain.LoginRequest{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	accounts, err := stub.Operators(context.Background())
	if err != nil {
		t.Fatalf("list operators failed: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 operator, got %d", len(accounts))
	}
	if accounts[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(accounts[0].Password, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", accounts[0].Password)
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	stub := &operatorStoreStub{
		accounts: map[string]domain.OperatorAccount{
			"alex": {Username: "alex", Password: "secret123", Role: "staff", Active: true, CreatedAt: time.Now().UTC()},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, stub)

	resp, err := manager.Login(domain.LoginRequest{Username: "alex", Password: "secret123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "alex" || actor.Role != "staff" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	stub := &operatorStoreStub{
		accounts: map[string]domain.OperatorAccount{
			"alex": {Username: "alex", Password: "secret123", Role: "staff", Active: true, CreatedAt: time.Now().UTC()},
		},
	}
	manager := NewAuthManager("secret-one", time.Hour, stub)

	resp, err := manager.Login(domain.LoginRequest{Username: "alex", Password: "secret123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	other := NewAuthManager("secret-two", time.Hour, nil)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	stub := &operatorStoreStub{
		accounts: map[string]domain.OperatorAccount{
			"gone": {Username: "gone", Password: "secret123", Role: "staff", Active: false, CreatedAt: time.Now().UTC()},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, stub)

	if _, err := manager.Login(domain.LoginRequest{Username: "gone", Password: "secret123"}); err == nil {
		t.Fatalf("expected inactive account login to fail")
	}
}

func TestCreateOperatorValidation(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &operatorStoreStub{})

	if _, err := manager.CreateOperator(OperatorCreateRequest{Username: "ab", Password: "longenough"}); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := manager.CreateOperator(OperatorCreateRequest{Username: "valid-name", Password: "123"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}

	created, err := manager.CreateOperator(OperatorCreateRequest{Username: "Valid-Name", Password: "secret123"})
	if err != nil {
		t.Fatalf("create operator failed: %v", err)
	}
	if created.Username != "valid-name" || created.Role != "staff" {
		t.Fatalf("unexpected created operator: %+v", created)
	}

	if _, err := manager.CreateOperator(OperatorCreateRequest{Username: "valid-name", Password: "secret123"}); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}
}
