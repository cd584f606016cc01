package auth

import (
	"context"
	"fmt"

	"github.com/studylog/studylog-api/internal/model"
)

// Strategy names used at registration time.
const (
	StrategyLocal  = "local"
	StrategyJWT    = "jwt"
	StrategyGoogle = "google"
	StrategyNaver  = "naver"
	StrategyKakao  = "kakao"
)

// Credentials is the tagged input to a strategy. Exactly one group of fields
// is meaningful per strategy: Email/Password for local, Code for an OAuth
// authorization code, Token for a bearer JWT.
type Credentials struct {
	Email    string
	Password string
	Code     string
	Token    string
}

// Strategy maps an external identity assertion to a member principal.
// Implementations either return the principal or fail; there is no partial
// result.
type Strategy interface {
	Name() string
	Validate(ctx context.Context, cred Credentials) (model.Principal, error)
}

// MemberDirectory is the slice of the member repository the strategies need.
// The MySQL repository satisfies it; tests plug in an in-memory fake.
type MemberDirectory interface {
	FindByEmail(ctx context.Context, email string) (*model.Member, error)
	FindByID(ctx context.Context, id uint64) (*model.Member, error)
	// Create inserts a member; passwordHash may be empty for OAuth-provisioned
	// accounts, which then have no local login.
	Create(ctx context.Context, email, passwordHash, role string) (uint64, error)
}

// Registry holds the configured strategies keyed by name.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Name()] = s
	}
	return r
}

// Get returns the strategy registered under name. An unknown name is a
// programming error surfaced at wiring time, not a client-visible condition.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("auth: no strategy registered for %q", name)
	}
	return s, nil
}
