// Package accounts handles signup, login and the admin's player management.
// Every admin operation takes the acting player explicitly.
package accounts

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/utakatalp/prediction-league/internal/league"
	"github.com/utakatalp/prediction-league/internal/store"
)

type Store interface {
	CreatePlayer(ctx context.Context, p *league.Player, audit *store.AuditRecord) error
	UpdatePlayer(ctx context.Context, p *league.Player, audit *store.AuditRecord) error
	DeletePlayer(ctx context.Context, id int64, audit *store.AuditRecord) error
	PlayerByName(ctx context.Context, name string) (*league.Player, error)
	PlayerByID(ctx context.Context, id int64) (*league.Player, error)
	ListPlayers(ctx context.Context, search string) ([]*league.Player, error)
	AuditLog(ctx context.Context) ([]league.AuditEntry, error)
}

// Actor is the logged-in player a request acts for.
type Actor struct {
	ID   int64
	Name string
	Role league.Role
}

func ActorOf(p *league.Player) Actor {
	return Actor{ID: p.ID, Name: p.Name, Role: p.Role}
}

func (a Actor) IsAdmin() bool { return a.Role == league.RoleAdmin }

type Service struct {
	store       Store
	adminSecret string
	cost        int
	log         logrus.FieldLogger
}

// New returns an account service. Signups presenting adminSecret become
// admins; an empty secret disables admin signup.
func New(s Store, adminSecret string, log logrus.FieldLogger) *Service {
	return &Service{store: s, adminSecret: adminSecret, cost: bcrypt.DefaultCost, log: log}
}

// SetHashCost changes the bcrypt cost for new hashes.
func (s *Service) SetHashCost(cost int) { s.cost = cost }

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

func (s *Service) isAdminCode(code string) bool {
	if s.adminSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(s.adminSecret)) == 1
}

func credentials(name, password string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return "", fmt.Errorf("name and password are required: %w", league.ErrInvalidCredentials)
	}
	return name, nil
}

// Signup creates a user account, or an admin one when adminCode matches the
// enrollment secret. A wrong code is ignored and yields a regular user.
func (s *Service) Signup(ctx context.Context, name, password, adminCode string) (*league.Player, error) {
	name, err := credentials(name, password)
	if err != nil {
		return nil, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	p := &league.Player{Name: name, PasswordHash: hash, Role: league.RoleUser}
	if s.isAdminCode(adminCode) {
		p.Role = league.RoleAdmin
	}
	if err := s.store.CreatePlayer(ctx, p, nil); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"player": p.ID, "role": p.Role}).Info("signed up")
	return p, nil
}

// Login checks a name and password pair. Unknown names and wrong passwords
// both fail with league.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, name, password string) (*league.Player, error) {
	p, err := s.store.PlayerByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, league.ErrNotFound) {
		return nil, league.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		s.log.WithField("player", p.ID).Warn("failed login")
		return nil, league.ErrInvalidCredentials
	}
	return p, nil
}

// Player loads the account behind a session.
func (s *Service) Player(ctx context.Context, id int64) (*league.Player, error) {
	return s.store.PlayerByID(ctx, id)
}

func requireAdmin(actor Actor) error {
	if !actor.IsAdmin() {
		return league.ErrForbidden
	}
	return nil
}

func (s *Service) ListPlayers(ctx context.Context, actor Actor, search string) ([]*league.Player, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListPlayers(ctx, strings.TrimSpace(search))
}

// AddPlayer creates an account on behalf of an admin.
func (s *Service) AddPlayer(ctx context.Context, actor Actor, name, password string, role league.Role) (*league.Player, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%q: %w", role, league.ErrInvalidRole)
	}
	name, err := credentials(name, password)
	if err != nil {
		return nil, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	p := &league.Player{Name: name, PasswordHash: hash, Role: role}
	if err := s.store.CreatePlayer(ctx, p, &store.AuditRecord{
		AdminID: &actor.ID,
		Action:  "add player",
		Details: fmt.Sprintf("%s (%s)", name, role),
	}); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"admin": actor.ID, "player": p.ID}).Info("player added")
	return p, nil
}

// PlayerUpdate holds the fields an admin may change. Empty Password keeps
// the current one.
type PlayerUpdate struct {
	Name     string
	Password string
	Role     league.Role
}

func (s *Service) UpdatePlayer(ctx context.Context, actor Actor, id int64, u PlayerUpdate) (*league.Player, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	p, err := s.store.PlayerByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(u.Name); name != "" {
		p.Name = name
	}
	if u.Role != "" {
		if !u.Role.Valid() {
			return nil, fmt.Errorf("%q: %w", u.Role, league.ErrInvalidRole)
		}
		p.Role = u.Role
	}
	if u.Password != "" {
		if p.PasswordHash, err = s.hash(u.Password); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdatePlayer(ctx, p, &store.AuditRecord{
		AdminID:        &actor.ID,
		Action:         "update player",
		TargetPlayerID: &p.ID,
		Details:        fmt.Sprintf("%s (%s)", p.Name, p.Role),
	}); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"admin": actor.ID, "player": p.ID}).Info("player updated")
	return p, nil
}

// DeletePlayer removes an account with its predictions and awards.
func (s *Service) DeletePlayer(ctx context.Context, actor Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.DeletePlayer(ctx, id, &store.AuditRecord{
		AdminID:        &actor.ID,
		Action:         "delete player",
		TargetPlayerID: &id,
	}); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"admin": actor.ID, "player": id}).Info("player deleted")
	return nil
}

// AuditLog lists admin actions, newest first.
func (s *Service) AuditLog(ctx context.Context, actor Actor) ([]league.AuditEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.AuditLog(ctx)
}
