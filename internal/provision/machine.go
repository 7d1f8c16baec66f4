package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DaaanielTV/hosting-club-discord-bot/internal/config"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/logger"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/pterodactyl"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/quota"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/validate"
	"github.com/google/uuid"
)

var (
	// ErrAtCapacity means the user already owns the maximum number of
	// servers; no session is created.
	ErrAtCapacity = errors.New("server limit reached")
	// ErrUnknownType means the selected type key is not configured.
	ErrUnknownType = errors.New("unknown server type")
)

// Provisioner is the slice of the panel client the machine needs.
type Provisioner interface {
	CreateUser(ctx context.Context, req pterodactyl.UserRequest) (pterodactyl.User, error)
	CreateServer(ctx context.Context, req pterodactyl.ServerRequest) (pterodactyl.Server, error)
}

// Reporter renders machine output back to the user.
type Reporter interface {
	// Prompt asks the user for the next (or same, on Retry) input.
	Prompt(userID string, p Prompt)
	// Processing tells the user the panel calls are running.
	Processing(userID string)
	// Finished replaces the processing notice with the final summary.
	Finished(userID string, r Result)
	// Expired tells the user an abandoned session was dropped.
	Expired(userID string)
}

// RoleGranter assigns the configured role after a successful creation.
type RoleGranter interface {
	GrantRole(userID string) error
}

// Machine owns all live sessions and the transition logic between
// steps. Input for the same user is fully serialized: a per-user lock
// is held for the whole step, including the panel round trips, so
// duplicate submissions cannot race on the session.
type Machine struct {
	provisioner Provisioner
	quota       quota.Store
	reporter    Reporter
	roles       RoleGranter

	types      map[string]config.ServerType
	maxServers int
	locationID int

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
}

// Config carries the machine's collaborators and settings.
type Config struct {
	Provisioner Provisioner
	Quota       quota.Store
	Reporter    Reporter
	Roles       RoleGranter // optional
	Types       map[string]config.ServerType
	MaxServers  int
	LocationID  int
}

func New(cfg Config) *Machine {
	return &Machine{
		provisioner: cfg.Provisioner,
		quota:       cfg.Quota,
		reporter:    cfg.Reporter,
		roles:       cfg.Roles,
		types:       cfg.Types,
		maxServers:  cfg.MaxServers,
		locationID:  cfg.LocationID,
		sessions:    make(map[string]*Session),
		locks:       make(map[string]*sync.Mutex),
	}
}

// userLock returns the lock serializing all activity for one user.
func (m *Machine) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

func (m *Machine) getSession(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

func (m *Machine) putSession(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s
}

func (m *Machine) deleteSession(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// touch refreshes the idle timestamp under m.mu so the janitor's scan
// never races it.
func (m *Machine) touch(s *Session) {
	m.mu.Lock()
	s.UpdatedAt = time.Now()
	m.mu.Unlock()
}

// HasSession reports whether a provisioning conversation is open for
// the user.
func (m *Machine) HasSession(userID string) bool {
	return m.getSession(userID) != nil
}

// HasCapacity is the entry guard: true while the user may start a new
// flow.
func (m *Machine) HasCapacity(userID string) bool {
	return m.quota.HasCapacity(userID, m.maxServers)
}

// MaxServers returns the configured per-user cap, for quota notices.
func (m *Machine) MaxServers() int {
	return m.maxServers
}

// SelectType opens a session for the user at the email step. Selecting
// again while a flow is open restarts it from scratch.
func (m *Machine) SelectType(userID, typeKey string) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if !m.quota.HasCapacity(userID, m.maxServers) {
		return ErrAtCapacity
	}
	st, ok := m.types[typeKey]
	if !ok {
		return ErrUnknownType
	}

	s := &Session{
		UserID:    userID,
		Step:      StepEmail,
		TypeKey:   typeKey,
		AttemptID: uuid.NewString(),
		UpdatedAt: time.Now(),
	}
	m.putSession(s)
	logger.Info("[Provision] %s started %s flow (attempt %s)", userID, typeKey, s.AttemptID)

	m.reporter.Prompt(userID, Prompt{
		Title:  "Server Creation",
		Body:   fmt.Sprintf("You selected **%s**.\n\nPlease enter your email address:", st.Name),
		Footer: "Step 1 of 3: Email",
	})
	return nil
}

// HandleInput routes one free-text message to the session's current
// step. It returns false when no session is open, so the caller can
// ignore unrelated chatter.
func (m *Machine) HandleInput(ctx context.Context, userID, text string) bool {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s := m.getSession(userID)
	if s == nil {
		return false
	}
	m.touch(s)

	switch s.Step {
	case StepEmail:
		m.handleEmail(s, text)
	case StepUsername:
		m.handleUsername(s, text)
	case StepPassword:
		m.handlePassword(ctx, s, text)
	}
	return true
}

func (m *Machine) handleEmail(s *Session, text string) {
	if !validate.Email(text) {
		m.reporter.Prompt(s.UserID, Prompt{
			Title:  "Server Creation",
			Body:   "Invalid email address. Please enter a valid email address:",
			Footer: "Step 1 of 3: Email",
			Retry:  true,
		})
		return
	}

	s.Email = text
	s.Step = StepUsername
	m.reporter.Prompt(s.UserID, Prompt{
		Title:  "Server Creation",
		Body:   "Email saved. Now enter your desired username:",
		Footer: "Step 2 of 3: Username",
	})
}

func (m *Machine) handleUsername(s *Session, text string) {
	if !validate.Username(text) {
		m.reporter.Prompt(s.UserID, Prompt{
			Title:  "Server Creation",
			Body:   "Invalid username. It must be 3-20 characters long and may only contain letters, digits and underscores:",
			Footer: "Step 2 of 3: Username",
			Retry:  true,
		})
		return
	}

	s.Username = text
	s.Step = StepPassword
	m.reporter.Prompt(s.UserID, Prompt{
		Title:  "Server Creation",
		Body:   "Username saved. Now enter your desired password.\n\n**Security note**: use at least 8 characters mixing letters, digits and symbols.",
		Footer: "Step 3 of 3: Password",
	})
}

func (m *Machine) handlePassword(ctx context.Context, s *Session, text string) {
	if !validate.Password(text) {
		m.reporter.Prompt(s.UserID, Prompt{
			Title:  "Server Creation",
			Body:   "Password too weak. It must be at least 8 characters and contain letters, digits and symbols:",
			Footer: "Step 3 of 3: Password",
			Retry:  true,
		})
		return
	}

	s.Password = text
	s.Step = StepProcessing
	m.reporter.Processing(s.UserID)

	// The session is gone after this point no matter what happened; a
	// failed attempt restarts the whole flow and consumes no quota.
	result := m.runProvisioning(ctx, s)
	m.deleteSession(s.UserID)
	m.reporter.Finished(s.UserID, result)
}

// runProvisioning performs the two panel calls in order and the
// bookkeeping that follows a full success.
func (m *Machine) runProvisioning(ctx context.Context, s *Session) Result {
	st := m.types[s.TypeKey]

	user, err := m.provisioner.CreateUser(ctx, pterodactyl.UserRequest{
		Username: s.Username,
		Email:    s.Email,
		Password: s.Password,
	})
	if err != nil {
		logger.Error("[Provision] attempt %s: account creation failed: %v", s.AttemptID, err)
		return Result{TypeName: st.Name, ErrorDetail: errorDetail(err)}
	}

	serverName := fmt.Sprintf("%s's %s", s.Username, st.Name)
	server, err := m.provisioner.CreateServer(ctx, pterodactyl.ServerRequest{
		Name:        serverName,
		UserID:      user.ID,
		EggID:       st.EggID,
		DockerImage: st.DockerImage,
		Startup:     st.Startup,
		Environment: st.Environment,
		MemoryMB:    st.Memory,
		LocationID:  m.locationID,
	})
	if err != nil {
		// The panel account stays behind; log enough to clean it up.
		logger.Error("[Provision] attempt %s: server creation failed, panel user %d orphaned: %v",
			s.AttemptID, user.ID, err)
		return Result{TypeName: st.Name, ErrorDetail: errorDetail(err)}
	}

	m.quota.RecordCreation(s.UserID, server.Identifier)

	if m.roles != nil {
		if err := m.roles.GrantRole(s.UserID); err != nil {
			logger.Warn("[Provision] attempt %s: role grant failed for %s: %v", s.AttemptID, s.UserID, err)
		}
	}

	logger.Info("[Provision] attempt %s: created server %s (%s) for %s",
		s.AttemptID, server.Identifier, serverName, s.UserID)
	return Result{
		OK:         true,
		TypeName:   st.Name,
		ServerName: server.Name,
		MemoryMB:   st.Memory,
		Identifier: server.Identifier,
	}
}

// errorDetail prefers the panel's detail text for the user-facing
// summary.
func errorDetail(err error) string {
	var apiErr *pterodactyl.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return "Unknown error"
}
