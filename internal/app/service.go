package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"meridian/api/internal/auth"
	"meridian/api/internal/config"
	"meridian/api/internal/guard"
	"meridian/api/internal/store"
)

// Session is the authenticated caller, decoded from the bearer token.
type Session struct {
	UserID   string
	UserName string
	Role     string
	Area     string
}

func (s Session) Principal() guard.Principal {
	return guard.Principal{
		ID:   s.UserID,
		Name: s.UserName,
		Role: guard.Normalize(s.Role),
		Area: s.Area,
	}
}

// dataStore is everything the service needs outside a save transaction.
type dataStore interface {
	Ping(context.Context) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByName(context.Context, string) (store.User, error)
	InsertUser(context.Context, store.User) error
	UpdateUserPassword(context.Context, string, string) error
	ListUsers(context.Context) ([]store.User, error)
	ListStrategicGoals(context.Context) ([]store.StrategicGoal, error)
	ListIndicators(context.Context) ([]store.Indicator, error)
	ListHistoricalData(context.Context) ([]store.HistoricalValue, error)
	ListIndicatorGoals(context.Context) ([]store.IndicatorGoal, error)
	ListObservations(context.Context) ([]store.Observation, error)
	ListRisks(context.Context) ([]store.Risk, error)
	ListActionPlans(context.Context) ([]store.ActionPlan, error)
	ListActionPlanUpdates(context.Context) ([]store.ActionPlanUpdate, error)
	ListAttachments(context.Context) ([]store.Attachment, error)
	ListAuditLog(context.Context) ([]store.AuditLogEntry, error)
	ListMeetings(context.Context) ([]store.Meeting, error)
	ListDecisions(context.Context) ([]store.Decision, error)
	ListDiscussionThreads(context.Context) ([]store.DiscussionThread, error)
	ListThreadReplies(context.Context) ([]store.Reply, error)
	ListNotifications(context.Context) ([]store.Notification, error)
	Begin(context.Context) (saveTx, error)
}

// saveTx is the transaction the reconciler drives. Every write of one save
// request goes through a single saveTx; Commit or Rollback ends it.
type saveTx interface {
	ListUserCredentials(context.Context) ([]store.UserCredential, error)
	UpsertUser(context.Context, store.User) error
	DeleteUser(context.Context, string) error
	DeleteAllStrategicGoals(context.Context) error
	InsertStrategicGoal(context.Context, store.StrategicGoal) error
	ListIndicatorAreas(context.Context) ([]store.IndicatorArea, error)
	UpsertIndicator(context.Context, store.Indicator) error
	DeleteIndicator(context.Context, string) error
	DeleteIndicatorChildren(context.Context, string) error
	InsertHistoricalValue(context.Context, store.HistoricalValue) error
	InsertIndicatorGoal(context.Context, store.IndicatorGoal) error
	InsertObservation(context.Context, store.Observation) error
	InsertRisk(context.Context, store.Risk) error
	InsertActionPlan(context.Context, store.ActionPlan) error
	InsertActionPlanUpdate(context.Context, store.ActionPlanUpdate) error
	InsertAttachment(context.Context, store.Attachment) error
	InsertAuditLogEntry(context.Context, store.AuditLogEntry) error
	DeleteAllMeetings(context.Context) error
	InsertMeeting(context.Context, store.Meeting) error
	InsertDecision(context.Context, store.Decision) error
	DeleteAllDiscussionThreads(context.Context) error
	InsertDiscussionThread(context.Context, store.DiscussionThread) error
	InsertThreadReply(context.Context, store.Reply) error
	DeleteAllNotifications(context.Context) error
	InsertNotification(context.Context, store.Notification) error
	Commit() error
	Rollback() error
}

type Service struct {
	cfg    config.Config
	store  dataStore
	logger zerolog.Logger
}

// pgStore adapts the concrete Postgres store to the service interfaces so
// Begin can return the saveTx abstraction.
type pgStore struct {
	*store.PostgresStore
}

func (s pgStore) Begin(ctx context.Context) (saveTx, error) {
	return s.PostgresStore.Begin(ctx)
}

func New(cfg config.Config, dataStore *store.PostgresStore, logger zerolog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		store:  pgStore{dataStore},
		logger: logger,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type RegisterInput struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Area          string   `json:"area"`
	Password      string   `json:"password"`
	ReadThreadIDs []string `json:"readThreadIds"`
}

// Register creates a user with a hashed password. The id and name must both
// be unused.
func (s *Service) Register(ctx context.Context, input RegisterInput) (store.User, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.Name = strings.TrimSpace(input.Name)
	if input.ID == "" || input.Name == "" || input.Password == "" {
		return store.User{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "id, name and password are required", nil)
	}

	if _, err := s.store.GetUserByID(ctx, input.ID); err == nil {
		return store.User{}, domainError(http.StatusConflict, "CONFLICT", "user id already exists", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, err
	}
	if _, err := s.store.GetUserByName(ctx, input.Name); err == nil {
		return store.User{}, domainError(http.StatusConflict, "CONFLICT", "user name already exists", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, err
	}

	password := input.Password
	if !auth.IsHash(password) {
		hashed, err := auth.HashPassword(password)
		if err != nil {
			return store.User{}, err
		}
		password = hashed
	}

	user := store.User{
		ID:            input.ID,
		Name:          input.Name,
		Role:          string(guard.Normalize(input.Role)),
		Area:          input.Area,
		Password:      password,
		ReadThreadIDs: input.ReadThreadIDs,
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		return store.User{}, err
	}

	user.Password = ""
	return user, nil
}

// LoginResult carries the signed token and the user it names.
type LoginResult struct {
	Token string     `json:"token"`
	User  store.User `json:"user"`
}

// Login authenticates by name and password. A stored legacy plain-text
// password that matches is rehashed in place before the token is issued, so
// every later login compares against the hash.
func (s *Service) Login(ctx context.Context, name, password string) (LoginResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return LoginResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "name and password are required", nil)
	}

	user, err := s.store.GetUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LoginResult{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials", nil)
		}
		return LoginResult{}, err
	}

	if auth.IsHash(user.Password) {
		if !auth.CheckPassword(user.Password, password) {
			return LoginResult{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials", nil)
		}
	} else {
		if user.Password != password {
			return LoginResult{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials", nil)
		}
		hashed, err := auth.HashPassword(password)
		if err != nil {
			return LoginResult{}, err
		}
		if err := s.store.UpdateUserPassword(ctx, user.ID, hashed); err != nil {
			return LoginResult{}, err
		}
		s.logger.Info().Str("user", user.ID).Msg("upgraded legacy plain-text password")
	}

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Name, user.Role, user.Area, s.cfg.TokenTTL)
	if err != nil {
		return LoginResult{}, err
	}

	user.Password = ""
	return LoginResult{Token: token, User: user}, nil
}

// SessionFromToken validates a bearer token and returns the session it
// encodes. The token is self-contained; no lookup happens here.
func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:   claims.Subject,
		UserName: claims.Name,
		Role:     claims.Role,
		Area:     claims.Area,
	}, nil
}
