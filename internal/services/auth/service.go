// Package auth registers accounts and checks their credentials.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mcoot/kidfeed/internal/dependencies/clock"
	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/credential"
	"github.com/mcoot/kidfeed/internal/services/policy"
	"github.com/mcoot/kidfeed/internal/storage"
)

// Registration is the signup form
type Registration struct {
	Handle      string
	Password    string
	DisplayName string
	Bio         string
	Role        model.Role

	// Parent accounts choose a PIN
	Pin string

	// Child accounts name their parent and confirm the link with the parent's PIN
	ParentHandle string
	ParentPin    string
}

// Service handles account registration and authentication
type Service struct {
	storage     storage.Storage
	clock       clock.Clock
	credentials credential.HashVerifier
	policies    *policy.Store
	logger      *slog.Logger
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, credentials credential.HashVerifier, policies *policy.Store, logger *slog.Logger) *Service {
	return &Service{
		storage:     storage,
		clock:       clock,
		credentials: credentials,
		policies:    policies,
		logger:      logger,
	}
}

func invalid(field, message string) error {
	return &model.ValidationError{Field: field, Message: message}
}

// Register validates the form and creates the account. Child accounts get the default policy.
func (s *Service) Register(ctx context.Context, reg Registration) (*model.Account, error) {
	handle := model.NormalizeHandle(reg.Handle)
	if handle == "" || reg.Password == "" {
		return nil, invalid("handle", "Username and password are required")
	}
	if !model.ValidHandle(handle) {
		return nil, invalid("handle", "Username may only use letters, numbers, '.', '_' and '-' (up to 32)")
	}
	displayName := strings.TrimSpace(reg.DisplayName)
	if displayName == "" {
		return nil, invalid("display_name", "Display name is required")
	}

	bio := strings.TrimSpace(reg.Bio)
	if bio == "" {
		bio = model.DefaultBio
	}

	account := &model.Account{
		Handle:      handle,
		DisplayName: displayName,
		Bio:         bio,
		Role:        reg.Role,
		CreatedAt:   s.clock.Now(),
	}

	switch reg.Role {
	case model.RoleParent:
		if reg.Pin == "" {
			return nil, invalid("pin", "Parent PIN is required for parent accounts")
		}
		if err := credential.ValidatePin(reg.Pin); err != nil {
			return nil, err
		}
		pinHash, err := s.credentials.Hash(reg.Pin)
		if err != nil {
			return nil, err
		}
		account.PinHash = pinHash
		account.ProfilePicture = model.AvatarDefault

	case model.RoleChild:
		parent, err := s.linkedParent(ctx, reg)
		if err != nil {
			return nil, err
		}
		account.ParentHandle = parent.Handle
		account.ProfilePicture = model.AvatarChildDefault

	default:
		return nil, invalid("role", "Account type must be parent or child")
	}

	passwordHash, err := s.credentials.Hash(reg.Password)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = passwordHash

	if err := s.storage.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, model.ErrDuplicateHandle) {
			return nil, invalid("handle", "Username already taken")
		}
		return nil, model.WrapStoreError("create account", err)
	}

	if account.IsChild() {
		if err := s.policies.Initialize(ctx, account.Handle); err != nil {
			return nil, err
		}
	}

	s.logger.Info("account registered",
		slog.String("handle", string(account.Handle)),
		slog.String("role", string(account.Role)),
	)
	return account, nil
}

// linkedParent resolves and confirms the parent named in a child registration
func (s *Service) linkedParent(ctx context.Context, reg Registration) (*model.Account, error) {
	parentHandle := model.NormalizeHandle(reg.ParentHandle)
	if parentHandle == "" {
		return nil, invalid("parent_handle", "Parent username is required for child accounts")
	}
	parent, err := s.storage.GetAccount(ctx, parentHandle)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, invalid("parent_handle", "Parent account not found")
		}
		return nil, model.WrapStoreError("get account", err)
	}
	if !parent.IsParent() {
		return nil, invalid("parent_handle", "Parent account not found")
	}
	if !s.credentials.Verify(reg.ParentPin, parent.PinHash) {
		return nil, model.ErrIncorrectPin
	}
	return parent, nil
}

// Authenticate checks a handle and password
func (s *Service) Authenticate(ctx context.Context, handle, password string) (*model.Account, error) {
	account, err := s.storage.GetAccount(ctx, model.NormalizeHandle(handle))
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, model.WrapStoreError("get account", err)
	}

	if !s.credentials.Verify(password, account.PasswordHash) {
		return nil, model.ErrInvalidCredentials
	}
	return account, nil
}
