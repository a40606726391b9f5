package factory

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/kidfeed/internal/dependencies/mocks"
	"github.com/mcoot/kidfeed/internal/services/app"
	"github.com/mcoot/kidfeed/internal/services/classifier"
	"github.com/mcoot/kidfeed/internal/services/credential"
	"github.com/mcoot/kidfeed/internal/storage/memory"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	Memory    *memory.Storage
}

// NewTestApp creates an App on memory storage with a mock clock and cheap hashing
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	a := newWithDependencies(
		store,
		mockClock,
		credential.NewBcrypt(bcrypt.MinCost),
		classifier.Default(),
		app.DefaultConfig(),
		logger,
	)

	return &TestApp{
		App:       a,
		MockClock: mockClock,
		Memory:    store,
	}
}
