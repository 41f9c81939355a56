// internal/api/v1/test_utils.go: shared helpers and mocks for API tests.
package api

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/pipeline"
	"github.com/stretchr/testify/mock"
)

// MockDataStore is a testify mock over the datastore interface.
type MockDataStore struct {
	mock.Mock
}

func (m *MockDataStore) Open() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDataStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDataStore) SaveAssessment(assessment *datastore.Assessment) error {
	args := m.Called(assessment)
	return args.Error(0)
}

func (m *MockDataStore) GetAssessment(publicID string) (*datastore.Assessment, error) {
	args := m.Called(publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*datastore.Assessment), args.Error(1)
}

func (m *MockDataStore) RecentAssessments(limit int) ([]datastore.Assessment, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.Assessment), args.Error(1)
}

func (m *MockDataStore) SaveChatMessage(message *datastore.ChatMessage) error {
	args := m.Called(message)
	return args.Error(0)
}

func (m *MockDataStore) GetChatHistory(assessmentID uint, sessionID string, limit int) ([]datastore.ChatMessage, error) {
	args := m.Called(assessmentID, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]datastore.ChatMessage), args.Error(1)
}

func (m *MockDataStore) ExecuteReadOnly(ctx context.Context, query string, limit int) (*datastore.QueryResult, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*datastore.QueryResult), args.Error(1)
}

// MockService is a testify mock over the pipeline service seam.
type MockService struct {
	mock.Mock
}

func (m *MockService) Assess(ctx context.Context, req pipeline.AssessRequest) (*pipeline.AssessResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.AssessResult), args.Error(1)
}

func (m *MockService) Chat(ctx context.Context, req pipeline.ChatRequest) (*pipeline.ChatResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.ChatResult), args.Error(1)
}

// setupTestEnvironment creates an echo instance, mocked collaborators and a
// fully routed controller for handler tests. No background goroutines are
// started, so no teardown beyond the mocks is needed.
func setupTestEnvironment(t *testing.T) (*echo.Echo, *MockDataStore, *MockService, *Controller) {
	t.Helper()

	e := echo.New()

	mockDS := new(MockDataStore)
	mockSvc := new(MockService)

	settings := &conf.Settings{
		WebServer: conf.WebServerSettings{
			Debug: true,
		},
	}

	logger := log.New(os.Stdout, "API TEST: ", log.LstdFlags)

	controller, err := New(e, mockDS, mockSvc, settings, logger, nil)
	if err != nil {
		t.Fatalf("Failed to create test API controller: %v", err)
	}

	return e, mockDS, mockSvc, controller
}
