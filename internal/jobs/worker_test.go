package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockStaleDocumentStore is a mock implementation of StaleDocumentStore
type MockStaleDocumentStore struct {
	mock.Mock
}

func (m *MockStaleDocumentStore) MarkStaleProcessing(ctx context.Context, maxAge time.Duration) (int64, error) {
	args := m.Called(ctx, maxAge)
	return args.Get(0).(int64), args.Error(1)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestJanitor_ProcessJobs_MarksStaleDocuments(t *testing.T) {
	store := new(MockStaleDocumentStore)
	store.On("MarkStaleProcessing", mock.Anything, 30*time.Minute).Return(int64(2), nil)

	janitor := NewJanitor(store, 30*time.Minute)
	err := janitor.ProcessJobs(context.Background())

	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestJanitor_ProcessJobs_NothingStale(t *testing.T) {
	store := new(MockStaleDocumentStore)
	store.On("MarkStaleProcessing", mock.Anything, time.Hour).Return(int64(0), nil)

	janitor := NewJanitor(store, time.Hour)
	err := janitor.ProcessJobs(context.Background())

	assert.NoError(t, err)
}

func TestJanitor_ProcessJobs_StoreError(t *testing.T) {
	store := new(MockStaleDocumentStore)
	store.On("MarkStaleProcessing", mock.Anything, mock.Anything).
		Return(int64(0), errors.New("database error"))

	janitor := NewJanitor(store, time.Hour)
	err := janitor.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to sweep stale documents")
}
