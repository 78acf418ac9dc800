package export

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trust_gateway/internal/models"
	"trust_gateway/internal/queue"
)

func exportTestEntry() *models.AuditEntry {
	return models.NewAuditEntry(uuid.New(), nil, "session-1", "message-1",
		models.SensitivityAssessment{Level: models.LevelConfidential, PIIDetected: true, PIICategories: []string{"email"}},
		models.RoutingDecision{IsLocal: true, ModelID: "local-1", ModelProvider: "ollama", Reason: models.ReasonSensitivityPolicy},
		models.CostRecord{InputTokens: 100, OutputTokens: 50, CloudCostUSD: 0.00075, CostSavedUSD: 0.00075})
}

// fakeWriter records batches and can be scripted to fail.
type fakeWriter struct {
	mu       sync.Mutex
	batches  [][]*models.AuditEntry
	failures int
}

func (f *fakeWriter) WriteBatch(ctx context.Context, entries []*models.AuditEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return "", errors.New("destination unavailable")
	}
	f.batches = append(f.batches, entries)
	return "fake://batch", nil
}

func (f *fakeWriter) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func workerConfig() *queue.Config {
	config := queue.DefaultConfig("export-test")
	config.BatchTimeout = 50 * time.Millisecond
	config.MaxRetries = 1
	config.RetryBackoff = 10 * time.Millisecond
	return config
}

func TestWorker_ExportsBatch(t *testing.T) {
	config := workerConfig()
	q := queue.NewMemoryQueue(config)
	dlq := queue.NewMemoryDeadLetterQueue()
	defer q.Close()
	defer dlq.Close()

	writer := &fakeWriter{}
	worker := NewWorker(q, dlq, writer, config)

	ctx := context.Background()
	worker.Start(ctx)

	require.NoError(t, worker.Enqueue(ctx, exportTestEntry()))
	require.NoError(t, worker.Enqueue(ctx, exportTestEntry()))

	require.Eventually(t, func() bool {
		return writer.batchCount() > 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, worker.Stop())

	// Nothing ended up on the DLQ.
	items, err := dlq.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestWorker_TransientFailureRetried(t *testing.T) {
	config := workerConfig()
	q := queue.NewMemoryQueue(config)
	dlq := queue.NewMemoryDeadLetterQueue()
	defer q.Close()
	defer dlq.Close()

	// First write fails, the retry succeeds.
	writer := &fakeWriter{failures: 1}
	worker := NewWorker(q, dlq, writer, config)

	ctx := context.Background()
	worker.Start(ctx)

	require.NoError(t, worker.Enqueue(ctx, exportTestEntry()))

	require.Eventually(t, func() bool {
		return writer.batchCount() == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, worker.Stop())

	items, err := dlq.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestWorker_ExhaustedRetriesGoToDLQ(t *testing.T) {
	config := workerConfig()
	q := queue.NewMemoryQueue(config)
	dlq := queue.NewMemoryDeadLetterQueue()
	defer q.Close()
	defer dlq.Close()

	// Initial attempt plus one retry, both fail.
	writer := &fakeWriter{failures: 10}
	worker := NewWorker(q, dlq, writer, config)

	ctx := context.Background()
	worker.Start(ctx)

	entry := exportTestEntry()
	require.NoError(t, worker.Enqueue(ctx, entry))

	require.Eventually(t, func() bool {
		items, err := dlq.List(ctx, 10)
		return err == nil && len(items) == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, worker.Stop())

	items, err := dlq.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entry.AuditID, items[0].Entry.AuditID)
	assert.Contains(t, items[0].Error, "destination unavailable")
}

func TestWorker_RetryDeadLetterItem(t *testing.T) {
	config := workerConfig()
	q := queue.NewMemoryQueue(config)
	dlq := queue.NewMemoryDeadLetterQueue()
	defer q.Close()
	defer dlq.Close()

	writer := &fakeWriter{}
	worker := NewWorker(q, dlq, writer, config)

	ctx := context.Background()
	entry := exportTestEntry()
	require.NoError(t, dlq.Add(ctx, entry, errors.New("previous failure")))

	items, err := worker.DeadLetterItems(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, worker.RetryDeadLetterItem(ctx, items[0].ID))

	// Back on the queue, gone from the DLQ.
	length, err := worker.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, length)

	items, err = worker.DeadLetterItems(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFileWriter_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "audit-%s.jsonl")

	w, err := NewFileWriter(template, 1<<20, 3)
	require.NoError(t, err)
	defer w.Close()

	entries := []*models.AuditEntry{exportTestEntry(), exportTestEntry()}
	dest, err := w.WriteBatch(context.Background(), entries)
	require.NoError(t, err)
	require.NotEmpty(t, dest)

	file, err := os.Open(dest)
	require.NoError(t, err)
	defer file.Close()

	var lines int
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded models.AuditEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestFileWriter_Rotation(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "audit-%s.jsonl")

	// Tiny size limit forces a rotation per batch.
	w, err := NewFileWriter(template, 64, 10)
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	_, err = w.WriteBatch(ctx, []*models.AuditEntry{exportTestEntry()})
	require.NoError(t, err)
	_, err = w.WriteBatch(ctx, []*models.AuditEntry{exportTestEntry()})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	require.NoError(t, err)
	assert.Greater(t, len(matches), 1)
}

func TestFileWriter_CleanupKeepsMaxFiles(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "audit-%s.jsonl")

	w, err := NewFileWriter(template, 64, 2)
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err = w.WriteBatch(ctx, []*models.AuditEntry{exportTestEntry()})
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 3)
}

func TestFileWriter_ClosedWriterRejectsBatches(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "audit-%s.jsonl")

	w, err := NewFileWriter(template, 1<<20, 3)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.WriteBatch(context.Background(), []*models.AuditEntry{exportTestEntry()})
	assert.Error(t, err)
}

func TestNoopWriter(t *testing.T) {
	w := NewNoopWriter()
	dest, err := w.WriteBatch(context.Background(), []*models.AuditEntry{exportTestEntry()})
	require.NoError(t, err)
	assert.Empty(t, dest)
}
