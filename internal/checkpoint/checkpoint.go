// Package checkpoint publishes a manifest after every saved batch so an
// interrupted run can pick up where it stopped.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"
)

// ErrNoCheckpoint means no checkpoint was ever published for the brand.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Checkpoint describes the last batch persisted by a run. BatchIndex counts
// completed batches, starting at 1.
type Checkpoint struct {
	RunID        string `json:"runId"`
	Brand        string `json:"brand"`
	BatchIndex   int    `json:"batchIndex"`
	TotalBatches int    `json:"totalBatches"`
	TotalEntries int    `json:"totalEntries"`
	Complete     bool   `json:"complete"`
	CreatedAt    int64  `json:"createdAt"`
}

type Publisher interface {
	Publish(ctx context.Context, cp Checkpoint) error
}

type Reader interface {
	ReadLatest(brand string) (Checkpoint, error)
}

// MultiPublisher writes to multiple publishers sequentially.
type MultiPublisher struct {
	pubs []Publisher
}

func NewMultiPublisher(pubs ...Publisher) *MultiPublisher {
	return &MultiPublisher{pubs: pubs}
}

func (m *MultiPublisher) Publish(ctx context.Context, cp Checkpoint) error {
	for _, p := range m.pubs {
		if err := p.Publish(ctx, cp); err != nil {
			return err
		}
	}
	return nil
}

// FilesystemManifest keeps checkpoint.<brand>.latest.json per brand.
type FilesystemManifest struct {
	baseDir string
	mu      sync.Mutex
}

func NewFilesystemManifest(baseDir string) *FilesystemManifest {
	return &FilesystemManifest{baseDir: baseDir}
}

func (f *FilesystemManifest) path(brand string) string {
	return filepath.Join(f.baseDir, "checkpoint."+strings.ToLower(brand)+".latest.json")
}

func (f *FilesystemManifest) Publish(_ context.Context, cp Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.baseDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	out, err := os.Create(f.path(cp.Brand))
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer out.Close()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&cp); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func (f *FilesystemManifest) ReadLatest(brand string) (Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path(brand))
	if errors.Is(err, os.ErrNotExist) {
		return Checkpoint{}, ErrNoCheckpoint
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// KafkaManifest publishes checkpoints as compacted records keyed per brand.
type KafkaManifest struct {
	writer    kafkaMessageWriter
	keyPrefix string
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaManifest creates a Kafka checkpoint publisher.
// bootstrap can be comma-separated brokers.
func NewKafkaManifest(bootstrap, topic, keyPrefix string) *KafkaManifest {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			brokers = append(brokers, a)
		}
	}
	return &KafkaManifest{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}, keyPrefix: keyPrefix}
}

// NewKafkaManifestWith is only for tests to inject a fake writer.
func NewKafkaManifestWith(w kafkaMessageWriter, keyPrefix string) *KafkaManifest {
	return &KafkaManifest{writer: w, keyPrefix: keyPrefix}
}

func (k *KafkaManifest) Publish(ctx context.Context, cp Checkpoint) error {
	b, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	key := k.keyPrefix + strings.ToLower(cp.Brand)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

func (k *KafkaManifest) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// ResumeFrom returns how many leading batches of a new run can be skipped,
// given the latest checkpoint. Only an incomplete run over a catalog of the
// same size and batch layout is resumed.
func ResumeFrom(cp Checkpoint, totalEntries, totalBatches int) int {
	if cp.Complete || cp.TotalEntries != totalEntries || cp.TotalBatches != totalBatches {
		return 0
	}
	if cp.BatchIndex <= 0 || cp.BatchIndex >= totalBatches {
		return 0
	}
	return cp.BatchIndex
}
