package changelog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/ps-vitor/phone-prices/internal/domain"
)

func change(model string, usd float64) Change {
	return Change{
		RunID:  "run-1",
		Brand:  domain.BrandSamsung,
		Model:  model,
		Old:    domain.Price{USD: 1, SAR: 4},
		New:    domain.Price{USD: usd, SAR: usd * 3.75},
		Source: "noon.com",
		TS:     1700000000000,
	}
}

func TestFileWriter_Append(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, "price-changes.jsonl")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	c1, c2 := change("Galaxy S24", 800), change("Galaxy S24 Ultra", 1200)
	for _, c := range []Change{c1, c2} {
		if err := w.Append(context.Background(), c); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "price-changes.jsonl"))
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	var got []Change
	for s.Scan() {
		var c Change
		if err := json.Unmarshal(s.Bytes(), &c); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, c)
	}
	if len(got) != 2 || got[0] != c1 || got[1] != c2 {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestFileWriter_CancelledContextWritesNothing(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, "price-changes.jsonl")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Append(ctx, change("Galaxy S24", 800)); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "price-changes.jsonl")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("changelog file written after cancellation: %v", err)
	}
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaWriter_KeysByModel(t *testing.T) {
	fk := &fakeKafkaWriter{}
	kw := NewKafkaWriterWith(fk)
	if err := kw.Append(context.Background(), change("Galaxy S24 Ultra", 1200)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fk.msgs) != 1 || string(fk.msgs[0].Key) != "samsung#s24ultra" {
		t.Fatalf("msgs=%+v", fk.msgs)
	}
}

func TestMultiWriter_StopsOnFirstError(t *testing.T) {
	ok, failing := &fakeKafkaWriter{}, &fakeKafkaWriter{fail: true}
	m := NewMultiWriter(NewKafkaWriterWith(failing), NewKafkaWriterWith(ok))
	if err := m.Append(context.Background(), change("Galaxy S24", 800)); err == nil {
		t.Fatalf("expected error")
	}
	if len(ok.msgs) != 0 {
		t.Fatalf("second writer should not be reached")
	}
}
