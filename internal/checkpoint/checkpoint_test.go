package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestFilesystemManifest_PerBrandLatest(t *testing.T) {
	fm := NewFilesystemManifest(t.TempDir())
	ctx := context.Background()

	if _, err := fm.ReadLatest("Samsung"); !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("want ErrNoCheckpoint, got %v", err)
	}

	for i := 1; i <= 2; i++ {
		cp := Checkpoint{RunID: "r1", Brand: "Samsung", BatchIndex: i, TotalBatches: 5, TotalEntries: 14}
		if err := fm.Publish(ctx, cp); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := fm.Publish(ctx, Checkpoint{RunID: "r2", Brand: "Apple", BatchIndex: 1, TotalBatches: 1, Complete: true}); err != nil {
		t.Fatal(err)
	}

	got, err := fm.ReadLatest("Samsung")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.RunID != "r1" || got.BatchIndex != 2 || got.Complete {
		t.Fatalf("got %+v", got)
	}
}

type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaManifest_Publish(t *testing.T) {
	fk := &fakeKafkaWriter{}
	km := NewKafkaManifestWith(fk, "price-checkpoint-")
	if err := km.Publish(context.Background(), Checkpoint{RunID: "r1", Brand: "Apple"}); err != nil {
		t.Fatal(err)
	}
	if len(fk.msgs) != 1 || string(fk.msgs[0].Key) != "price-checkpoint-apple" {
		t.Fatalf("msgs=%+v", fk.msgs)
	}
}

func TestMultiPublisher_PropagatesError(t *testing.T) {
	mp := NewMultiPublisher(NewFilesystemManifest(t.TempDir()), NewKafkaManifestWith(&fakeKafkaWriter{fail: true}, "k-"))
	if err := mp.Publish(context.Background(), Checkpoint{Brand: "Samsung"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResumeFrom(t *testing.T) {
	base := Checkpoint{BatchIndex: 2, TotalBatches: 5, TotalEntries: 14}
	tests := []struct {
		name   string
		cp     Checkpoint
		n, b   int
		expect int
	}{
		{"interrupted", base, 14, 5, 2},
		{"complete", Checkpoint{BatchIndex: 5, TotalBatches: 5, TotalEntries: 14, Complete: true}, 14, 5, 0},
		{"catalog grew", base, 15, 5, 0},
		{"layout changed", base, 14, 7, 0},
		{"none", Checkpoint{}, 14, 5, 0},
	}
	for _, tc := range tests {
		if got := ResumeFrom(tc.cp, tc.n, tc.b); got != tc.expect {
			t.Errorf("%s: got %d want %d", tc.name, got, tc.expect)
		}
	}
}
