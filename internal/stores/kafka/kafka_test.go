package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/twmb/franz-go/pkg/kgo"
)

func partitionRecords(offsets ...int64) []*kgo.Record {
	records := make([]*kgo.Record, 0, len(offsets))
	for _, off := range offsets {
		records = append(records, &kgo.Record{
			Topic:     TopicCartCheckout,
			Partition: 0,
			Offset:    off,
			Key:       []byte(fmt.Sprintf("key-%d", off)),
			Value:     []byte(fmt.Sprintf("value-%d", off)),
		})
	}
	return records
}

func TestHandleInOrderCommitsEachSuccess(t *testing.T) {
	records := partitionRecords(5, 6, 7)

	var handled []string
	handle := func(ctx context.Context, key, value []byte) error {
		handled = append(handled, string(key))
		return nil
	}
	var committed []int64
	commit := func(ctx context.Context, r *kgo.Record) error {
		committed = append(committed, r.Offset)
		return nil
	}

	handleInOrder(context.Background(), records, handle, commit)

	if len(handled) != 3 {
		t.Fatalf("handled %d records, want 3", len(handled))
	}
	if len(committed) != 3 || committed[0] != 5 || committed[1] != 6 || committed[2] != 7 {
		t.Fatalf("committed offsets %v, want [5 6 7]", committed)
	}
}

// A failed record must park the whole partition batch: committing any later
// offset would acknowledge the failed one and it would never be redelivered.
func TestHandleInOrderStopsPartitionAtFirstFailure(t *testing.T) {
	records := partitionRecords(5, 6, 7)

	var handled []string
	handle := func(ctx context.Context, key, value []byte) error {
		handled = append(handled, string(key))
		if string(key) == "key-5" {
			return errors.New("storage unavailable")
		}
		return nil
	}
	var committed []int64
	commit := func(ctx context.Context, r *kgo.Record) error {
		committed = append(committed, r.Offset)
		return nil
	}

	handleInOrder(context.Background(), records, handle, commit)

	if len(handled) != 1 || handled[0] != "key-5" {
		t.Fatalf("handled %v, want only the failing record", handled)
	}
	if len(committed) != 0 {
		t.Fatalf("committed offsets %v after a failure, want none", committed)
	}
}

func TestHandleInOrderFailureMidBatchKeepsEarlierCommits(t *testing.T) {
	records := partitionRecords(5, 6, 7)

	handle := func(ctx context.Context, key, value []byte) error {
		if string(key) == "key-6" {
			return errors.New("storage unavailable")
		}
		return nil
	}
	var committed []int64
	commit := func(ctx context.Context, r *kgo.Record) error {
		committed = append(committed, r.Offset)
		return nil
	}

	handleInOrder(context.Background(), records, handle, commit)

	if len(committed) != 1 || committed[0] != 5 {
		t.Fatalf("committed offsets %v, want [5]", committed)
	}
}

// A commit failure loses only the checkpoint; the record was processed, so
// the walk keeps going and later commits re-cover the offset.
func TestHandleInOrderContinuesPastCommitFailure(t *testing.T) {
	records := partitionRecords(5, 6)

	handle := func(ctx context.Context, key, value []byte) error { return nil }
	var committed []int64
	commit := func(ctx context.Context, r *kgo.Record) error {
		if r.Offset == 5 {
			return errors.New("coordinator unavailable")
		}
		committed = append(committed, r.Offset)
		return nil
	}

	handleInOrder(context.Background(), records, handle, commit)

	if len(committed) != 1 || committed[0] != 6 {
		t.Fatalf("committed offsets %v, want [6]", committed)
	}
}
