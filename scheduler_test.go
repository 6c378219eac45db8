package mosaic

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSchedulerRunsInSubmissionOrder(t *testing.T) {
	var ran []string
	gate := make(chan struct{})
	s := newScheduler(func(b *PendingBatch) {
		<-gate
		ran = append(ran, b.ID)
	})

	var expected []string
	for i := range 5 {
		id := fmt.Sprintf("batch-%d", i)
		expected = append(expected, id)
		if err := s.submit(&PendingBatch{ID: id}); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}
	close(gate)
	s.close()

	if diff := cmp.Diff(expected, ran); diff != "" {
		t.Errorf("run order mismatch (-want+got):\n%v", diff)
	}
}

func TestSchedulerRejectsAfterClose(t *testing.T) {
	s := newScheduler(func(*PendingBatch) {})
	s.close()
	s.close()

	if err := s.submit(&PendingBatch{ID: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
