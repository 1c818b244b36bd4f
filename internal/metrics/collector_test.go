package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCollectorRecord(t *testing.T) {
	c := NewCollector()

	c.Record(OpRetrieve, 10*time.Millisecond, nil)
	c.Record(OpRetrieve, 30*time.Millisecond, nil)
	c.Record(OpRetrieve, 20*time.Millisecond, errors.New("store down"))

	snap := c.Snapshot()
	if snap.Retrieve == nil {
		t.Fatal("expected retrieve snapshot")
	}
	if snap.Retrieve.Count != 3 {
		t.Errorf("Count = %d, want 3", snap.Retrieve.Count)
	}
	if snap.Retrieve.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Retrieve.Errors)
	}
	if snap.Retrieve.MinTimeMs != 10 {
		t.Errorf("MinTimeMs = %d, want 10", snap.Retrieve.MinTimeMs)
	}
	if snap.Retrieve.MaxTimeMs != 30 {
		t.Errorf("MaxTimeMs = %d, want 30", snap.Retrieve.MaxTimeMs)
	}
	if snap.Retrieve.AvgTimeMs != 20 {
		t.Errorf("AvgTimeMs = %v, want 20", snap.Retrieve.AvgTimeMs)
	}
}

func TestCollectorEmptySnapshot(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()

	if snap.Embed != nil || snap.Retrieve != nil || snap.Prune != nil {
		t.Error("operations without data should be nil in the snapshot")
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %v, want >= 0", snap.UptimeSeconds)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record(OpEmbed, time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Embed == nil || snap.Embed.Count != 800 {
		t.Fatalf("expected 800 recorded embeds, got %+v", snap.Embed)
	}
}
