package discovery

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"
)

func TestDiscover(t *testing.T) {
	n := 4
	fatal := make(chan error, n)
	results := make(chan []string, n)
	for i := range n {
		go func() {
			entry := Entry{Address: fmt.Sprintf("10.0.0.%d:7000", i), Name: fmt.Sprint(i), Table: "t1"}
			discover, err := NewWithOptions(entry, WithPortRange(9100, 9110), WithAttempts(5), WithInterval(200*time.Millisecond))
			if err != nil {
				fatal <- err
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			addresses, err := discover.Gather(ctx, n)
			if err != nil {
				fatal <- err
				return
			}
			results <- addresses
			// Keep advertising while the slower peers finish their scans.
			time.Sleep(2 * time.Second)
			fatal <- discover.Close()
		}()
	}
	for range n {
		if err := <-fatal; err != nil {
			t.Fatal(err)
		}
	}
	close(results)
	var expected []string
	for i := range n {
		expected = append(expected, fmt.Sprintf("10.0.0.%d:7000", i))
	}
	for addresses := range results {
		if !slices.Equal(addresses, expected) {
			t.Fatalf("expected %v, got %v", expected, addresses)
		}
	}
}

func TestDiscoverIgnoresOtherTables(t *testing.T) {
	other, err := NewWithOptions(Entry{Address: "10.0.1.1:7000", Table: "other"}, WithPortRange(9120, 9121), WithAttempts(0))
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	d, err := NewWithOptions(Entry{Address: "10.0.1.2:7000", Table: "mine"}, WithPortRange(9120, 9121), WithAttempts(3), WithInterval(100*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := d.Gather(ctx, 2); err == nil {
		t.Fatal("found a peer of another table")
	}
}
