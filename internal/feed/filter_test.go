package feed

import "testing"

func TestFilterMatches(t *testing.T) {
	item := ActivityItem{
		ID:          "1",
		Type:        ActivityTypeAlert,
		Severity:    SeverityError,
		Title:       "Disk Pressure",
		Description: "node storage above threshold",
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"zero filter matches", Filter{}, true},
		{"all sentinels match", Filter{Type: FilterAll, Severity: FilterAll}, true},
		{"search in title case-insensitive", Filter{Search: "disk"}, true},
		{"search in description", Filter{Search: "THRESHOLD"}, true},
		{"search miss", Filter{Search: "network"}, false},
		{"type match", Filter{Type: "alert"}, true},
		{"type miss", Filter{Type: "metric"}, false},
		{"severity match", Filter{Severity: "error"}, true},
		{"severity miss", Filter{Severity: "critical"}, false},
		{"all three match", Filter{Search: "disk", Type: "alert", Severity: "error"}, true},
		{"one predicate failing fails all", Filter{Search: "disk", Type: "alert", Severity: "info"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(item); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterMissingSeverity(t *testing.T) {
	item := ActivityItem{ID: "1", Type: ActivityTypeSystem, Title: "maintenance window"}

	if (Filter{Severity: "info"}).Matches(item) {
		t.Error("item without severity matched a concrete severity filter")
	}
	if !(Filter{Severity: FilterAll}).Matches(item) {
		t.Error("item without severity did not match the all sentinel")
	}
	if !(Filter{}).Matches(item) {
		t.Error("item without severity did not match an empty severity filter")
	}
}

func TestBufferFilteredComposition(t *testing.T) {
	b := NewBuffer(10, nil)
	b.Push(ActivityItem{ID: "1", Type: ActivityTypeUser, Title: "login", Description: "user signed in"})
	b.Push(ActivityItem{ID: "2", Type: ActivityTypeSystem, Title: "deploy", Description: "rollout finished on cluster-7"})
	b.Push(ActivityItem{ID: "3", Type: ActivityTypeAlert, Severity: SeverityCritical, Title: "outage", Description: "api unreachable"})

	// Scenario: search text present only in item 2's description,
	// type/severity both "all"
	got := b.Filtered(Filter{Search: "cluster-7", Type: FilterAll, Severity: FilterAll})
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected only item 2, got %v", got)
	}

	// Match-everything filters return the full buffer in original order
	all := b.Filtered(Filter{Type: FilterAll, Severity: FilterAll})
	if len(all) != 3 {
		t.Fatalf("expected full buffer, got %d items", len(all))
	}
	for i, want := range []string{"3", "2", "1"} {
		if all[i].ID != want {
			t.Errorf("all[%d].ID = %s, want %s (ordering must be preserved)", i, all[i].ID, want)
		}
	}

	// Filtering never mutates the buffer
	if b.Len() != 3 {
		t.Errorf("Filtered mutated the buffer: len = %d", b.Len())
	}
}
