package reconcile

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   Hashes
		want Decision
	}{
		{"absent locally", Hashes{Template: "t", Last: "l"}, Decision{Outcome: Create}},
		{"absent, never synced", Hashes{Template: "t"}, Decision{Outcome: Create}},
		{"matches, lock current", Hashes{Template: "t", Project: "t", Last: "t"}, Decision{Outcome: UpToDate}},
		{"matches, stale lock", Hashes{Template: "t", Project: "t", Last: "l"}, Decision{Outcome: UpToDate, Heal: true}},
		{"matches, no lock entry", Hashes{Template: "t", Project: "t"}, Decision{Outcome: UpToDate, Heal: true}},
		{"untouched since last sync", Hashes{Template: "v2", Project: "v1", Last: "v1"}, Decision{Outcome: TemplateUpdated}},
		{"edited locally", Hashes{Template: "v2", Project: "v3", Last: "v1"}, Decision{Outcome: Diverged}},
		{"edited, template unchanged", Hashes{Template: "v1", Project: "v3", Last: "v1"}, Decision{Outcome: Diverged}},
		{"never synced, differs", Hashes{Template: "v2", Project: "v3"}, Decision{Outcome: Diverged}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			if got != tt.want {
				t.Errorf("Classify(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	if Diverged.String() != "diverged" || Outcome(42).String() != "unknown" {
		t.Errorf("unexpected outcome names: %s %s", Diverged, Outcome(42))
	}
}
