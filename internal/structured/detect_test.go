package structured

import "testing"

func TestDetector_Observe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		delta string
		want  bool
	}{
		{"plain prose", "Bitcoin is up 3% today.", false},
		{"fenced json opener", "Here you go:\n```json\n", true},
		{"fenced json opener uppercase", "```JSON", true},
		{"bare json label", "json", true},
		{"json label with whitespace", "  json\n", true},
		{"json mentioned mid-sentence", "the json format is popular", false},
		{"leading brace", `{"summary": "BTC`, true},
		{"leading brace after fence", "```\n{\"summary\":", true},
		{"brace mid-sentence", "an object looks like {this}", false},
		{"empty delta", "", false},
		{"plain fence without brace", "```\nsome code\n```", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var d Detector
			if got := d.Observe(tt.delta); got != tt.want {
				t.Errorf("Observe(%q) = %v, want %v", tt.delta, got, tt.want)
			}
		})
	}
}

// Once tripped, the flag holds for all later deltas even when they look like
// ordinary prose.
func TestDetector_Sticky(t *testing.T) {
	t.Parallel()

	var d Detector
	if d.Observe("Sure, here is the layout:") {
		t.Fatal("prose delta tripped the detector")
	}
	if !d.Observe("```json") {
		t.Fatal("fence opener did not trip the detector")
	}
	for _, delta := range []string{`"summary": "BTC up",`, "plain words", ""} {
		if !d.Observe(delta) {
			t.Errorf("Observe(%q) = false after trip, want sticky true", delta)
		}
	}
	if !d.Structured() {
		t.Error("Structured() = false, want true")
	}
}
