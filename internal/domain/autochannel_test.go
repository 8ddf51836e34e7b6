package domain

import "testing"

func TestRenderChannelName(t *testing.T) {
	tests := []struct {
		pattern string
		n       int
		want    string
	}{
		{"Auto-{number}", 1, "Auto-1"},
		{"Auto-{number}", 42, "Auto-42"},
		{"Sala {number} 🎮", 3, "Sala 3 🎮"},
		{"{number}-{number}", 2, "2-2"},
		// sin placeholder: apendeamos para no colisionar
		{"Duo", 7, "Duo 7"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := RenderChannelName(tt.pattern, tt.n); got != tt.want {
				t.Errorf("RenderChannelName(%q, %d) = %q, want %q", tt.pattern, tt.n, got, tt.want)
			}
		})
	}
}
