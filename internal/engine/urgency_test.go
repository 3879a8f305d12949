package engine

import (
	"testing"
)

func TestScoreUrgencyTiers(t *testing.T) {
	e := New()

	tests := []struct {
		name  string
		input string
		tier  UrgencyTier
	}{
		{
			name:  "trivial greeting",
			input: "hola",
			tier:  UrgencyBaja,
		},
		{
			name:  "calm complaint",
			input: "me siento molesto en el trabajo",
			tier:  UrgencyBaja,
		},
		{
			name:  "urgent help request",
			input: "Necesito ayuda urgente",
			tier:  UrgencyAlta,
		},
		{
			name:  "shouted emergency",
			input: "¡EMERGENCIA! VENGAN YA, PELIGRO GRAVE AQUÍ!!!",
			tier:  UrgencyEmergencia,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, tier := e.ScoreUrgency(tt.input)
			if tier != tt.tier {
				t.Errorf("expected tier %s, got %s", tt.tier, tier)
			}
		})
	}
}

func TestScoreUrgencyWeights(t *testing.T) {
	e := New()

	// One urgency pattern hit (x2), one critical keyword occurrence (x1.5).
	score, tier := e.ScoreUrgency("es urgente")
	if score != 3.5 {
		t.Errorf("expected score 3.5, got %v", score)
	}
	if tier != UrgencyMedia {
		t.Errorf("expected tier MEDIA, got %s", tier)
	}

	// One violence pattern hit (x3).
	score, _ = e.ScoreUrgency("hubo un golpe")
	if score != 3 {
		t.Errorf("expected score 3, got %v", score)
	}
}

func TestScoreUrgencyExclamationBonus(t *testing.T) {
	e := New()

	score, tier := e.ScoreUrgency("ven aqui! ya te dije! rapido!")
	// "ya" matches an urgency pattern (x2) and three exclamation marks add 2.
	if score != 4 {
		t.Errorf("expected score 4, got %v", score)
	}
	if tier != UrgencyMedia {
		t.Errorf("expected tier MEDIA, got %s", tier)
	}

	// Two exclamation marks stay under the bonus threshold.
	score, _ = e.ScoreUrgency("ven aqui! te dije!")
	if score != 0 {
		t.Errorf("expected score 0, got %v", score)
	}
}

func TestScoreUrgencyShoutingBonus(t *testing.T) {
	e := New()

	// Three all-caps words add a single point.
	score, _ := e.ScoreUrgency("ESTO PASA SIEMPRE aqui")
	if score != 1 {
		t.Errorf("expected score 1, got %v", score)
	}

	// Two-rune words do not count as shouting, so only ASI qualifies and
	// the bonus threshold is missed.
	score, _ = e.ScoreUrgency("NO ES ASI")
	if score != 0 {
		t.Errorf("expected score 0, got %v", score)
	}
}

func TestScoreUrgencyMonotonic(t *testing.T) {
	e := New()

	base, _ := e.ScoreUrgency("problema en la oficina")
	grown, _ := e.ScoreUrgency("problema en la oficina urgente urgente urgente")
	if grown <= base {
		t.Errorf("expected score to grow when urgent content is added, got %v -> %v", base, grown)
	}
}

func TestScoreUrgencyWhitespaceCollapsed(t *testing.T) {
	e := New()

	a, _ := e.ScoreUrgency("URGENTE ayuda ya")
	b, _ := e.ScoreUrgency("  URGENTE \t ayuda \n  ya  ")
	if a != b {
		t.Errorf("expected identical scores for collapsed whitespace, got %v and %v", a, b)
	}
}

func TestTierForScore(t *testing.T) {
	tests := []struct {
		score float64
		tier  UrgencyTier
	}{
		{0, UrgencyBaja},
		{1.9, UrgencyBaja},
		{2, UrgencyMedia},
		{4.9, UrgencyMedia},
		{5, UrgencyAlta},
		{7.9, UrgencyAlta},
		{8, UrgencyCritica},
		{11.9, UrgencyCritica},
		{12, UrgencyEmergencia},
		{50, UrgencyEmergencia},
	}

	for _, tt := range tests {
		if got := tierForScore(tt.score); got != tt.tier {
			t.Errorf("tierForScore(%v): expected %s, got %s", tt.score, tt.tier, got)
		}
	}
}

func TestUrgencyTierStrings(t *testing.T) {
	names := UrgencyTierNames()
	expected := []string{"BAJA", "MEDIA", "ALTA", "CRITICA", "EMERGENCIA"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d tier names, got %d", len(expected), len(names))
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("expected tier %d to be %s, got %s", i, name, names[i])
		}
	}

	if UrgencyCritica.Rank() != 4 {
		t.Errorf("expected CRITICA rank 4, got %d", UrgencyCritica.Rank())
	}
	if UrgencyEmergencia.Description() != "EMERGENCIA - Acción inmediata crítica" {
		t.Errorf("unexpected EMERGENCIA description: %s", UrgencyEmergencia.Description())
	}
}

func TestIsShouted(t *testing.T) {
	tests := []struct {
		word string
		want bool
	}{
		{"URGENTE", true},
		{"AQUÍ!!!", true},
		{"ABC1", true},
		{"Hola", false},
		{"hola", false},
		{"123", false},
	}

	for _, tt := range tests {
		if got := isShouted(tt.word); got != tt.want {
			t.Errorf("isShouted(%q): expected %v, got %v", tt.word, tt.want, got)
		}
	}
}
