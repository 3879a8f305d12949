package engine

import (
	"reflect"
	"testing"
)

func TestEvaluateEvidence(t *testing.T) {
	e := New()

	tests := []struct {
		name        string
		input       string
		types       map[string]int
		score       float64
		credibility string
		specificity int
		needsMore   bool
	}{
		{
			name:        "no evidence",
			input:       "no pasó nada",
			types:       map[string]int{},
			score:       0,
			credibility: CredibilityMuyBaja,
			specificity: 0,
			needsMore:   true,
		},
		{
			name:        "document and photo",
			input:       "Tengo un documento y una foto del incidente",
			types:       map[string]int{"documental": 1, "visual": 1},
			score:       2,
			credibility: CredibilityBaja,
			specificity: 0,
			needsMore:   false,
		},
		{
			name:        "documents only",
			input:       "Tengo el documento, el archivo y el reporte",
			types:       map[string]int{"documental": 3},
			score:       3,
			credibility: CredibilityMedia,
			specificity: 0,
			needsMore:   false,
		},
		{
			name:        "witness with specifics",
			input:       "El testigo vio todo y hay video de la sala 3 a las 10:30 del 12/05/2024",
			types:       map[string]int{"visual": 1, "testimonial": 2},
			score:       5,
			credibility: CredibilityAlta,
			specificity: 4,
			needsMore:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.EvaluateEvidence(tt.input)
			if !reflect.DeepEqual(got.Types, tt.types) {
				t.Errorf("expected types %v, got %v", tt.types, got.Types)
			}
			if got.Score != tt.score {
				t.Errorf("expected score %v, got %v", tt.score, got.Score)
			}
			if got.Credibility != tt.credibility {
				t.Errorf("expected credibility %s, got %s", tt.credibility, got.Credibility)
			}
			if got.Specificity != tt.specificity {
				t.Errorf("expected specificity %d, got %d", tt.specificity, got.Specificity)
			}
			if got.NeedsMoreEvidence != tt.needsMore {
				t.Errorf("expected needsMore=%v, got %v", tt.needsMore, got.NeedsMoreEvidence)
			}
		})
	}
}

func TestEvaluateEvidenceSpecificityHalfPoints(t *testing.T) {
	e := New()

	// A single concrete hour is worth half a point and is not enough to
	// leave muy_baja.
	got := e.EvaluateEvidence("pasó a las 14:30")
	if got.Score != 0.5 {
		t.Errorf("expected score 0.5, got %v", got.Score)
	}
	if got.Specificity != 1 {
		t.Errorf("expected specificity 1, got %d", got.Specificity)
	}
	if got.Credibility != CredibilityMuyBaja {
		t.Errorf("expected muy_baja, got %s", got.Credibility)
	}
	if !got.NeedsMoreEvidence {
		t.Error("expected needsMore=true")
	}
}

func TestEvaluateEvidenceNumberedPlace(t *testing.T) {
	e := New()

	got := e.EvaluateEvidence("fue en la oficina 12")
	if got.Specificity != 1 {
		t.Errorf("expected specificity 1, got %d", got.Specificity)
	}
}
