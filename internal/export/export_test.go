package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zombar/denuncias/internal/models"
)

func sampleReports() []*models.Report {
	analyzed := &models.Report{
		Folio:     "DEN_A1B2C3D4E5F60718",
		Categoria: "acoso_laboral",
		Mensaje:   "El supervisor me amenaza constantemente y tengo correos y capturas de pantalla que lo demuestran. " + strings.Repeat("Detalle adicional. ", 10),
		Estado:    models.StatusNueva,
		CreatedAt: time.Date(2026, 1, 14, 10, 30, 0, 0, time.UTC),
		Analysis: &models.Assessment{
			Urgency:                    models.UrgencyAssessment{Level: "ALTA", Rank: 3},
			Priority:                   models.PriorityAssessment{Level: "P2", Score: 9},
			Evidence:                   models.EvidenceAssessment{Score: 2.5},
			VeracityScore:              0.75,
			RequiresImmediateAttention: true,
		},
	}
	pending := &models.Report{
		Folio:     "DEN_D4E5F6A7B8C90132",
		Categoria: "otros",
		Mensaje:   "Señalé una irregularidad menor.",
		Estado:    models.StatusRevisada,
		CreatedAt: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
	}
	return []*models.Report{analyzed, pending}
}

func TestValidFormat(t *testing.T) {
	tests := []struct {
		format string
		want   bool
	}{
		{"csv", true},
		{"txt", true},
		{"html", true},
		{"pdf", false},
		{"CSV", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidFormat(tt.format); got != tt.want {
			t.Errorf("ValidFormat(%q) = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestRenderUnsupportedFormat(t *testing.T) {
	r, err := NewRenderer(t.TempDir())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	if _, err := r.Render("pdf", nil); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestRenderCSV(t *testing.T) {
	r, err := NewRenderer(t.TempDir())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	path, err := r.RenderCSV(sampleReports())
	if err != nil {
		t.Fatalf("RenderCSV: %v", err)
	}

	name := filepath.Base(path)
	if !strings.HasPrefix(name, "denuncias_csv_") || !strings.HasSuffix(name, ".csv") {
		t.Errorf("unexpected file name %q", name)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d rows", len(rows))
	}

	wantHeader := []string{
		"ID", "Fecha", "Categoria", "Estado", "Urgencia", "Prioridad",
		"Veracidad", "Longitud_Mensaje", "Tiene_Evidencias", "Requiere_Atencion_Inmediata",
		"Contenido_Preview",
	}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}

	analyzed := rows[1]
	if analyzed[0] != "DEN_A1B2C3D4E5F60718" {
		t.Errorf("ID = %q", analyzed[0])
	}
	if analyzed[1] != "2026-01-14T10:30:00" {
		t.Errorf("Fecha = %q", analyzed[1])
	}
	if analyzed[4] != "ALTA" || analyzed[5] != "P2" {
		t.Errorf("Urgencia/Prioridad = %q/%q", analyzed[4], analyzed[5])
	}
	if analyzed[6] != "0.75" {
		t.Errorf("Veracidad = %q", analyzed[6])
	}
	if analyzed[8] != "Sí" || analyzed[9] != "Sí" {
		t.Errorf("flags = %q/%q, want Sí/Sí", analyzed[8], analyzed[9])
	}
	if !strings.HasSuffix(analyzed[10], "...") {
		t.Errorf("long message preview should be truncated, got %q", analyzed[10])
	}
	if got := len([]rune(analyzed[10])); got != previewRunes+3 {
		t.Errorf("preview length = %d runes, want %d", got, previewRunes+3)
	}

	pending := rows[2]
	if pending[4] != "" || pending[5] != "" || pending[6] != "" {
		t.Errorf("unanalyzed report should have empty analysis columns, got %q/%q/%q",
			pending[4], pending[5], pending[6])
	}
	if pending[8] != "" || pending[9] != "" {
		t.Errorf("unanalyzed report flags should be empty, got %q/%q", pending[8], pending[9])
	}
	// "Señalé una irregularidad menor." is 31 runes but 33 bytes.
	if pending[7] != "31" {
		t.Errorf("Longitud_Mensaje = %q, want rune count 31", pending[7])
	}
	if pending[10] != "Señalé una irregularidad menor." {
		t.Errorf("short message preview should be verbatim, got %q", pending[10])
	}
}

func TestRenderTXT(t *testing.T) {
	r, err := NewRenderer(t.TempDir())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	path, err := r.RenderTXT(sampleReports())
	if err != nil {
		t.Fatalf("RenderTXT: %v", err)
	}

	name := filepath.Base(path)
	if !strings.HasPrefix(name, "denuncias_texto_") || !strings.HasSuffix(name, ".txt") {
		t.Errorf("unexpected file name %q", name)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	content := string(raw)

	wantFragments := []string{
		"SISTEMA ANÓNIMO DE DENUNCIAS INTERNAS",
		"Total de denuncias: 2",
		"DENUNCIA #1",
		"ID: DEN_A1B2C3D4E5F60718",
		"Fecha: 2026-01-14T10:30:00",
		"Categoría: acoso_laboral",
		"Estado: nueva",
		"Urgencia: ALTA",
		"Prioridad: P2",
		"Contenido:",
		"DENUNCIA #2",
		"=== RESUMEN ESTADÍSTICO DE DENUNCIAS ===",
		"Por categoría:",
		"Acoso Laboral: 1 (50.0%)",
		"Por estado:",
		"Nueva: 1 (50.0%)",
		"Revisada: 1 (50.0%)",
	}
	for _, fragment := range wantFragments {
		if !strings.Contains(content, fragment) {
			t.Errorf("TXT export missing %q", fragment)
		}
	}

	// The second report carries no analysis so its block must skip the
	// urgency and priority lines.
	second := content[strings.Index(content, "DENUNCIA #2"):]
	statsAt := strings.Index(second, "=== RESUMEN")
	if statsAt < 0 {
		t.Fatal("stats block missing after second report")
	}
	if strings.Contains(second[:statsAt], "Urgencia:") {
		t.Error("unanalyzed report block should not list urgency")
	}
}

func TestRenderHTML(t *testing.T) {
	r, err := NewRenderer(t.TempDir())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	path, err := r.RenderHTML(sampleReports())
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}

	name := filepath.Base(path)
	if !strings.HasPrefix(name, "reporte_html_") || !strings.HasSuffix(name, ".html") {
		t.Errorf("unexpected file name %q", name)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	content := string(raw)

	wantFragments := []string{
		"<!DOCTYPE html>",
		"Reporte de Denuncias Internas",
		"Total de Denuncias",
		"Acoso Laboral",
		"Otros",
		"50.0",
		"Sistema Anónimo de Denuncias Internas - Reporte Automatizado",
	}
	for _, fragment := range wantFragments {
		if !strings.Contains(content, fragment) {
			t.Errorf("HTML export missing %q", fragment)
		}
	}
}

func TestRenderEmptySet(t *testing.T) {
	r, err := NewRenderer(t.TempDir())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	for _, format := range []string{FormatCSV, FormatTXT, FormatHTML} {
		path, err := r.Render(format, nil)
		if err != nil {
			t.Errorf("Render(%s) on empty set: %v", format, err)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Render(%s) did not create a file: %v", format, err)
		}
	}
}

func TestTitled(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acoso_laboral", "Acoso Laboral"},
		{"otros", "Otros"},
		{"en_proceso", "En Proceso"},
		{"ética", "Ética"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := titled(tt.in); got != tt.want {
			t.Errorf("titled(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	short := "mensaje corto"
	if got := preview(short); got != short {
		t.Errorf("preview(short) = %q", got)
	}

	long := strings.Repeat("ñ", 150)
	got := preview(long)
	if want := strings.Repeat("ñ", 100) + "..."; got != want {
		t.Errorf("preview should cut at %d runes, got %d runes", previewRunes, len([]rune(got)))
	}
}
