package export

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zombar/denuncias/internal/models"
)

// Supported export formats.
const (
	FormatCSV  = "csv"
	FormatTXT  = "txt"
	FormatHTML = "html"
)

// previewRunes bounds the Contenido_Preview CSV column.
const previewRunes = 100

// ValidFormat reports whether the given format can be rendered.
func ValidFormat(format string) bool {
	switch format {
	case FormatCSV, FormatTXT, FormatHTML:
		return true
	}
	return false
}

// Renderer writes report exports as timestamped files under a fixed
// directory.
type Renderer struct {
	dir string
}

// NewRenderer creates a Renderer, creating the export directory if needed.
func NewRenderer(dir string) (*Renderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &Renderer{dir: dir}, nil
}

// Dir returns the directory exports are written into.
func (r *Renderer) Dir() string {
	return r.dir
}

// Render writes the reports in the requested format and returns the path
// of the generated file.
func (r *Renderer) Render(format string, reports []*models.Report) (string, error) {
	switch format {
	case FormatCSV:
		return r.RenderCSV(reports)
	case FormatTXT:
		return r.RenderTXT(reports)
	case FormatHTML:
		return r.RenderHTML(reports)
	}
	return "", fmt.Errorf("unsupported export format: %q", format)
}

// RenderCSV writes a spreadsheet-friendly listing, one row per report.
// Analysis columns stay empty for reports the pipeline has not scored yet.
func (r *Renderer) RenderCSV(reports []*models.Report) (string, error) {
	path := r.filePath("denuncias_csv_", "csv")

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"ID", "Fecha", "Categoria", "Estado", "Urgencia", "Prioridad",
		"Veracidad", "Longitud_Mensaje", "Tiene_Evidencias", "Requiere_Atencion_Inmediata",
		"Contenido_Preview",
	}
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, report := range reports {
		row := []string{
			report.Folio,
			report.CreatedAt.Format("2006-01-02T15:04:05"),
			report.Categoria,
			report.Estado,
			"", // Urgencia
			"", // Prioridad
			"", // Veracidad
			strconv.Itoa(utf8.RuneCountInString(report.Mensaje)),
			"", // Tiene_Evidencias
			"", // Requiere_Atencion_Inmediata
			preview(report.Mensaje),
		}

		if a := report.Analysis; a != nil {
			row[4] = a.Urgency.Level
			row[5] = a.Priority.Level
			row[6] = strconv.FormatFloat(a.VeracityScore, 'g', -1, 64)
			row[8] = siNo(a.Evidence.Score > 0)
			row[9] = siNo(a.RequiresImmediateAttention)
		}

		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	return path, nil
}

// RenderTXT writes a plain-text listing followed by a statistical summary
// of the exported set.
func (r *Renderer) RenderTXT(reports []*models.Report) (string, error) {
	path := r.filePath("denuncias_texto_", "txt")

	var b strings.Builder
	rule := strings.Repeat("=", 50)

	b.WriteString("SISTEMA ANÓNIMO DE DENUNCIAS INTERNAS\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Reporte generado: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total de denuncias: %d\n\n", len(reports))

	for i, report := range reports {
		fmt.Fprintf(&b, "DENUNCIA #%d\n", i+1)
		b.WriteString(strings.Repeat("-", 20) + "\n")
		fmt.Fprintf(&b, "ID: %s\n", report.Folio)
		fmt.Fprintf(&b, "Fecha: %s\n", report.CreatedAt.Format("2006-01-02T15:04:05"))
		fmt.Fprintf(&b, "Categoría: %s\n", report.Categoria)
		fmt.Fprintf(&b, "Estado: %s\n", report.Estado)

		if a := report.Analysis; a != nil {
			fmt.Fprintf(&b, "Urgencia: %s\n", a.Urgency.Level)
			fmt.Fprintf(&b, "Prioridad: %s\n", a.Priority.Level)
		}

		fmt.Fprintf(&b, "\nContenido:\n%s\n", report.Mensaje)
		b.WriteString("\n" + rule + "\n\n")
	}

	b.WriteString("=== RESUMEN ESTADÍSTICO DE DENUNCIAS ===\n\n")

	byCategory, byStatus := tally(reports)

	b.WriteString("Por categoría:\n")
	for _, row := range orderedRows(byCategory, len(reports)) {
		fmt.Fprintf(&b, "  %s: %d (%.1f%%)\n", row.Name, row.Count, row.Percent)
	}

	b.WriteString("\nPor estado:\n")
	for _, row := range orderedRows(byStatus, len(reports)) {
		fmt.Fprintf(&b, "  %s: %d (%.1f%%)\n", row.Name, row.Count, row.Percent)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write TXT file: %w", err)
	}

	return path, nil
}

// RenderHTML writes a standalone report page with distribution bars per
// category and state.
func (r *Renderer) RenderHTML(reports []*models.Report) (string, error) {
	path := r.filePath("reporte_html_", "html")

	byCategory, byStatus := tally(reports)

	immediate := 0
	for _, report := range reports {
		if report.Analysis != nil && report.Analysis.RequiresImmediateAttention {
			immediate++
		}
	}

	data := htmlReport{
		Title:         fmt.Sprintf("Reporte de Denuncias - %s", time.Now().Format("2006-01-02")),
		GeneratedAt:   spanishTimestamp(time.Now()),
		Total:         len(reports),
		CategoryCount: len(byCategory),
		StatusCount:   len(byStatus),
		Immediate:     immediate,
		CategoryBars:  orderedRows(byCategory, len(reports)),
		StatusBars:    orderedRows(byStatus, len(reports)),
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create HTML file: %w", err)
	}
	defer file.Close()

	if err := reportTemplate.Execute(file, data); err != nil {
		return "", fmt.Errorf("failed to render HTML report: %w", err)
	}

	return path, nil
}

func (r *Renderer) filePath(prefix, ext string) string {
	name := fmt.Sprintf("%s%s.%s", prefix, time.Now().Format("20060102_150405"), ext)
	return filepath.Join(r.dir, name)
}

// distRow is one labeled slice of a distribution.
type distRow struct {
	Name    string
	Count   int
	Percent float64
}

// tally counts reports per category and per state.
func tally(reports []*models.Report) (byCategory, byStatus map[string]int) {
	byCategory = make(map[string]int)
	byStatus = make(map[string]int)
	for _, report := range reports {
		byCategory[report.Categoria]++
		byStatus[report.Estado]++
	}
	return byCategory, byStatus
}

// orderedRows turns a tally into display rows, highest count first with
// name as tiebreak so output stays deterministic.
func orderedRows(counts map[string]int, total int) []distRow {
	rows := make([]distRow, 0, len(counts))
	for name, count := range counts {
		percent := 0.0
		if total > 0 {
			percent = float64(count) / float64(total) * 100
		}
		rows = append(rows, distRow{Name: titled(name), Count: count, Percent: percent})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// titled renders a snake_case label for display: "acoso_laboral" becomes
// "Acoso Laboral".
func titled(label string) string {
	words := strings.Split(label, "_")
	for i, word := range words {
		runes := []rune(word)
		if len(runes) == 0 {
			continue
		}
		words[i] = strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
	return strings.Join(words, " ")
}

// preview truncates a message for the CSV listing column.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}

func siNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}

var spanishMonths = []string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// spanishTimestamp formats t the way the generated page announces itself,
// for example "25 de agosto de 2026 a las 14:30".
func spanishTimestamp(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d a las %02d:%02d",
		t.Day(), spanishMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

type htmlReport struct {
	Title         string
	GeneratedAt   string
	Total         int
	CategoryCount int
	StatusCount   int
	Immediate     int
	CategoryBars  []distRow
	StatusBars    []distRow
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px;
            border-radius: 10px;
            text-align: center;
            margin-bottom: 30px;
        }
        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 30px;
        }
        .stat-card {
            background: white;
            padding: 20px;
            border-radius: 8px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
            border-left: 4px solid #667eea;
        }
        .stat-number {
            font-size: 2.5em;
            font-weight: bold;
            color: #667eea;
        }
        .chart-container {
            background: white;
            padding: 20px;
            border-radius: 8px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
            margin-bottom: 20px;
        }
        .progress-bar {
            background: #e0e0e0;
            border-radius: 10px;
            overflow: hidden;
            margin: 10px 0;
        }
        .progress-fill {
            background: linear-gradient(90deg, #667eea, #764ba2);
            height: 20px;
            display: flex;
            align-items: center;
            justify-content: center;
            color: white;
            font-size: 12px;
        }
        .footer {
            text-align: center;
            margin-top: 30px;
            color: #666;
            font-size: 0.9em;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>📊 Reporte de Denuncias Internas</h1>
        <p>Generado el {{.GeneratedAt}}</p>
    </div>

    <div class="stats-grid">
        <div class="stat-card">
            <div class="stat-number">{{.Total}}</div>
            <div>Total de Denuncias</div>
        </div>
        <div class="stat-card">
            <div class="stat-number">{{.CategoryCount}}</div>
            <div>Categorías Activas</div>
        </div>
        <div class="stat-card">
            <div class="stat-number">{{.StatusCount}}</div>
            <div>Estados Utilizados</div>
        </div>
        <div class="stat-card">
            <div class="stat-number">{{.Immediate}}</div>
            <div>Atención Inmediata</div>
        </div>
    </div>

    <div class="chart-container">
        <h3>📂 Distribución por Categorías</h3>
        {{range .CategoryBars}}
        <div>
            <div style="display: flex; justify-content: space-between; margin-bottom: 5px;">
                <span>{{.Name}}</span>
                <span>{{.Count}} ({{printf "%.1f" .Percent}}%)</span>
            </div>
            <div class="progress-bar">
                <div class="progress-fill" style="width: {{printf "%.1f" .Percent}}%;">
                    {{printf "%.1f" .Percent}}%
                </div>
            </div>
        </div>
        {{end}}
    </div>

    <div class="chart-container">
        <h3>📊 Distribución por Estados</h3>
        {{range .StatusBars}}
        <div>
            <div style="display: flex; justify-content: space-between; margin-bottom: 5px;">
                <span>{{.Name}}</span>
                <span>{{.Count}} ({{printf "%.1f" .Percent}}%)</span>
            </div>
            <div class="progress-bar">
                <div class="progress-fill" style="width: {{printf "%.1f" .Percent}}%;">
                    {{printf "%.1f" .Percent}}%
                </div>
            </div>
        </div>
        {{end}}
    </div>

    <div class="footer">
        <p>Sistema Anónimo de Denuncias Internas - Reporte Automatizado</p>
    </div>
</body>
</html>
`))
