package engine

import (
	"fmt"
	"regexp"
	"sort"
)

// Report categories, in classification order. Order matters: when two
// categories score the same, the earliest one wins.
const (
	CategoryAcosoLaboral   = "acoso_laboral"
	CategoryDiscriminacion = "discriminacion"
	CategoryFraude         = "fraude"
	CategorySeguridad      = "seguridad"
	CategoryViolencia      = "violencia"
	CategoryCorrupcion     = "corrupcion"

	// CategoryOtros is the fallback when no category pattern matches.
	CategoryOtros = "otros"
)

// Alert kinds, in rule evaluation order.
const (
	AlertUrgenciaCritica   = "urgencia_critica"
	AlertContenidoViolento = "contenido_violento"
	AlertAmenazaDirecta    = "amenaza_directa"
	AlertSituacionRiesgo   = "situacion_riesgo"
	AlertEvidenciaSolida   = "evidencia_solida"
)

// Alert priorities.
const (
	AlertPriorityCritica = "crítica"
	AlertPriorityAlta    = "alta"
	AlertPriorityMedia   = "media"
)

// Credibility tiers for evidence assessments.
const (
	CredibilityAlta    = "alta"
	CredibilityMedia   = "media"
	CredibilityBaja    = "baja"
	CredibilityMuyBaja = "muy_baja"
)

const emotionFear = "miedo"

// CategoryPatterns binds a category name to the keyword patterns that score
// it.
type CategoryPatterns struct {
	Name     string
	Patterns []string
}

// ContextBonus adds Bonus points to a category's score when any of Words
// appears as a substring of the lower-cased message.
type ContextBonus struct {
	Category string
	Words    []string
	Bonus    float64
}

// EvidenceType binds an evidence kind (documental, visual, ...) to the
// pattern that detects mentions of it.
type EvidenceType struct {
	Name    string
	Pattern string
}

// LibraryConfig is the complete pattern surface of the engine. DefaultConfig
// returns the standard Spanish tables; deployments with a different taxonomy
// can compile a Library from an adjusted copy.
type LibraryConfig struct {
	// Pattern groups, matched per occurrence against the lower-cased
	// message.
	UrgencyCritical  []string
	Violence         []string
	EvidenceMentions []string
	Times            []string
	Places           []string
	Emotions         map[string][]string
	Categories       []CategoryPatterns
	EvidenceTypes    []EvidenceType
	ContextBonuses   []ContextBonus

	// Urgency scoring weights. CriticalKeywords are counted as plain
	// substrings, not word-bounded patterns.
	CriticalKeywords      []string
	UrgencyWeight         float64
	ViolenceWeight        float64
	CriticalKeywordWeight float64

	// Single-pattern alert triggers.
	DirectThreats    string
	RiskIndicators   string
	EvidenceKeywords string

	// Polarity word lists, counted by substring presence.
	NegativeWords []string
	PositiveWords []string
}

// DefaultConfig returns a copy of the standard pattern tables. Threat verbs
// match on the stem (amenaz) so conjugated forms found in first-person
// reports still count.
func DefaultConfig() LibraryConfig {
	return LibraryConfig{
		UrgencyCritical: []string{
			`\b(emergencia|urgente|inmediato|ya|ahora|rápido)\b`,
			`\b(peligro|amenaza|riesgo|violencia|agresión)\b`,
			`\b(socorro|ayuda|auxilio|emergencia)\b`,
			`\b(crítico|grave|serio|importante)\b`,
		},
		Violence: []string{
			`\b(golpe|pegar|lastimar|dañar|herir)\b`,
			`\b(amenaza|intimidar|acosar|perseguir)\b`,
			`\b(violencia|agresión|ataque|maltrato)\b`,
			`\b(arma|cuchillo|pistola|navaja)\b`,
		},
		EvidenceMentions: []string{
			`\b(prueba|evidencia|documento|foto|video)\b`,
			`\b(testigo|vio|escuchó|presenció)\b`,
			`\b(fecha|hora|día|momento)\b`,
			`\b(lugar|ubicación|sitio|donde)\b`,
			`\b(nombre|persona|quien|sujeto)\b`,
		},
		Times: []string{
			`\b(\d{1,2}[:/]\d{1,2}|\d{1,2}\s*(am|pm))\b`,
			`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`,
			`\b(ayer|hoy|mañana|anoche|esta\s*(mañana|tarde|noche))\b`,
			`\b(lunes|martes|miércoles|jueves|viernes|sábado|domingo)\b`,
		},
		Places: []string{
			`\b(oficina|sala|baño|estacionamiento|pasillo)\b`,
			`\b(piso\s*\d+|planta\s*\d+|edificio)\b`,
			`\b(departamento|área|sección|división)\b`,
			`\b(cerca\s*de|junto\s*a|en\s*el|en\s*la)\b`,
		},
		Emotions: map[string][]string{
			"miedo":       {`\b(miedo|temor|asustado|aterrado|pánico)\b`},
			"enojo":       {`\b(enojado|furioso|molesto|indignado|irritado)\b`},
			"tristeza":    {`\b(triste|deprimido|desanimado|abatido)\b`},
			"ansiedad":    {`\b(ansioso|nervioso|preocupado|estresado)\b`},
			"frustración": {`\b(frustrado|desesperado|harto|cansado)\b`},
		},
		Categories: []CategoryPatterns{
			{Name: CategoryAcosoLaboral, Patterns: []string{
				`\b(acoso|hostigamiento|intimidación|presión)\b`,
				`\b(jefe|supervisor|compañero|colega)\b`,
				`\b(trabajo|laboral|oficina|empleado)\b`,
			}},
			{Name: CategoryDiscriminacion, Patterns: []string{
				`\b(discriminación|racismo|sexismo|prejuicio)\b`,
				`\b(género|raza|edad|religión|orientación)\b`,
				`\b(trato\s*diferente|exclusión|marginación)\b`,
			}},
			{Name: CategoryFraude, Patterns: []string{
				`\b(fraude|estafa|robo|hurto|malversación)\b`,
				`\b(dinero|efectivo|fondos|recursos|presupuesto)\b`,
				`\b(factura|cuenta|pago|cobro)\b`,
			}},
			{Name: CategorySeguridad, Patterns: []string{
				`\b(seguridad|riesgo|peligro|accidente)\b`,
				`\b(equipo|herramienta|máquina|instalación)\b`,
				`\b(norma|protocolo|procedimiento|regla)\b`,
			}},
			{Name: CategoryViolencia, Patterns: []string{
				`\b(violencia|agresión|golpe|maltrato)\b`,
				`\b(físico|verbal|psicológico|sexual)\b`,
				`\b(amenaz\w*|intimidación|hostigamiento)\b`,
			}},
			{Name: CategoryCorrupcion, Patterns: []string{
				`\b(corrupción|soborno|coima|mordida)\b`,
				`\b(favoritismo|nepotismo|tráfico\s*de\s*influencias)\b`,
				`\b(ilegal|irregular|indebido|inapropiado)\b`,
			}},
		},
		EvidenceTypes: []EvidenceType{
			{Name: "documental", Pattern: `\b(documento|papel|archivo|reporte|email|mensaje)\b`},
			{Name: "visual", Pattern: `\b(foto|imagen|video|grabación|captura)\b`},
			{Name: "testimonial", Pattern: `\b(testigo|vio|escuchó|presenció|dijo)\b`},
			{Name: "física", Pattern: `\b(objeto|cosa|elemento|marca|señal)\b`},
		},
		ContextBonuses: []ContextBonus{
			{Category: CategoryAcosoLaboral, Words: []string{"trabajo", "oficina", "jefe"}, Bonus: 2},
			{Category: CategoryViolencia, Words: []string{"golpe", "amenaz", "miedo"}, Bonus: 3},
			{Category: CategoryFraude, Words: []string{"dinero", "factura", "pago"}, Bonus: 2},
		},
		CriticalKeywords:      []string{"urgente", "inmediato", "emergencia", "ayuda", "socorro"},
		UrgencyWeight:         2,
		ViolenceWeight:        3,
		CriticalKeywordWeight: 1.5,
		DirectThreats:         `\b(amenaz\w*|lastimar|dañar|hacer\s*daño)\b`,
		RiskIndicators:        `\b(peligro|riesgo|inseguro|vulnerable|expuesto)\b`,
		EvidenceKeywords:      `\b(prueba|evidencia|documento|testigo|foto|video)\b`,
		NegativeWords:         []string{"malo", "terrible", "horrible", "odio", "detesto", "molesto"},
		PositiveWords:         []string{"bueno", "bien", "excelente", "contento", "feliz", "satisfecho"},
	}
}

type categoryGroup struct {
	name     string
	patterns []*regexp.Regexp
}

type emotionGroup struct {
	name     string
	patterns []*regexp.Regexp
}

type evidenceTypeGroup struct {
	name string
	re   *regexp.Regexp
}

type contextBonus struct {
	category string
	words    []string
	bonus    float64
}

// Library holds the compiled pattern tables an Engine scores against. Build
// one with NewLibrary; a Library is immutable and safe for concurrent use.
type Library struct {
	urgency  []*regexp.Regexp
	violence []*regexp.Regexp
	evidence []*regexp.Regexp
	times    []*regexp.Regexp
	places   []*regexp.Regexp

	emotions      []emotionGroup
	categories    []categoryGroup
	evidenceTypes []evidenceTypeGroup
	bonuses       []contextBonus

	criticalKeywords      []string
	urgencyWeight         float64
	violenceWeight        float64
	criticalKeywordWeight float64

	directThreats    *regexp.Regexp
	riskIndicators   *regexp.Regexp
	evidenceKeywords *regexp.Regexp

	negativeWords []string
	positiveWords []string
}

// NewLibrary compiles a pattern configuration into a Library. All patterns
// are matched case-insensitively.
func NewLibrary(cfg LibraryConfig) (*Library, error) {
	lib := &Library{
		criticalKeywords:      cfg.CriticalKeywords,
		urgencyWeight:         cfg.UrgencyWeight,
		violenceWeight:        cfg.ViolenceWeight,
		criticalKeywordWeight: cfg.CriticalKeywordWeight,
		negativeWords:         cfg.NegativeWords,
		positiveWords:         cfg.PositiveWords,
	}

	var err error
	if lib.urgency, err = compileGroup("urgency", cfg.UrgencyCritical); err != nil {
		return nil, err
	}
	if lib.violence, err = compileGroup("violence", cfg.Violence); err != nil {
		return nil, err
	}
	if lib.evidence, err = compileGroup("evidence", cfg.EvidenceMentions); err != nil {
		return nil, err
	}
	if lib.times, err = compileGroup("times", cfg.Times); err != nil {
		return nil, err
	}
	if lib.places, err = compileGroup("places", cfg.Places); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Emotions))
	for name := range cfg.Emotions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		patterns, err := compileGroup("emotion "+name, cfg.Emotions[name])
		if err != nil {
			return nil, err
		}
		lib.emotions = append(lib.emotions, emotionGroup{name: name, patterns: patterns})
	}

	for _, cat := range cfg.Categories {
		if len(cat.Patterns) == 0 {
			return nil, fmt.Errorf("category %q has no patterns", cat.Name)
		}
		patterns, err := compileGroup("category "+cat.Name, cat.Patterns)
		if err != nil {
			return nil, err
		}
		lib.categories = append(lib.categories, categoryGroup{name: cat.Name, patterns: patterns})
	}

	for _, et := range cfg.EvidenceTypes {
		re, err := compilePattern("evidence type "+et.Name, et.Pattern)
		if err != nil {
			return nil, err
		}
		lib.evidenceTypes = append(lib.evidenceTypes, evidenceTypeGroup{name: et.Name, re: re})
	}

	for _, b := range cfg.ContextBonuses {
		lib.bonuses = append(lib.bonuses, contextBonus{category: b.Category, words: b.Words, bonus: b.Bonus})
	}

	if lib.directThreats, err = compilePattern("direct threats", cfg.DirectThreats); err != nil {
		return nil, err
	}
	if lib.riskIndicators, err = compilePattern("risk indicators", cfg.RiskIndicators); err != nil {
		return nil, err
	}
	if lib.evidenceKeywords, err = compilePattern("evidence keywords", cfg.EvidenceKeywords); err != nil {
		return nil, err
	}

	return lib, nil
}

// CategoryNames returns the category identifiers in classification order.
func (l *Library) CategoryNames() []string {
	names := make([]string, len(l.categories))
	for i, cat := range l.categories {
		names[i] = cat.name
	}
	return names
}

func compileGroup(group string, patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := compilePattern(group, p)
		if err != nil {
			return nil, err
		}
		res[i] = re
	}
	return res, nil
}

func compilePattern(group, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s pattern %q: %w", group, pattern, err)
	}
	return re, nil
}

var defaultLibrary = mustLibrary(DefaultConfig())

func mustLibrary(cfg LibraryConfig) *Library {
	lib, err := NewLibrary(cfg)
	if err != nil {
		panic(fmt.Sprintf("engine: %v", err))
	}
	return lib
}
