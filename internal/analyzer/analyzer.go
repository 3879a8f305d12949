package analyzer

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/zombar/denuncias/internal/engine"
	"github.com/zombar/denuncias/internal/models"
	"github.com/zombar/denuncias/internal/ollama"
	"github.com/zombar/denuncias/internal/reports"
	"github.com/zombar/denuncias/internal/screening"
)

// Routing strategies. Local never touches the agent, smart always tries
// it, hybrid sends only complex messages to it.
const (
	StrategyLocal  = "local"
	StrategySmart  = "smart"
	StrategyHybrid = "hybrid"
)

// Processing modes recorded on results so operators can tell which path a
// report actually took.
const (
	ModeLocal              = "local"
	ModeLocalSimple        = "local_simple"
	ModeSmart              = "smart"
	ModeSmartComplejo      = "smart_complejo"
	ModeLocalFallback      = "local_fallback"
	ModeLocalErrorFallback = "local_error_fallback"
	ModeValidacion         = "validacion"
)

// complexWordCount is the hybrid cutover: messages longer than this go to
// the agent when one is configured.
const complexWordCount = 20

// agentName is recorded on assessments the agent enriched.
const agentName = "ollama"

// Veracity band cutoffs matching the agent's level vocabulary: an ALTA
// opinion lifts the rule-based score to at least the alta floor, a BAJA
// opinion caps it at the baja ceiling.
const (
	veracityAltaFloor   = 0.7
	veracityBajaCeiling = 0.4
)

// Analyzer runs the screening filter and the rule engine over report
// messages and, when an agent is configured, overlays its classification
// and veracity opinion.
type Analyzer struct {
	engine   *engine.Engine
	screener *screening.Screener
	agent    *ollama.Client
	strategy string
}

// New creates an Analyzer without an agent; every message takes the local
// path.
func New() *Analyzer {
	return &Analyzer{
		engine:   engine.New(),
		screener: screening.New(),
		strategy: StrategyLocal,
	}
}

// NewWithOllama creates an Analyzer that routes complex messages through
// the given agent. The default strategy is hybrid.
func NewWithOllama(agent *ollama.Client) *Analyzer {
	return &Analyzer{
		engine:   engine.New(),
		screener: screening.New(),
		agent:    agent,
		strategy: StrategyHybrid,
	}
}

// SetStrategy overrides the default routing strategy.
func (a *Analyzer) SetStrategy(strategy string) {
	a.strategy = strategy
}

// Engine exposes the underlying rule engine for capability reporting.
func (a *Analyzer) Engine() *engine.Engine {
	return a.engine
}

// Screen runs only the intake filter over a message.
func (a *Analyzer) Screen(text string) models.ScreeningResult {
	return a.screener.Screen(text)
}

// Result pairs the intake screening with the full assessment of one
// message, plus the extracted keywords reviewers search by.
type Result struct {
	Screening  models.ScreeningResult `json:"filtrado"`
	Assessment models.Assessment      `json:"analisis_ia"`
	Keywords   []string               `json:"palabras_clave,omitempty"`
}

// Analyze processes a message with the analyzer's default strategy: local
// when no agent is configured, hybrid otherwise.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	return a.AnalyzeWithStrategy(ctx, text, a.strategy)
}

// AnalyzeWithStrategy processes a message with an explicit routing
// strategy. Unknown strategies behave like hybrid. The rule engine always
// runs first so an agent failure still leaves a complete local assessment.
func (a *Analyzer) AnalyzeWithStrategy(ctx context.Context, text, strategy string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{
			Assessment: models.Assessment{
				AnalyzedAt: time.Now().UTC(),
				Error:      "Mensaje vacío",
				Mode:       ModeValidacion,
			},
		}
	}

	scr := a.screener.Screen(text)

	assessment := a.engine.Analyze(text)
	assessment.RequiresHumanReview = assessment.RequiresHumanReview || scr.RequiresHumanReview

	useAgent := false
	mode := ModeLocal
	switch strategy {
	case StrategyLocal:
		mode = ModeLocal
	case StrategySmart:
		if a.agent != nil {
			useAgent = true
			mode = ModeSmart
		} else {
			mode = ModeLocalFallback
		}
	default:
		if len(strings.Fields(text)) > complexWordCount {
			if a.agent != nil {
				useAgent = true
				mode = ModeSmartComplejo
			} else {
				mode = ModeLocalFallback
			}
		} else {
			mode = ModeLocalSimple
		}
	}

	if useAgent {
		if err := a.enrich(ctx, text, &assessment); err != nil {
			log.Printf("Agent enrichment failed, keeping local assessment: %v", err)
			mode = ModeLocalErrorFallback
		} else {
			assessment.AgentUsed = agentName
		}
	}
	assessment.Mode = mode

	return Result{
		Screening:  scr,
		Assessment: assessment,
		Keywords:   reports.Keywords(text),
	}
}

// NeedsAgent reports whether the analyzer's strategy would hand this
// message to the agent. The async pipeline uses it to decide whether an
// analyzed report gets a follow-up enrichment task.
func (a *Analyzer) NeedsAgent(text string) bool {
	if a.agent == nil {
		return false
	}
	switch a.strategy {
	case StrategySmart:
		return true
	case StrategyLocal:
		return false
	default:
		return len(strings.Fields(text)) > complexWordCount
	}
}

// EnrichAssessment applies the agent overlay to an already stored local
// assessment and stamps the mode the synchronous smart path would have
// recorded. Unlike AnalyzeWithStrategy it surfaces agent errors, so queue
// workers can retry transient failures.
func (a *Analyzer) EnrichAssessment(ctx context.Context, text string, assessment *models.Assessment) error {
	if a.agent == nil {
		return errors.New("no agent configured")
	}
	if err := a.enrich(ctx, text, assessment); err != nil {
		return err
	}
	assessment.AgentUsed = agentName
	if a.strategy == StrategySmart {
		assessment.Mode = ModeSmart
	} else {
		assessment.Mode = ModeSmartComplejo
	}
	return nil
}

// enrich overlays the agent's classification and veracity opinion on a
// local assessment. The assessment is only mutated once both agent calls
// succeed, so a partial failure leaves the local result intact.
func (a *Analyzer) enrich(ctx context.Context, text string, assessment *models.Assessment) error {
	categories := append(a.engine.Info().Categories, engine.CategoryOtros)

	classification, err := a.agent.ClassifyReport(ctx, text, categories)
	if err != nil {
		return err
	}
	opinion, err := a.agent.AssessVeracity(ctx, text)
	if err != nil {
		return err
	}

	log.Printf("Agent classified report as %s (%.2f): %s",
		classification.Categoria, classification.Confianza, classification.Razon)
	assessment.Category.Suggested = classification.Categoria
	assessment.Category.Confidence = classification.Confianza

	switch opinion.Nivel {
	case "ALTA":
		if assessment.VeracityScore < veracityAltaFloor {
			assessment.VeracityScore = veracityAltaFloor
		}
	case "BAJA":
		if assessment.VeracityScore > veracityBajaCeiling {
			assessment.VeracityScore = veracityBajaCeiling
		}
		assessment.RequiresHumanReview = true
	}

	return nil
}
