package app

import (
	"context"
	"log"
	"math"
	"time"

	"battforge/adapters/ingest"
	"battforge/adapters/mapping"
	"battforge/domain/impedance"
	"battforge/domain/telemetry"
	"battforge/internal/errors"
	"battforge/ports"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AnalysisService orchestrates the universal analysis flow: sniff the upload
// into a table, classify its signature, then run the cycling or impedance
// path. Collaborator failures degrade the result instead of failing it; only
// parse and mapping errors are fatal.
type AnalysisService struct {
	sniffer     *ingest.Sniffer
	classifier  ports.SemanticClassifierPort
	physics     ports.PhysicsReferencePort
	mapper      *mapping.CyclingMapper
	localMapper *mapping.CyclingMapper
	eisMapper   *mapping.EISMapper
	localEIS    *mapping.EISMapper
	corrector   *mapping.Corrector
}

// AnalysisRequest carries one upload plus run options.
type AnalysisRequest struct {
	Content   []byte
	Filename  string
	Chemistry string
	// LocalMode skips the semantic classifier so the run is fully
	// deterministic.
	LocalMode bool
}

// CyclingResult is the time-domain analysis output.
type CyclingResult struct {
	Mapping   telemetry.ColumnMapping             `json:"mapping"`
	Table     *telemetry.StandardizedCyclingTable `json:"-"`
	Metrics   telemetry.CyclingMetrics            `json:"metrics"`
	Safety    telemetry.SafetyAudit               `json:"safety"`
	CRate     float64                             `json:"c_rate"`
	Reference *telemetry.ReferenceTrace           `json:"reference,omitempty"`
}

// ImpedanceResult is the frequency-domain analysis output. Fit is nil when
// the equivalent-circuit fit was degenerate; FitNote then says why.
type ImpedanceResult struct {
	Columns   mapping.EISColumns       `json:"columns"`
	Nyquist   []impedance.NyquistPoint `json:"nyquist"`
	Fit       *impedance.RandlesFit    `json:"fit,omitempty"`
	FitNote   string                   `json:"fit_note,omitempty"`
	Diagnosis impedance.Diagnosis      `json:"diagnosis"`
}

// AnalysisReport is the full outcome of one upload.
type AnalysisReport struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename"`
	DatasetType string           `json:"dataset_type"`
	Summary     string           `json:"summary"`
	Degraded    []string         `json:"degraded,omitempty"`
	Cycling     *CyclingResult   `json:"cycling,omitempty"`
	Impedance   *ImpedanceResult `json:"impedance,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewAnalysisService wires the orchestrator. classifier and physics may be
// nil, which disables the semantic stage and the reference comparison.
func NewAnalysisService(classifier ports.SemanticClassifierPort, physics ports.PhysicsReferencePort) *AnalysisService {
	return &AnalysisService{
		sniffer:     ingest.NewSniffer(),
		classifier:  classifier,
		physics:     physics,
		mapper:      mapping.NewCyclingMapper(classifier),
		localMapper: mapping.NewCyclingMapper(nil),
		eisMapper:   mapping.NewEISMapper(classifier),
		localEIS:    mapping.NewEISMapper(nil),
		corrector:   mapping.NewCorrector(),
	}
}

// Analyze runs the universal flow on one upload.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisReport, error) {
	table, err := s.sniffer.Sniff(req.Content, req.Filename)
	if err != nil {
		return nil, err
	}

	signature := s.classifySignature(ctx, req, table)
	report := &AnalysisReport{
		ID:          uuid.New().String(),
		Filename:    req.Filename,
		DatasetType: signature.DatasetType,
		Summary:     signature.Summary,
		CreatedAt:   time.Now().UTC(),
	}

	switch signature.DatasetType {
	case mapping.DatasetImpedance:
		result, err := s.analyzeImpedance(ctx, req, table)
		if err != nil {
			return nil, err
		}
		report.Impedance = result
	case mapping.DatasetCycling:
		result, err := s.analyzeCycling(ctx, req, table)
		if err != nil {
			return nil, err
		}
		report.Cycling = result
		report.Degraded = result.Table.Degraded
	default:
		// Unknown signature: try cycling first, then impedance, before
		// giving up with the cycling mapper's error.
		cyclingResult, cyclingErr := s.analyzeCycling(ctx, req, table)
		if cyclingErr == nil {
			report.DatasetType = mapping.DatasetCycling
			report.Cycling = cyclingResult
			report.Degraded = cyclingResult.Table.Degraded
			break
		}
		impedanceResult, impedanceErr := s.analyzeImpedance(ctx, req, table)
		if impedanceErr != nil {
			return nil, cyclingErr
		}
		report.DatasetType = mapping.DatasetImpedance
		report.Impedance = impedanceResult
	}

	return report, nil
}

// classifySignature prefers the semantic classifier, validates its answer,
// and always has the deterministic keyword classifier to land on.
func (s *AnalysisService) classifySignature(ctx context.Context, req AnalysisRequest, table *telemetry.RawTable) ports.DatasetSignature {
	if !req.LocalMode && s.classifier != nil {
		signature, err := s.classifier.ClassifySignature(ctx, table.Headers, table.SampleCSV(5))
		if err != nil {
			log.Printf("[Analysis] semantic signature failed, using deterministic classifier: %v", err)
		} else if signature.DatasetType == mapping.DatasetCycling || signature.DatasetType == mapping.DatasetImpedance {
			return *signature
		} else {
			log.Printf("[Analysis] semantic signature returned %q, using deterministic classifier", signature.DatasetType)
		}
	}
	return mapping.ClassifySignature(table)
}

func (s *AnalysisService) analyzeCycling(ctx context.Context, req AnalysisRequest, table *telemetry.RawTable) (*CyclingResult, error) {
	mapper := s.mapper
	if req.LocalMode {
		mapper = s.localMapper
	}

	columnMapping, err := mapper.Resolve(ctx, table)
	if err != nil {
		return nil, err
	}

	standardized := s.corrector.Correct(table, columnMapping)
	metrics := telemetry.CalculateMetrics(standardized)

	result := &CyclingResult{
		Mapping: columnMapping,
		Table:   standardized,
		Metrics: metrics,
		CRate:   estimateCRate(metrics),
	}

	if s.physics != nil && standardized.Len() > 0 {
		chemistry := req.Chemistry
		if chemistry == "" {
			chemistry = "NMC"
		}
		reference, err := s.physics.GenerateReference(ctx, chemistry, result.CRate, ambientTemperature(standardized))
		if err != nil {
			log.Printf("[Analysis] reference trace unavailable: %v", err)
		} else {
			result.Reference = reference
		}
	}

	result.Safety = telemetry.ScoreSafety(standardized, result.Reference)
	return result, nil
}

func (s *AnalysisService) analyzeImpedance(ctx context.Context, req AnalysisRequest, table *telemetry.RawTable) (*ImpedanceResult, error) {
	eisMapper := s.eisMapper
	if req.LocalMode {
		eisMapper = s.localEIS
	}

	columns, err := eisMapper.Resolve(ctx, table)
	if err != nil {
		return nil, err
	}

	spectrum := mapping.BuildSpectrum(table, columns)
	if len(spectrum) == 0 {
		return nil, errors.ParseError("impedance columns resolved but no numeric rows survived coercion")
	}

	result := &ImpedanceResult{
		Columns: columns,
		Nyquist: spectrum.NyquistData(),
	}

	// The fit and the band diagnosis are independent reads of the same
	// sweep; run them concurrently. A fit failure is never fatal.
	var g errgroup.Group
	g.Go(func() error {
		fit, err := impedance.FitRandles(spectrum)
		if err != nil {
			log.Printf("[Analysis] equivalent-circuit fit failed: %v", err)
			result.FitNote = err.Error()
			return nil
		}
		result.Fit = fit
		return nil
	})
	g.Go(func() error {
		result.Diagnosis = impedance.Diagnose(spectrum)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// estimateCRate derives the discharge rate from measured capacity and peak
// current. Unusable metrics fall back to 1C; the result is floored at 0.1C
// so the reference solver always gets a sane operating point.
func estimateCRate(metrics telemetry.CyclingMetrics) float64 {
	if metrics.CapacityAh <= 0 || metrics.MaxCurrent <= 0 {
		return 1.0
	}
	cRate := metrics.MaxCurrent / metrics.CapacityAh
	cRate = math.Max(0.1, cRate)
	return math.Round(cRate*100) / 100
}

// ambientTemperature reads the mean mapped temperature when present,
// defaulting to 25C.
func ambientTemperature(table *telemetry.StandardizedCyclingTable) float64 {
	values, ok := table.Extras[string(telemetry.KeyTemperature)]
	if !ok || len(values) == 0 {
		return 25.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
