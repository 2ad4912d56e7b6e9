package mapping

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"battforge/domain/telemetry"
	"battforge/internal/errors"
	"battforge/ports"
)

// sampleRowCount is the preview depth sent to the semantic classifier.
const sampleRowCount = 5

// cyclingPatterns are the regex fallback lists per canonical key, in
// priority order. Headers are normalized (lowercase, underscores to spaces)
// before matching.
var cyclingPatterns = map[telemetry.CanonicalKey][]*regexp.Regexp{
	telemetry.KeyTime: {
		regexp.MustCompile(`time\s*\(?s\)?`),
		regexp.MustCompile(`test\s*time`),
		regexp.MustCompile(`^t$`),
		regexp.MustCompile(`^time$`),
	},
	telemetry.KeyVoltage: {
		regexp.MustCompile(`volt\w*\s*\(?v\)?`),
		regexp.MustCompile(`^v$`),
		regexp.MustCompile(`voltage`),
	},
	telemetry.KeyCurrent: {
		regexp.MustCompile(`curr\w*\s*\(?a\)?`),
		regexp.MustCompile(`^i$`),
		regexp.MustCompile(`current`),
		regexp.MustCompile(`amper`),
	},
	telemetry.KeyCapacity: {
		regexp.MustCompile(`cap\w*\s*\(?ah\)?`),
	},
	telemetry.KeyTemperature: {
		regexp.MustCompile(`temp\w*`),
	},
	telemetry.KeySOC: {
		regexp.MustCompile(`^soc$`),
		regexp.MustCompile(`state\s*of\s*charge`),
	},
}

// CyclingMapper resolves arbitrary headers onto the canonical cycling
// schema. The semantic classifier runs first when available; its answer is
// accepted only when every mandatory key names a real header. The regex
// fallback is fully deterministic.
type CyclingMapper struct {
	classifier ports.SemanticClassifierPort
}

// NewCyclingMapper creates a mapper. A nil classifier skips the semantic
// stage entirely.
func NewCyclingMapper(classifier ports.SemanticClassifierPort) *CyclingMapper {
	return &CyclingMapper{classifier: classifier}
}

// Resolve returns the column mapping or MappingError when the mandatory
// keys stay unresolved after both stages.
func (m *CyclingMapper) Resolve(ctx context.Context, table *telemetry.RawTable) (telemetry.ColumnMapping, error) {
	if mapping, ok := m.semanticStage(ctx, table); ok {
		return mapping, nil
	}

	mapping := regexResolve(table.Headers)
	if !mapping.HasMandatory() {
		return nil, errors.MappingError(fmt.Sprintf(
			"could not auto-detect standard cycling columns (missing %v), headers: %v",
			mapping.MissingMandatory(), table.Headers))
	}
	return mapping, nil
}

// semanticStage asks the classifier collaborator for a mapping and validates
// it strictly. Any failure falls through to the regex stage.
func (m *CyclingMapper) semanticStage(ctx context.Context, table *telemetry.RawTable) (telemetry.ColumnMapping, bool) {
	if m.classifier == nil {
		return nil, false
	}

	mapping, err := m.classifier.MapCyclingColumns(ctx, table.Headers, table.SampleCSV(sampleRowCount))
	if err != nil {
		log.Printf("[Mapper] semantic mapping failed, falling back to regex: %v", err)
		return nil, false
	}
	if !mapping.HasMandatory() || !mapping.ValidAgainst(table) {
		log.Printf("[Mapper] semantic mapping incomplete or invalid (missing %v), falling back to regex",
			mapping.MissingMandatory())
		return nil, false
	}
	return mapping, true
}

// regexResolve matches normalized headers against the pattern lists. The
// first header matching, in pattern-priority order, wins its key; a header
// already claimed by an earlier key is skipped.
func regexResolve(headers []string) telemetry.ColumnMapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeCyclingHeader(h)
	}

	mapping := telemetry.ColumnMapping{}
	claimed := make(map[string]bool)

	keys := append(append([]telemetry.CanonicalKey{}, telemetry.MandatoryKeys...), telemetry.OptionalKeys...)
	for _, key := range keys {
		for _, pattern := range cyclingPatterns[key] {
			found := ""
			for i, norm := range normalized {
				if claimed[headers[i]] {
					continue
				}
				if pattern.MatchString(norm) {
					found = headers[i]
					break
				}
			}
			if found != "" {
				mapping[key] = found
				claimed[found] = true
				break
			}
		}
	}
	return mapping
}

func normalizeCyclingHeader(header string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.ToLower(header), "_", " "))
}
