package service

import (
	"fmt"
	"strings"

	"platewatch-service/internal/domain/recognition"
	"platewatch-service/internal/domain/registry"
	"platewatch-service/internal/utils"
)

// Make/model comparisons accept any of the top-ranked predictions: the
// classifier is coarser than plate OCR, and top-1 equality over-reports
// mismatches.
const attributeTopK = 3

// EvaluateCompliance reconciles one unified recognition result against
// the registry. Pure and deterministic: identical inputs always yield
// the identical verdict, reasons included, ordered make, model, color.
func EvaluateCompliance(result *recognition.Result, lookup registry.Lookup) recognition.Verdict {
	top := result.TopCandidate()
	if top == nil {
		return recognition.Verdict{Kind: recognition.VerdictNoPlate}
	}

	plate := utils.NormalizePlate(top.Plate)
	if plate == "" {
		return recognition.Verdict{Kind: recognition.VerdictNoPlate}
	}

	record, found := lookup.Find(plate)

	// Without vision there is nothing to compare; the record, if any,
	// rides along for display only.
	if result.VisionStatus != recognition.VisionOK || result.Vision == nil {
		verdict := recognition.Verdict{
			Kind:  recognition.VerdictVisionMissing,
			Plate: plate,
		}
		if found {
			rec := record
			verdict.Record = &rec
			verdict.Wanted = rec.Wanted
		}
		return verdict
	}

	if !found {
		return recognition.Verdict{Kind: recognition.VerdictUnknown, Plate: plate}
	}

	rec := record
	var reasons []string
	if reason := compareRanked("make", rec.Make, result.Vision.Makes); reason != "" {
		reasons = append(reasons, reason)
	}
	if reason := compareRanked("model", rec.Model, result.Vision.Models); reason != "" {
		reasons = append(reasons, reason)
	}
	if reason := compareColor(rec.Color, result.Vision.Color); reason != "" {
		reasons = append(reasons, reason)
	}

	verdict := recognition.Verdict{
		Plate:  plate,
		Record: &rec,
		Wanted: rec.Wanted,
	}
	if len(reasons) > 0 {
		verdict.Kind = recognition.VerdictMismatch
		verdict.Reasons = reasons
	} else {
		verdict.Kind = recognition.VerdictMatch
	}
	return verdict
}

// compareRanked checks that the expected value appears among the top
// predictions. An empty prediction list is reported distinctly from a
// wrong value.
func compareRanked(field, expected string, predictions []recognition.RankedLabel) string {
	if len(predictions) == 0 {
		return fmt.Sprintf("%s: no %s predictions available to compare against expected %q", field, field, expected)
	}
	limit := attributeTopK
	if len(predictions) < limit {
		limit = len(predictions)
	}
	labels := make([]string, 0, limit)
	for _, p := range predictions[:limit] {
		if equalFoldTrim(expected, p.Label) {
			return ""
		}
		labels = append(labels, p.Label)
	}
	return fmt.Sprintf("%s: expected %q, detected %s", field, expected, strings.Join(labels, ", "))
}

// compareColor is asymmetric with make/model: a missing color prediction
// skips the field instead of faulting it.
func compareColor(expected string, color *recognition.ColorGuess) string {
	if color == nil {
		return ""
	}
	if equalFoldTrim(expected, color.Name) {
		return ""
	}
	return fmt.Sprintf("color: expected %q, detected %q", expected, color.Name)
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
