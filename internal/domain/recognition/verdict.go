package recognition

import (
	"platewatch-service/internal/domain/registry"
)

type VerdictKind string

const (
	VerdictNoPlate       VerdictKind = "no_plate"
	VerdictUnknown       VerdictKind = "unknown"
	VerdictVisionMissing VerdictKind = "vision_missing"
	VerdictMatch         VerdictKind = "match"
	VerdictMismatch      VerdictKind = "mismatch"
)

// Verdict is the compliance outcome for one recognition result.
// Record is attached for match, mismatch and vision_missing (when one
// was found); Reasons is populated only for mismatch, ordered make,
// model, color. Wanted is independent of Kind: it marks a registry-level
// alert, not a compared field.
type Verdict struct {
	Kind    VerdictKind      `json:"kind"`
	Plate   string           `json:"plate,omitempty"`
	Record  *registry.Record `json:"record,omitempty"`
	Reasons []string         `json:"reasons,omitempty"`
	Wanted  bool             `json:"wanted"`
}
