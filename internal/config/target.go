package config

import (
	"fmt"
	"strings"
)

// Execution targets accepted by runtime.target.
const (
	TargetAuto    = "auto"
	TargetGeneric = "cpu-generic"
	TargetAVX2    = "cpu-avx2"
	TargetNEON    = "cpu-neon"
)

// NormalizeTarget canonicalizes a runtime.target value. Empty means auto.
func NormalizeTarget(raw string) (string, error) {
	target := strings.ToLower(strings.TrimSpace(raw))
	if target == "" {
		target = TargetAuto
	}

	switch target {
	case TargetAuto, TargetGeneric, TargetAVX2, TargetNEON:
		return target, nil
	case "cpu", "generic":
		return TargetGeneric, nil
	case "avx2":
		return TargetAVX2, nil
	case "neon":
		return TargetNEON, nil
	default:
		return "", fmt.Errorf(
			"invalid target %q (expected %s|%s|%s|%s)",
			raw,
			TargetAuto,
			TargetGeneric,
			TargetAVX2,
			TargetNEON,
		)
	}
}
