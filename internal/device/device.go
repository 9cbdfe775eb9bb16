// Package device reports which CPU execution target the float32 runtime
// runs on.
package device

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/cpu"

	"github.com/example/go-nmt/internal/config"
)

// Target identifies an execution target.
type Target string

const (
	Generic Target = config.TargetGeneric
	AVX2    Target = config.TargetAVX2
	NEON    Target = config.TargetNEON
)

// Features is the subset of CPU capabilities Detect looks at.
type Features struct {
	Arch    string
	HasAVX2 bool
	HasFMA  bool
	HasNEON bool
}

// HostFeatures reads the running CPU's capabilities.
func HostFeatures() Features {
	return Features{
		Arch:    runtime.GOARCH,
		HasAVX2: cpu.X86.HasAVX2,
		HasFMA:  cpu.X86.HasFMA,
		HasNEON: cpu.ARM64.HasASIMD,
	}
}

// Detect picks the best target for the host.
func Detect() Target {
	return detect(HostFeatures())
}

func detect(f Features) Target {
	switch {
	case f.Arch == "amd64" && f.HasAVX2 && f.HasFMA:
		return AVX2
	case f.Arch == "arm64" && f.HasNEON:
		return NEON
	default:
		return Generic
	}
}

// Resolve turns a runtime.target setting into a concrete target. "auto"
// detects; an explicit target must be supported by the host, except
// cpu-generic which always is.
func Resolve(raw string) (Target, error) {
	return resolve(raw, HostFeatures())
}

func resolve(raw string, f Features) (Target, error) {
	name, err := config.NormalizeTarget(raw)
	if err != nil {
		return "", err
	}

	if name == config.TargetAuto {
		return detect(f), nil
	}

	want := Target(name)
	if want == Generic {
		return Generic, nil
	}

	if detect(f) != want {
		return "", fmt.Errorf("device: target %s not supported on %s", want, f.Arch)
	}

	return want, nil
}
