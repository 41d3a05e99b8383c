package engine

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// CPUInfo describes the host the runtime executes on.
type CPUInfo struct {
	Arch     string          `json:"arch"`
	Cores    int             `json:"cores"`
	Features map[string]bool `json:"features"`
}

func DetectCPU() CPUInfo {
	features := map[string]bool{}
	switch runtime.GOARCH {
	case "amd64", "386":
		features["avx512f"] = cpu.X86.HasAVX512F
		features["avx2"] = cpu.X86.HasAVX2
		features["sse41"] = cpu.X86.HasSSE41
		features["fma"] = cpu.X86.HasFMA
	case "arm64":
		features["asimd"] = cpu.ARM64.HasASIMD
		features["fp16"] = cpu.ARM64.HasFPHP
		features["sve"] = cpu.ARM64.HasSVE
	}

	return CPUInfo{
		Arch:     runtime.GOARCH,
		Cores:    runtime.NumCPU(),
		Features: features,
	}
}
