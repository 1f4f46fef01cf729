// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Default build-time variable.
// These values are overridden via ldflags
var (
	Version   = "unknown-version"
	GitCommit = "unknown-commit"
	BuildTime = "unknown-buildtime"
)

// dependencies whose versions change sampling results
var numericModules = []string{"gonum.org/v1/gonum"}

// instruction sets used by the BLAS kernels
var simdFeatures = []struct {
	name string
	id   cpuid.FeatureID
}{
	{"sse2", cpuid.SSE2},
	{"avx", cpuid.AVX},
	{"avx2", cpuid.AVX2},
	{"fma", cpuid.FMA3},
	{"avx512f", cpuid.AVX512F},
	{"asimd", cpuid.ASIMD},
}

// SIMDFeatures returns the supported instruction sets of the host CPU.
func SIMDFeatures() []string {
	var features []string
	for _, f := range simdFeatures {
		if cpuid.CPU.Supports(f.id) {
			features = append(features, f.name)
		}
	}
	return features
}

func BuildInfo() string {
	var builder strings.Builder
	_, _ = fmt.Fprintln(&builder, "Version:\t", Version)
	_, _ = fmt.Fprintln(&builder, "Go version:\t", runtime.Version())
	_, _ = fmt.Fprintln(&builder, "Git commit:\t", GitCommit)
	_, _ = fmt.Fprintln(&builder, "Built:\t\t", BuildTime)
	_, _ = fmt.Fprintf(&builder, "OS/Arch:\t %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&builder, "CPU:\t\t %s (%d threads)\n", cpuid.CPU.BrandName, cpuid.CPU.LogicalCores)
	_, _ = fmt.Fprintf(&builder, "SIMD:\t\t %s\n", strings.Join(SIMDFeatures(), " "))
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			for _, path := range numericModules {
				if dep.Path == path {
					_, _ = fmt.Fprintf(&builder, "%s:\t %s\n", path, dep.Version)
				}
			}
		}
	}
	return builder.String()
}
