//go:build !nogpu

package strata

import "github.com/gogpu/strata/internal/gpu"

func init() {
	loggerSinks = append(loggerSinks, gpu.SetLogger)
}
