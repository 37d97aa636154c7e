// Package hardware enumerates local accelerators for startup diagnostics.
// Detection is informational only: the daemon talks to its engine over HTTP
// and never drives a device itself.
package hardware

import (
	"fmt"
	"strings"

	"github.com/ST2Projects/vision-runner/pkg/logging"
	"github.com/jaypipes/ghw"
)

// Accelerator describes one detected graphics device.
type Accelerator struct {
	Vendor  string `json:"vendor"`
	Product string `json:"product"`
}

// DetectAccelerators enumerates graphics devices. An empty result means
// CPU-only inference on this host.
func DetectAccelerators() ([]Accelerator, error) {
	gpu, err := ghw.GPU()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate graphics devices: %w", err)
	}

	var accelerators []Accelerator
	for _, card := range gpu.GraphicsCards {
		if card.DeviceInfo == nil {
			continue
		}
		accelerator := Accelerator{}
		if card.DeviceInfo.Vendor != nil {
			accelerator.Vendor = card.DeviceInfo.Vendor.Name
		}
		if card.DeviceInfo.Product != nil {
			accelerator.Product = card.DeviceInfo.Product.Name
		}
		accelerators = append(accelerators, accelerator)
	}
	return accelerators, nil
}

// HasCUDA reports whether any detected accelerator is an NVIDIA device.
func HasCUDA(accelerators []Accelerator) bool {
	for _, a := range accelerators {
		if strings.Contains(strings.ToLower(a.Vendor), "nvidia") {
			return true
		}
	}
	return false
}

// LogDiagnostics reports accelerator availability the way operators expect
// to see it in startup output.
func LogDiagnostics(log logging.Logger) {
	accelerators, err := DetectAccelerators()
	if err != nil {
		log.Warnf("Accelerator detection failed: %v", err)
		return
	}

	log.Infof("CUDA available: %t", HasCUDA(accelerators))
	for _, a := range accelerators {
		log.Infof("Graphics device: %s %s", a.Vendor, a.Product)
	}
	if !HasCUDA(accelerators) {
		log.Warnln("CUDA not available, running on CPU (this will be slow)")
	}
}
