package quality

import (
	"fmt"
	"strings"
	"time"
)

// Render formats the quality report written alongside each output volume.
// inputName is the base name of the processed scan; when stamps the report.
func Render(m Metrics, inputName string, when time.Time) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "Quality Assessment Report\n")
	fmt.Fprintf(&b, "Input file: %s\n", inputName)
	fmt.Fprintf(&b, "Processing date: %s\n", when.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "%s\n\n", rule)

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "QUALITY ASSESSMENT REPORT\n")
	fmt.Fprintf(&b, "%s\n", rule)

	fmt.Fprintf(&b, "\n1. Mask Coverage: %.2f%%\n", m.MaskCoveragePercent)
	fmt.Fprintf(&b, "   Status: %s\n", verdict(m.CoverageOK))

	fmt.Fprintf(&b, "\n2. Brain Volume: %.2f cm3\n", m.BrainVolumeCM3)
	fmt.Fprintf(&b, "   Status: %s\n", verdict(m.VolumeOK))
	fmt.Fprintf(&b, "   Expected: %.0f-%.0f cm3\n", minVolumeCM3, maxVolumeCM3)

	fmt.Fprintf(&b, "\n3. Connected Components: %d\n", m.NumComponents)
	fmt.Fprintf(&b, "   Largest component: %.1f%%\n", m.LargestComponentFraction*100)
	fmt.Fprintf(&b, "   Status: %s\n", verdict(m.ComponentsOK))

	fmt.Fprintf(&b, "\n4. Edge Density: %.4f\n", m.EdgeDensity)
	fmt.Fprintf(&b, "   Status: %s\n", verdict(m.EdgeDensityOK))

	fmt.Fprintf(&b, "\n5. Intensity Statistics:\n")
	fmt.Fprintf(&b, "   Mean: %.2f, Std: %.2f\n", m.Intensity.Mean, m.Intensity.Std)
	fmt.Fprintf(&b, "   Range: [%.2f, %.2f]\n", m.Intensity.Min, m.Intensity.Max)
	fmt.Fprintf(&b, "   Status: %s\n", verdict(m.IntensityOK))

	fmt.Fprintf(&b, "\n%s\n", strings.Repeat("-", 60))
	if m.OverallPass {
		fmt.Fprintf(&b, "Overall: PASS\n")
	} else {
		fmt.Fprintf(&b, "Overall: FAIL\n")
	}
	fmt.Fprintf(&b, "Passed %d/%d checks\n", m.PassedChecks, m.TotalChecks)
	fmt.Fprintf(&b, "%s\n", rule)

	return b.String()
}

func verdict(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
