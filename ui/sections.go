package ui

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/truncate"
	"github.com/padworld/padtour/tour"
)

// sectionsView lists the tour steps and highlights the selected one. Steps
// of the app walkthrough are nested under their section.
func sectionsView(steps []tour.Step, selected int, active bool, width int) string {
	var b strings.Builder
	for i, step := range steps {
		feature := i >= tour.FeatureFirstStep && i < tour.FeatureFirstStep+tour.FeatureCount
		label := step.Label
		if feature {
			label = "  " + strings.TrimPrefix(label, "App: ")
		}
		label = fmt.Sprintf("%2d %s", i+1, label)
		label = truncate.StringWithTail(label, uint(max(0, width-3)), ellipsis) //nolint:gosec

		switch {
		case i == selected && active:
			b.WriteString(activeSectionStyle.Render(label))
		case i == selected:
			b.WriteString(sectionStyle.Render(subtleStyle.Render("› ") + label))
		case feature && active && selected >= tour.FeatureFirstStep && selected < tour.FeatureFirstStep+tour.FeatureCount:
			b.WriteString(sectionStyle.Render(featureStyle.Render(label)))
		default:
			b.WriteString(sectionStyle.Render(label))
		}
		if i < len(steps)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// sectionIndex returns the first step shown in section id, or -1.
func sectionIndex(steps []tour.Step, id string) int {
	for i, s := range steps {
		if s.SectionID == id {
			return i
		}
	}
	return -1
}
