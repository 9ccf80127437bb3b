package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/CK6170/Oxyfit-go/models"
)

var (
	Out io.Writer = os.Stdout

	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	headStyle  = lipgloss.NewStyle().Bold(true)
)

func Successf(format string, a ...interface{}) {
	fmt.Fprint(Out, okStyle.Render(fmt.Sprintf(format, a...)))
}

func Warningf(format string, a ...interface{}) {
	fmt.Fprint(Out, warnStyle.Render(fmt.Sprintf(format, a...)))
}

func Errorf(format string, a ...interface{}) {
	fmt.Fprint(Out, errStyle.Render(fmt.Sprintf(format, a...)))
}

func Debugf(enabled bool, format string, a ...interface{}) {
	if enabled {
		fmt.Fprint(Out, debugStyle.Render(fmt.Sprintf("[DEBUG] "+format, a...)))
	}
}

// OxygenTable formats the reduced bottles, one row per filled slot.
func OxygenTable(r *models.OxygenResult) string {
	var b strings.Builder
	b.WriteString(headStyle.Render(fmt.Sprintf("%6s %10s %10s", "Bottle", "ml/l", "umol/kg")))
	b.WriteByte('\n')
	for i := range r.ML {
		ml, kg := r.ML[i], r.Kg[i]
		if ml.Bottle == 0 {
			continue
		}
		fmt.Fprintf(&b, "%6d %10s %10s\n", ml.Bottle, ml.Oxygen, kg.Oxygen)
	}
	return b.String()
}

// CoefficientTable formats a seed and fitted coefficient set side by side.
func CoefficientTable(initial, fitted models.Coefficients) string {
	var b strings.Builder
	b.WriteString(headStyle.Render(fmt.Sprintf("%-8s %14s %14s", "Coef", "Initial", "Fitted")))
	b.WriteByte('\n')
	for i, name := range models.CoefficientNames {
		fmt.Fprintf(&b, "%-8s %14.6g %14.6g\n", name, initial[i], fitted[i])
	}
	return b.String()
}
