package reporting

import (
	"time"

	"drummond-lab/internal/metrics"
)

// RunReport is the rendered view of one or more backtest runs.
type RunReport struct {
	GeneratedAt time.Time
	Reports     []*metrics.Report
}

// NewRunReport builds a report over the given run metrics.
func NewRunReport(reports []*metrics.Report) *RunReport {
	return &RunReport{
		GeneratedAt: time.Now().UTC(),
		Reports:     reports,
	}
}
