package alerter

import (
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/model"
	"cmp"
	"fmt"
	"html"
	"log"
	"slices"
	"strings"
)

// worstFlows is the number of flows listed in an alert.
const worstFlows = 5

// Alerter evaluates each report against the configured thresholds and sends one
// consolidated notification when any of them is exceeded. It is registered as
// the "alert" report writer.
type Alerter struct {
	cfg      config.AlertConfig
	notifier model.Notifier
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg config.AlertConfig, notifier model.Notifier) *Alerter {
	return &Alerter{cfg: cfg, notifier: notifier}
}

func (a *Alerter) Name() string {
	return "alert"
}

// Evaluate returns one message per violated threshold.
func (a *Alerter) Evaluate(t model.GlobalTotals) []string {
	var msgs []string
	if a.cfg.MaxLossRate > 0 && t.TotalSent() > 0 {
		if rate := float64(t.Lost()) / float64(t.TotalSent()); rate > a.cfg.MaxLossRate {
			msgs = append(msgs, fmt.Sprintf("loss rate %.4f exceeds %.4f (%d of %d packets lost)",
				rate, a.cfg.MaxLossRate, t.Lost(), t.TotalSent()))
		}
	}
	if a.cfg.MaxDataLossRate > 0 && t.DataSent > 0 {
		if rate := float64(t.DataLost()) / float64(t.DataSent); rate > a.cfg.MaxDataLossRate {
			msgs = append(msgs, fmt.Sprintf("data loss rate %.4f exceeds %.4f (%d of %d data packets lost)",
				rate, a.cfg.MaxDataLossRate, t.DataLost(), t.DataSent))
		}
	}
	if a.cfg.MaxAverageDelay > 0 {
		if avg, err := t.AverageDelay(); err == nil && avg > a.cfg.MaxAverageDelay {
			msgs = append(msgs, fmt.Sprintf("average delay %gs exceeds %gs over %d samples",
				avg, a.cfg.MaxAverageDelay, t.MatchedDelayCount))
		}
	}
	return msgs
}

// Write sends a notification if the report violates a threshold.
func (a *Alerter) Write(report *model.Report) error {
	msgs := a.Evaluate(report.Totals)
	if len(msgs) == 0 {
		return nil
	}
	log.Printf("Run %s triggered %d alert(s).", report.RunID, len(msgs))

	subject := fmt.Sprintf("TraceCorrelator Alert: run %s (%d Triggered)", report.RunID, len(msgs))
	if err := a.notifier.Send(subject, renderBody(report, msgs)); err != nil {
		return fmt.Errorf("failed to send alert notification: %w", err)
	}
	return nil
}

func renderBody(report *model.Report, msgs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Run %s, partition %d/%d</h1><ul>",
		html.EscapeString(report.RunID), report.Partition.Index, report.Partition.Count)
	for _, m := range msgs {
		fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(m))
	}
	b.WriteString("</ul>")

	flows := slices.Clone(report.Flows)
	slices.SortStableFunc(flows, func(x, y model.FlowResult) int {
		return cmp.Compare(y.Tally.DataSent-y.Tally.DataReceived, x.Tally.DataSent-x.Tally.DataReceived)
	})
	if len(flows) > worstFlows {
		flows = flows[:worstFlows]
	}
	if len(flows) > 0 {
		b.WriteString("<h2>Flows with the most data loss</h2><table><tr><th>flow</th><th>sent</th><th>received</th><th>lost</th></tr>")
		for _, f := range flows {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td></tr>",
				f.Pair, f.Tally.DataSent, f.Tally.DataReceived, f.Tally.DataSent-f.Tally.DataReceived)
		}
		b.WriteString("</table>")
	}
	return b.String()
}
