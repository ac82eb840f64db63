package agents

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"pricewise/internal/adapters/ai"
	"pricewise/internal/agents/parser"
	"pricewise/internal/domain/report"
	"pricewise/internal/metrics"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
	"pricewise/pkg/templates"
)

// Analyst produces one domain report per run. A failed or malformed
// completion still yields a degraded report; the error return is reserved
// for failures to build the prompt or a cancelled ctx.
type Analyst interface {
	Domain() report.Domain
	Analyze(ctx context.Context, uc *UserContext) (*report.Report, error)
}

// Error markers stored on degraded reports.
const (
	MarkerCompletionFailed = "completion_failed"
	MarkerUnparseable      = "unparseable_output"
	MarkerMissingSummary   = "missing_summary"
)

const maxDegradedSummary = 8000

// analysis is the shared completion and interpretation step of the domain analysts.
type analysis struct {
	completer ai.Completer
	domain    report.Domain
	role      string
	promptID  string
	now       func() time.Time
	log       *logger.Logger
}

func newAnalysis(completer ai.Completer, domain report.Domain, role, promptID string) analysis {
	return analysis{
		completer: completer,
		domain:    domain,
		role:      role,
		promptID:  promptID,
		now:       time.Now,
		log:       logger.Get().With("component", "analyst", "domain", domain),
	}
}

func (a analysis) Domain() report.Domain { return a.domain }

// run renders the prompt from data, calls the model and turns the answer
// into a report. indicators are computed locally and stored on the report
// whatever the model returned.
func (a analysis) run(ctx context.Context, uc *UserContext, data any, indicators report.Details) (*report.Report, error) {
	prompt, err := templates.Get().Render(a.promptID, data)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s prompt", a.domain)
	}
	system, err := SystemPrompt(a.role, uc.BusinessName)
	if err != nil {
		return nil, err
	}

	callCtx := ai.WithCallLabels(ctx, ai.CallLabels{
		UserID:  uc.UserID.String(),
		BatchID: uc.BatchID,
		Domain:  a.domain.String(),
	})

	raw, err := a.completer.Complete(callCtx, prompt, system)
	var outcome report.Outcome
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.log.Warnw("Analysis completion failed, storing degraded report",
			"batch_id", uc.BatchID,
			"error", err,
		)
		outcome = report.Degraded{Err: MarkerCompletionFailed + ": " + err.Error()}
	} else {
		outcome = Interpret(raw)
	}

	r := report.New(uc.UserID, uc.BatchID, a.domain, outcome, a.now().UTC())
	if len(indicators) > 0 {
		r.Details["indicators"] = indicators
	}

	metrics.AgentCalls.WithLabelValues(a.domain.String(), string(r.Status)).Inc()
	return r, nil
}

// Interpret maps a model answer onto the report variants. The answer must
// contain a JSON object with a non-empty "summary"; anything else keeps the
// raw text as a degraded report.
func Interpret(raw string) report.Outcome {
	ext, ok := parser.ExtractJSON(raw)
	if !ok || !gjson.Parse(ext.JSON).IsObject() {
		return report.Degraded{Raw: truncateText(strings.TrimSpace(raw), maxDegradedSummary), Err: MarkerUnparseable}
	}

	var details report.Details
	if err := json.Unmarshal([]byte(ext.JSON), &details); err != nil {
		return report.Degraded{Raw: truncateText(strings.TrimSpace(raw), maxDegradedSummary), Err: MarkerUnparseable}
	}

	summary := strings.TrimSpace(gjson.Get(ext.JSON, "summary").String())
	if summary == "" {
		return report.Degraded{Raw: truncateText(strings.TrimSpace(raw), maxDegradedSummary), Err: MarkerMissingSummary}
	}
	delete(details, "summary")
	if ext.Normalized {
		details["normalized_quotes"] = true
	}

	return report.Structured{Summary: summary, Details: details}
}

// SystemPrompt renders the shared system context for role.
func SystemPrompt(role, businessName string) (string, error) {
	out, err := templates.Get().Render("prompts/system", map[string]string{
		"Role":         role,
		"BusinessName": businessName,
	})
	if err != nil {
		return "", errors.Wrap(err, "build system prompt")
	}
	return out, nil
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
