package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sealbid/internal/journal"
)

// GoldenDir holds golden traces, relative to the test's package.
const GoldenDir = "testdata/golden"

// TraceJSON renders a trace as canonical JSON, so equal runs produce
// byte-identical output.
func TraceJSON(scenarioName string, trace []TraceEvent) ([]byte, error) {
	events := make([]any, len(trace))
	for i, e := range trace {
		m := map[string]any{
			"seq":     e.Seq,
			"kind":    e.Kind,
			"bid":     e.Bid,
			"caller":  e.Caller,
			"outcome": e.Outcome,
		}
		if e.Receipt != nil {
			m["receipt"] = map[string]any{
				"winner": e.Receipt.Winner,
				"shares": e.Receipt.Shares,
				"cost":   e.Receipt.Cost,
				"refund": e.Receipt.Refund,
			}
		}
		events[i] = m
	}
	return journal.Marshal(map[string]any{
		"scenario": scenarioName,
		"trace":    events,
	})
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := TraceJSON(scenarioName, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
