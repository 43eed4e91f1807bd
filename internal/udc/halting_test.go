package udc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlan(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.udc")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestAnalyze_CounterLoopIsLow(t *testing.T) {
	report := Analyze(writePlan(t, "LABEL L\nINC R1\nCMP R1 10\nJNE L\n"))

	assert.Equal(t, RiskLow, report.EstimatedRisk)
	require.Len(t, report.PotentialInfiniteLoops, 1)

	loop := report.PotentialInfiniteLoops[0]
	assert.Equal(t, "L", loop.Label)
	assert.Equal(t, 2, loop.StartLine)
	assert.Equal(t, 4, loop.EndLine)
	assert.Equal(t, RiskLow, loop.Risk)
	assert.Contains(t, loop.Reason, "predictable modification of R1")
	require.NotNil(t, loop.ExitCondition)
	assert.Equal(t, OpJne, loop.ExitCondition.Opcode)
}

func TestAnalyzeProgram_Classification(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		risk   Risk
		reason string
	}{
		{
			name:   "no loops",
			src:    "MOV A, 1\nHALT\n",
			risk:   RiskLow,
			reason: "no loops detected",
		},
		{
			name:   "forward jump only",
			src:    "JMP end\nINC A\nLABEL end\nHALT\n",
			risk:   RiskLow,
			reason: "no loops detected",
		},
		{
			name:   "unconditional without break",
			src:    "LABEL L\nINC A\nJMP L\n",
			risk:   RiskHigh,
			reason: "unconditional, no detectable break",
		},
		{
			name:   "unconditional with break",
			src:    "LABEL L\nINC A\nCMP A, 5\nJE out\nJMP L\nLABEL out\nHALT\n",
			risk:   RiskLow,
			reason: "predictable modification of A",
		},
		{
			name:   "input-driven exit",
			src:    "LABEL L\nREAD A\nCMP A, 0\nJNE L\n",
			risk:   RiskHigh,
			reason: "unpredictable input",
		},
		{
			name:   "exit register never modified",
			src:    "LABEL L\nINC B\nCMP A, 3\nJNE L\n",
			risk:   RiskHigh,
			reason: "register A never modified",
		},
		{
			name:   "register-valued step",
			src:    "LABEL L\nADD A, B\nCMP A, 10\nJL L\n",
			risk:   RiskMedium,
			reason: "complex modification of A",
		},
		{
			name:   "no comparison",
			src:    "LABEL L\nINC A\nJNE L\n",
			risk:   RiskMedium,
			reason: "no CMP precedes exit jump",
		},
		{
			name:   "unconditional self-jump",
			src:    "LABEL L\nJMP L\n",
			risk:   RiskHigh,
			reason: "unconditional, no detectable break",
		},
		{
			name:   "conditional self-jump",
			src:    "LABEL M\nJE M\n",
			risk:   RiskMedium,
			reason: "no CMP precedes exit jump",
		},
		{
			name:   "comparison outside loop body is ignored",
			src:    "CMP A, 0\nLABEL M\nINC A\nJNE M\n",
			risk:   RiskMedium,
			reason: "no CMP precedes exit jump",
		},
		{
			name:   "constant comparison",
			src:    "LABEL L\nINC A\nCMP 1, 2\nJNE L\n",
			risk:   RiskUnknown,
			reason: "constant comparison",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := AnalyzeProgram(mustParse(t, tt.src))
			assert.Equal(t, tt.risk, report.EstimatedRisk)
			assert.Contains(t, report.Reason, tt.reason)
		})
	}
}

func TestAnalyzeProgram_WorstLoopWins(t *testing.T) {
	src := `
LABEL a
INC I
CMP I, 3
JNE a
LABEL b
READ X
CMP X, 0
JE b
LABEL c
ADD Y, X
CMP Y, 9
JL c
`
	report := AnalyzeProgram(mustParse(t, src))
	require.Len(t, report.PotentialInfiniteLoops, 3)

	assert.Equal(t, RiskHigh, report.EstimatedRisk)
	assert.Contains(t, report.Reason, "3 loop(s) detected")
	assert.Contains(t, report.Reason, "loop 'b'")

	risks := []Risk{}
	for _, l := range report.PotentialInfiniteLoops {
		risks = append(risks, l.Risk)
	}
	assert.Equal(t, []Risk{RiskLow, RiskHigh, RiskMedium}, risks)
}

func TestAnalyze_Errors(t *testing.T) {
	report := Analyze(filepath.Join(t.TempDir(), "missing.udc"))
	assert.Equal(t, RiskError, report.EstimatedRisk)
	assert.NotEmpty(t, report.Reason)
	assert.Empty(t, report.PotentialInfiniteLoops)

	report = Analyze(writePlan(t, "LABEL L\nBOGUS\nJMP L\n"))
	assert.Equal(t, RiskError, report.EstimatedRisk)
	assert.Contains(t, report.Reason, "unknown opcode")
}

func TestReport_JSON(t *testing.T) {
	report := AnalyzeProgram(mustParse(t, "LABEL L\nJMP L\n"))
	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "HIGH", decoded["estimated_risk"])

	loops, ok := decoded["potential_infinite_loops"].([]interface{})
	require.True(t, ok)
	require.Len(t, loops, 1)
	assert.Nil(t, loops[0].(map[string]interface{})["exit_condition"])
}
