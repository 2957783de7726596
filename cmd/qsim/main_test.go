package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qircuitsim/internal/circuit"
	"qircuitsim/internal/format"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func runApp(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(strings.NewReader(stdin), &stdout, &stderr)
	err := app.Run(append([]string{"qsim", "--log-level", "warn"}, args...))
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const bellJSON = `{"circuit": {"qubits": 2, "gates": [
	{"type": "H", "target": 0, "step": 0, "control": null},
	{"type": "CNOT", "target": 1, "step": 1, "control": 0}
]}, "shots": 0}`

const bellQASM = `OPENQASM 2.0;
include "qelib1.inc";
qreg q[2];
h q[0];
cx q[0], q[1];
`

func TestRunFromStdin(t *testing.T) {
	r := runApp(t, bellJSON, "run")
	require.NoError(t, r.err)

	var resp format.Response
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	assert.InDeltaSlice(t, []float64{0.5, 0, 0, 0.5}, resp.Probabilities, 1e-9)
	assert.Len(t, resp.Statevector, 4)
}

func TestRunWithSeedIsReproducible(t *testing.T) {
	body := `{"circuit": {"qubits": 1, "gates": [{"type": "H", "target": 0}]}, "shots": 200}`
	path := writeFile(t, "req.json", body)

	a := runApp(t, "", "run", "--in", path, "--seed", "4")
	b := runApp(t, "", "run", "--in", path, "--seed", "4")
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Equal(t, a.stdout, b.stdout)
}

func TestRunReportsErrors(t *testing.T) {
	r := runApp(t, `{"circuit": {"qubits": 2, "gates": [{"type": "CNOT", "target": 0, "control": 0}]}}`, "run", "--pretty")
	require.ErrorIs(t, r.err, errSimulationFailed)

	var resp format.Response
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	assert.Contains(t, resp.Error, "control and target")
	assert.Contains(t, r.stdout, "\n  \"error\"")
}

func TestQASMTable(t *testing.T) {
	path := writeFile(t, "bell.qasm", bellQASM)
	r := runApp(t, "", "qasm", "--table", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "|00⟩")
	assert.Contains(t, r.stdout, "|11⟩")
	assert.Contains(t, r.stdout, "0.500000")
}

func TestQASMSampledJSON(t *testing.T) {
	path := writeFile(t, "bell.qasm", bellQASM)
	r := runApp(t, "", "qasm", "--shots", "100", "--seed", "1", path)
	require.NoError(t, r.err)

	var resp format.Response
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	assert.Len(t, resp.Probabilities, 4)
	assert.Nil(t, resp.Statevector)
}

func TestQASMRequest(t *testing.T) {
	path := writeFile(t, "bell.qasm", bellQASM)
	r := runApp(t, "", "qasm", "--request", path)
	require.NoError(t, r.err)

	req, err := circuit.DecodeRequest([]byte(r.stdout))
	require.NoError(t, err)
	c, err := req.Circuit.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumQubits)
	assert.Equal(t, 2, c.Len())
}

func TestQASMErrors(t *testing.T) {
	r := runApp(t, "", "qasm")
	assert.ErrorContains(t, r.err, "expected exactly one FILE")

	r = runApp(t, "", "qasm", writeFile(t, "bad.qasm", "qreg q[1];\nccx q[0];"))
	assert.ErrorContains(t, r.err, "line 2")
}

func TestExport(t *testing.T) {
	r := runApp(t, bellJSON, "export")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "qreg q[2];")
	assert.Contains(t, r.stdout, "h q[0];")
	assert.Contains(t, r.stdout, "cx q[0], q[1];")
}

func TestExportByStep(t *testing.T) {
	body := `{"circuit": {"qubits": 1, "gates": [
		{"type": "X", "target": 0, "step": 2},
		{"type": "H", "target": 0, "step": 0}
	]}}`

	r := runApp(t, body, "export")
	require.NoError(t, r.err)
	assert.Less(t, strings.Index(r.stdout, "x q[0];"), strings.Index(r.stdout, "h q[0];"))

	r = runApp(t, body, "export", "--by-step")
	require.NoError(t, r.err)
	assert.Less(t, strings.Index(r.stdout, "h q[0];"), strings.Index(r.stdout, "x q[0];"))
}

func TestBadConfig(t *testing.T) {
	path := writeFile(t, "qsim.yaml", "engine:\n  max_qubits: 99\n")
	r := runApp(t, bellJSON, "--config", path, "run")
	assert.ErrorContains(t, r.err, "engine.max_qubits")

	r = runApp(t, bellJSON, "--log-level", "chatty", "run")
	assert.ErrorContains(t, r.err, "logging.level")
}

func TestConfigLimitsApply(t *testing.T) {
	path := writeFile(t, "qsim.yaml", "engine:\n  max_qubits: 1\n")
	r := runApp(t, bellJSON, "--config", path, "run")
	require.ErrorIs(t, r.err, errSimulationFailed)
	assert.Contains(t, r.stdout, "exceeds limit")
}

func TestLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "qsim.log")
	path := writeFile(t, "qsim.yaml", "logging:\n  file: "+logPath+"\n  max_size_mb: 1\n")
	r := runApp(t, `{"circuit": {"qubits": 0, "gates": []}}`, "--config", path, "run")
	require.ErrorIs(t, r.err, errSimulationFailed)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "request rejected")
	assert.NotContains(t, r.stderr, "request rejected")
}

func TestConfigWorkBudgetApplies(t *testing.T) {
	path := writeFile(t, "qsim.yaml", "engine:\n  max_work: 1\n")
	r := runApp(t, bellJSON, "--config", path, "run")
	require.ErrorIs(t, r.err, errSimulationFailed)
	assert.Contains(t, r.stdout, "amplitude updates")
	assert.Contains(t, r.stdout, "RESOURCE_LIMIT")
}

func TestTraceExportsMetrics(t *testing.T) {
	r := runApp(t, bellJSON, "--trace", "run")
	require.NoError(t, r.err)
	assert.Contains(t, r.stderr, "qsim.simulate")
	assert.Contains(t, r.stderr, "qsim.runs")
	assert.Contains(t, r.stderr, "qsim.run.duration")
}
