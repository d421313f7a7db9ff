package suite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	log.SetOutput(os.Stderr)

	return log
}

func writeSuiteFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

const validSuite = `
name: snapshot_latency
iterations: 30
cooldown_ms: 250
custom:
  instance: m5d.metal
pipes:
  - tag: 5vcpu_256mb
    workload:
      command: ["./snap_bench", "--vcpus", "5"]
      env:
        RUST_LOG: warn
      timeout_ms: 60000
    precondition:
      command: ["sh", "-c", "uname -r | grep -q ^5"]
    sample:
      source: metrics_file
      path: /tmp/snap_metrics.ndjson
      field: latencies_us.full_create_snapshot
      scale: 0.001
    measurement:
      name: latency
      unit: ms
      tags:
        kernel: "5.10"
      criteria:
        - stat: max
          op: lte
          bound: 25
        - stat: mean
          op: within
          lo: 10
          hi: 20
    stats:
      - name: restore_latency
        field: latencies_us.load_snapshot
        scale: 0.001
`

func TestLoadValidSuite(t *testing.T) {
	path := writeSuiteFile(t, validSuite)

	def, err := NewLoader(newTestLogger()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "snapshot_latency", def.Name)
	assert.Equal(t, 30, def.Iterations)
	assert.Equal(t, 250, def.CooldownMS)
	assert.Equal(t, "m5d.metal", def.Custom["instance"])

	require.Len(t, def.Pipes, 1)
	pipe := def.Pipes[0]
	assert.Equal(t, "5vcpu_256mb", pipe.Tag)
	assert.Equal(t, []string{"./snap_bench", "--vcpus", "5"}, pipe.Workload.Command)
	assert.Equal(t, 60000, pipe.Workload.TimeoutMS)
	require.NotNil(t, pipe.Precondition)

	assert.Equal(t, SourceMetricsFile, pipe.Sample.Source)
	assert.Equal(t, "latencies_us.full_create_snapshot", pipe.Sample.Field)
	assert.InDelta(t, 0.001, pipe.Sample.Scale, 1e-12)

	assert.Equal(t, "latency", pipe.Measurement.Name)
	assert.Equal(t, "ms", pipe.Measurement.Unit)
	require.Len(t, pipe.Measurement.Criteria, 2)
	assert.Equal(t, "max", pipe.Measurement.Criteria[0].Stat)
	require.NotNil(t, pipe.Measurement.Criteria[0].Bound)
	assert.Equal(t, 25.0, *pipe.Measurement.Criteria[0].Bound)
	require.NotNil(t, pipe.Measurement.Criteria[1].Lo)
	assert.Equal(t, 10.0, *pipe.Measurement.Criteria[1].Lo)

	require.Len(t, pipe.Stats, 1)
	assert.Equal(t, "restore_latency", pipe.Stats[0].Name)
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name: "missing suite name",
			content: `
iterations: 1
pipes:
  - tag: a
`,
			wantErr: errSuiteNameRequired,
		},
		{
			name: "zero iterations",
			content: `
name: s
pipes:
  - tag: a
`,
			wantErr: errIterationsRequired,
		},
		{
			name: "no pipes",
			content: `
name: s
iterations: 1
`,
			wantErr: errNoPipes,
		},
		{
			name: "missing pipe tag",
			content: `
name: s
iterations: 1
pipes:
  - workload:
      command: ["true"]
`,
			wantErr: errPipeTagRequired,
		},
		{
			name: "missing workload",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
`,
			wantErr: errWorkloadRequired,
		},
		{
			name: "empty workload command",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
    workload:
      command: []
`,
			wantErr: errCommandRequired,
		},
		{
			name: "missing sample",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
    workload:
      command: ["true"]
`,
			wantErr: errSampleRequired,
		},
		{
			name: "unknown sample source",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
    workload:
      command: ["true"]
    sample:
      source: clock
`,
			wantErr: errUnknownSampleSource,
		},
		{
			name: "metrics sample without path",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
    workload:
      command: ["true"]
    sample:
      source: metrics_file
      field: latencies_us.boot
`,
			wantErr: errMetricsPathRequired,
		},
		{
			name: "metrics sample without field",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
    workload:
      command: ["true"]
    sample:
      source: metrics_file
      path: /tmp/m.ndjson
`,
			wantErr: errMetricsFieldRequired,
		},
		{
			name: "missing measurement",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
    workload:
      command: ["true"]
    sample:
      source: duration_ms
`,
			wantErr: errMeasurementRequired,
		},
		{
			name: "criterion without bounds",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
    workload:
      command: ["true"]
    sample:
      source: duration_ms
    measurement:
      name: latency
      criteria:
        - stat: max
`,
			wantErr: errCriterionShapeInvalid,
		},
		{
			name: "criterion mixes baseline and bound",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
    workload:
      command: ["true"]
    sample:
      source: duration_ms
    measurement:
      name: latency
      criteria:
        - stat: max
          baseline: true
          op: lte
          bound: 5
`,
			wantErr: errCriterionShapeInvalid,
		},
		{
			name: "within without range",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
    workload:
      command: ["true"]
    sample:
      source: duration_ms
    measurement:
      name: latency
      criteria:
        - stat: mean
          op: within
          bound: 5
`,
			wantErr: errCriterionShapeInvalid,
		},
		{
			name: "aux stats without metrics channel",
			content: `
name: s
iterations: 1
pipes:
  - tag: a
    workload:
      command: ["true"]
    sample:
      source: duration_ms
    measurement:
      name: latency
    stats:
      - name: depth
        field: queue.depth
`,
			wantErr: errAuxNeedsMetricsFile,
		},
	}

	loader := NewLoader(newTestLogger())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(writeSuiteFile(t, tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadCollectsErrorsAcrossPipes(t *testing.T) {
	content := `
name: s
iterations: 1
pipes:
  - tag: first_bad
    workload:
      command: ["true"]
  - tag: second_bad
    sample:
      source: duration_ms
`

	_, err := NewLoader(newTestLogger()).Load(writeSuiteFile(t, content))
	require.Error(t, err)

	// Both broken pipes show up, not just the first.
	assert.Contains(t, err.Error(), "first_bad")
	assert.Contains(t, err.Error(), "second_bad")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := NewLoader(newTestLogger()).Load(writeSuiteFile(t, "name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing yaml")
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"b.yaml", "a.yaml", "c.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x: 1"), 0o600))
	}

	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o750))

	paths, err := NewLoader(newTestLogger()).Discover(dir)
	require.NoError(t, err)

	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "a.yaml"), paths[0])
	assert.Equal(t, filepath.Join(dir, "b.yaml"), paths[1])
	assert.Equal(t, filepath.Join(dir, "c.yml"), paths[2])
}
