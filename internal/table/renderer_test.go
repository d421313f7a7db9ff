package table

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/olekukonko/tablewriter"
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

func TestRendererRendersHeadersAndRows(t *testing.T) {
	r := NewRenderer(newTestLogger())

	out := r.RenderToString(
		[]string{"Pipe", "Status"},
		[][]string{
			{"5vcpu_256mb", "passed"},
			{"1vcpu_128mb", "skipped"},
		},
	)

	// Headers are auto-formatted to upper case.
	assert.Contains(t, out, "PIPE")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "5vcpu_256mb")
	assert.Contains(t, out, "1vcpu_128mb")
	assert.Contains(t, out, "│")
}

func TestRendererToWriter(t *testing.T) {
	r := NewRenderer(newTestLogger())

	buf := &bytes.Buffer{}
	r.RenderToWriter(buf, []string{"Metric", "Value"}, [][]string{{"Total Pipes", "3"}})

	require.NotZero(t, buf.Len())
	assert.Contains(t, buf.String(), "Total Pipes")
}

func TestRendererOptions(t *testing.T) {
	r := NewRenderer(newTestLogger())

	headers := []string{"Stat", "Value"}
	rows := [][]string{{"max", "21.4"}}

	bordered := r.RenderToString(headers, rows)
	borderless := r.RenderToString(headers, rows, WithBorder(false))
	assert.NotEqual(t, bordered, borderless)
	assert.Less(t, len(borderless), len(bordered))

	aligned := r.RenderToString(headers, rows, WithAlignment(tablewriter.ALIGN_RIGHT))
	assert.Contains(t, aligned, "21.4")
	assert.Len(t, strings.Split(strings.TrimSpace(aligned), "\n"), len(strings.Split(strings.TrimSpace(bordered), "\n")))
}
