package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_WritesToConfiguredWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)

	p.Println("plain line")
	p.Printf("%s %d\n", "formatted", 7)

	assert.Contains(t, buf.String(), "plain line")
	assert.Contains(t, buf.String(), "formatted 7")
}

func TestPrinter_StyledLinesKeepText(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)

	p.Success("step %s completed", "tag-build")
	p.Failure("step %s failed", "publish")
	p.Warning("attestation required")
	p.Muted("recorded at 10:02")
	p.Heading("release-1a2b3c4d")

	out := buf.String()
	assert.Contains(t, out, "step tag-build completed")
	assert.Contains(t, out, "step publish failed")
	assert.Contains(t, out, "attestation required")
	assert.Contains(t, out, "recorded at 10:02")
	assert.Contains(t, out, "release-1a2b3c4d")
}

func TestPrinter_BlockAppendsNewline(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)

	p.Block("line one\nline two")

	assert.Equal(t, "line one\nline two\n", buf.String())
}
