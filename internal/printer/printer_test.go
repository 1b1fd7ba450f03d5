package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainPrinter(t *testing.T) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var out, errOut bytes.Buffer
	return New(&out, &errOut), &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		p, _, errOut := plainPrinter(t)
		err := p.Error("Test Error", "This is a test error", nil, nil)
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, errOut.String(), "This is a test error")
	})

	t.Run("single suggestion printed verbatim", func(t *testing.T) {
		p, _, errOut := plainPrinter(t)
		err := p.Error("Test Error", "Explanation", nil, []string{"Try this fix"})
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, errOut.String(), "\nTry this fix\n")
		assert.NotContains(t, errOut.String(), "Either:")
	})

	t.Run("multiple suggestions numbered", func(t *testing.T) {
		p, _, errOut := plainPrinter(t)
		p.Error("Test Error", "Explanation", nil, []string{"First option", "Second option"})
		assert.Contains(t, errOut.String(), "Either:\n  1. First option\n  2. Second option\n")
	})

	t.Run("context keys sorted", func(t *testing.T) {
		p, out, errOut := plainPrinter(t)
		p.Error("Test Error", "", map[string]string{"Port file": "/tmp/p.json", "Address": "127.0.0.1:9"}, nil)
		assert.Contains(t, errOut.String(), "  Address: 127.0.0.1:9\n  Port file: /tmp/p.json\n")
		assert.Empty(t, out.String())
	})
}

func TestMessages(t *testing.T) {
	p, out, errOut := plainPrinter(t)

	p.Success("sent %s\n", "m1")
	p.Warning("slow\n")
	p.Step("connecting\n")

	assert.Equal(t, "✓ sent m1\n→ connecting\n", out.String())
	assert.Equal(t, "⚠️  slow\n", errOut.String())
}

func TestFields(t *testing.T) {
	p, out, _ := plainPrinter(t)

	p.Fields(map[string]string{"address": "127.0.0.1:4242", "port file": "/tmp/p.json"})

	assert.Equal(t, "  address:   127.0.0.1:4242\n  port file: /tmp/p.json\n", out.String())
}
