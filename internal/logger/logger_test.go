package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupWritesToConfiguredWriter(t *testing.T) {
	t.Cleanup(Discard)

	var buf bytes.Buffer
	Setup(Config{Writer: &buf})

	L().Info("fit.done", "model", "EM")
	L().Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "fit.done")
	assert.Contains(t, out, "model=EM")
	assert.NotContains(t, out, "hidden")
}

func TestSetupJSONDebug(t *testing.T) {
	t.Cleanup(Discard)

	var buf bytes.Buffer
	Setup(Config{Writer: &buf, JSON: true, Debug: true})
	L().Debug("horizon", "length", 58)

	assert.Contains(t, buf.String(), `"msg":"horizon"`)
	assert.Contains(t, buf.String(), `"length":58`)
}
