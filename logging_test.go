package metaballs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLogger(&out, &errOut, "mb", false)

	l.Debugf("hidden %d", 1)
	assert.Empty(t, out.String())

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("shown %d", 2)
	l.Infof("info")
	assert.Contains(t, out.String(), "[mb] DEBUG: shown 2")
	assert.Contains(t, out.String(), "[mb] INFO: info")

	l.Warnf("careful")
	l.Errorf("broken: %v", "x")
	assert.Contains(t, errOut.String(), "[mb] WARN: careful")
	assert.Contains(t, errOut.String(), "[mb] ERROR: broken: x")
	assert.NotContains(t, out.String(), "WARN")
}

func TestDefaultLoggerNoPrefix(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger(&out, &out, "", true)
	l.Infof("plain")
	assert.Contains(t, out.String(), "INFO: plain")
	assert.NotContains(t, out.String(), "[")
}

func TestAppLogger(t *testing.T) {
	var nilApp *App
	assert.NotNil(t, nilApp.Logger())

	app := NewAppBuilder().Build()
	assert.IsType(t, nopLogger{}, app.Logger())

	app = NewAppBuilder().UseModule(LoggingModule{Prefix: "test"}).Build()
	assert.IsType(t, &DefaultLogger{}, app.Logger())
}
