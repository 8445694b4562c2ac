package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })
	fn()
	return buf.String()
}

func TestInfoStruct_DumpsFields(t *testing.T) {
	type settings struct {
		PerPageDefault int
		DefaultColumns []string
	}

	got := capture(t, func() {
		InfoStruct("plugin settings", settings{PerPageDefault: 25, DefaultColumns: []string{"id", "filename"}})
	})

	assert.Contains(t, got, "plugin settings")
	assert.Contains(t, got, "PerPageDefault")
	assert.Contains(t, got, "25")
	assert.Contains(t, got, "filename")
}

func TestInfoWithContext_CarriesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")

	got := capture(t, func() { InfoWithContext(ctx, "listed %d rows", 3) })

	assert.Contains(t, got, "req_id=req-42")
	assert.Contains(t, got, "listed 3 rows")
}

func TestWarn_PlainMessage(t *testing.T) {
	got := capture(t, func() { Warn("session cache unavailable") })
	assert.Contains(t, got, "session cache unavailable")
}
