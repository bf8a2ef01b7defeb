package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/user"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	return NewRollbarLogger(log.New(buf, "", 0), core.NewTestConfig())
}

func TestRollbarLogger_prepare(t *testing.T) {
	l := newTestLogger(new(bytes.Buffer))
	err := errors.New("boom")
	usr := user.User{ID: "1", Username: "ann"}
	extra := map[string]interface{}{"key": "val"}

	tests := []struct {
		name string
		args []interface{}
		want []interface{}
	}{
		{name: "no args", want: []interface{}{"msg"}},
		{name: "user is dropped", args: []interface{}{err, usr}, want: []interface{}{"msg", err}},
		{name: "user pointer is dropped", args: []interface{}{&usr, extra}, want: []interface{}{"msg", extra}},
		{name: "only first user is set", args: []interface{}{usr, usr}, want: []interface{}{"msg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.prepare("msg", tt.args))
		})
	}
}

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	l := newTestLogger(buf)

	l.Warn("cache down", errors.New("dial tcp: refused"), map[string]interface{}{"key": "val"})
	out := buf.String()
	assert.Contains(t, out, "WARN: cache down")
	assert.Contains(t, out, "dial tcp: refused")
	assert.NotContains(t, out, "key")
}
