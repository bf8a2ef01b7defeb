package container

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escolar/core"
	testutil "github.com/trezcool/escolar/tests"
)

func TestClosers_Close(t *testing.T) {
	var order []int
	errFirst := errors.New("first")
	closers := new(Closers)
	closers.Add(func() error { order = append(order, 1); return nil })
	closers.Add(func() error { order = append(order, 2); return errFirst })
	closers.Add(func() error { order = append(order, 3); return errors.New("last") })

	assert.Error(t, closers.Close())
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.NoError(t, closers.Close(), "closers run once")
}

func Test_newStorage_memory(t *testing.T) {
	conf := core.NewTestConfig()
	logger := new(testutil.Logger)
	closers := new(Closers)

	storage, err := newStorage(true)(conf, DBLoggerParam{Logger: logger}, closers)
	require.NoError(t, err)
	assert.Nil(t, storage.DB)
	assert.NotNil(t, storage.Users)
	assert.NotNil(t, storage.School)
	assert.Equal(t, 1, logger.Count())
	assert.NoError(t, closers.Close())
}

func Test_newDashboardService_withoutBackends(t *testing.T) {
	conf := core.NewTestConfig()
	logger := new(testutil.Logger)
	storage, err := newStorage(false)(conf, DBLoggerParam{Logger: logger}, new(Closers))
	require.NoError(t, err)

	svc, err := newDashboardService(dashboardParams{
		Conf:    conf,
		Logger:  logger,
		Storage: storage,
		Closers: new(Closers),
	})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
