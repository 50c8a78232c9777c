package dbctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ctxKey struct{}

func TestDBPrefersTransaction(t *testing.T) {
	base, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), ctxKey{}, "run-1")
	dbc := From(ctx)
	require.Equal(t, "run-1", dbc.DB(base).Statement.Context.Value(ctxKey{}))

	tx := base.Session(&gorm.Session{NewDB: true})
	bound := dbc.WithTx(tx)
	require.Nil(t, dbc.Tx)
	require.Same(t, tx, bound.Tx)
	require.Equal(t, "run-1", bound.DB(base).Statement.Context.Value(ctxKey{}))
}

func TestFromNilContext(t *testing.T) {
	var ctx context.Context
	dbc := From(ctx)
	require.NotNil(t, dbc.Ctx)
	require.Nil(t, dbc.Tx)
}
