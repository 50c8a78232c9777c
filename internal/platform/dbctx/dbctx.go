package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the caller's context and, inside a unit of work, the open
// transaction. Repositories resolve their handle through DB.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func From(ctx context.Context) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return Context{Ctx: ctx}
}

// WithTx returns a copy bound to tx.
func (c Context) WithTx(tx *gorm.DB) Context {
	c.Tx = tx
	return c
}

// DB returns the transaction when one is open, else fallback, scoped to Ctx.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	handle := c.Tx
	if handle == nil {
		handle = fallback
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return handle.WithContext(ctx)
}
