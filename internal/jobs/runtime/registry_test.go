package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/domain/animation"
)

type stubHandler struct{ kind animation.JobKind }

func (h stubHandler) Kind() animation.JobKind { return h.kind }
func (h stubHandler) Run(*Context) error      { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubHandler{kind: animation.JobKindRender}, stubHandler{kind: animation.JobKindExport}))
	assert.Equal(t, []animation.JobKind{animation.JobKindExport, animation.JobKindRender}, r.Kinds())

	h, ok := r.Get(animation.JobKindRender)
	require.True(t, ok)
	assert.Equal(t, animation.JobKindRender, h.Kind())
	_, ok = r.Get("thumbnail")
	assert.False(t, ok)

	assert.ErrorIs(t, r.Register(stubHandler{kind: animation.JobKindRender}), ErrDuplicateHandler)
	assert.Error(t, r.Register(stubHandler{kind: animation.JobKindNone}))
	assert.Error(t, r.Register(nil))
}
