package exit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	base := errors.New("boom")

	assert.Equal(t, CodeOK, Code(nil))
	assert.Equal(t, CodeError, Code(base))
	assert.Equal(t, CodeMismatch, Code(Wrap(CodeMismatch, base)))
	assert.Equal(t, CodeMismatch, Code(fmt.Errorf("running: %w", Wrap(CodeMismatch, base))))

	assert.ErrorIs(t, Wrap(CodeMismatch, base), base)
	assert.Equal(t, "2: boom", Wrap(CodeMismatch, base).Error())
	assert.Equal(t, "1", Error{Code: 1}.Error())
}
