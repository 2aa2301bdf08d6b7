package logfields

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHelpers(t *testing.T) {
	assert.Equal(t, "styles", Stage("styles").Value.String())
	assert.Equal(t, KeyPath, Path("a.scss").Key)
	assert.Equal(t, 3, int(Files(3).Value.Int64()))
	assert.InDelta(t, 1.5, Duration(1500*time.Microsecond).Value.Float64(), 0.0001)
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())
	assert.Equal(t, "", Error(nil).Value.String())
}
