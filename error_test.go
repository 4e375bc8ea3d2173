package redirect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  *ProviderError
		want string
	}{
		{"op-and-cause", &ProviderError{Op: "idp.ExchangeCode", Err: cause}, "idp.ExchangeCode: provider error: connection refused"},
		{"cause-only", &ProviderError{Err: cause}, "provider error: connection refused"},
		{"bare", &ProviderError{}, "provider error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tt.want, tt.err.Error())
		})
	}
	t.Run("unwrap", func(t *testing.T) {
		assert := assert.New(t)
		err := &ProviderError{Op: "idp.UserID", Err: cause}
		assert.True(errors.Is(err, cause))
	})
}
