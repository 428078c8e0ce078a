package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBrowserClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, true},
		{"wrapped canceled", fmt.Errorf("click: %w", context.Canceled), true},
		{"websocket", errors.New("websocket: close 1006 (abnormal closure)"), true},
		{"target", errors.New("Target closed"), true},
		{"element wait", fmt.Errorf("%w after 30s: li.lupa-li a", ErrTimeout), false},
		{"not found", fmt.Errorf("%w: #botao-downloads", ErrNotFound), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBrowserClosed(tt.err))
		})
	}
}

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "#modal-downloads", ID("modal-downloads").String())
	assert.Equal(t, "xpath://li", XPath("//li").String())
	assert.Equal(t, "div.lv-container", CSS("div.lv-container").String())
}
