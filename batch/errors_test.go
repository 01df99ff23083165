package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/executable"
	"github.com/pagebatch/pagebatch/install"
	"github.com/pagebatch/pagebatch/operation"
	"github.com/pagebatch/pagebatch/session"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	notFound := &executable.NotFoundError{Engine: api.EngineWebKit, Root: "/x"}

	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{notFound, KindExecutableNotFound},
		{fmt.Errorf("wrapped: %w", executable.ErrNotFound), KindExecutableNotFound},
		{&install.Error{Engine: api.EngineWebKit, Err: errors.New("x")}, KindInstallFailure},
		{&session.LaunchError{Engine: api.EngineWebKit, Err: notFound}, KindLaunch},
		{&session.NavigationError{URL: "u", Err: errors.New("x")}, KindNavigation},
		{&operation.Error{Kind: operation.KindClickElement, Reason: operation.ReasonTimeout}, KindOperation},
		{context.Canceled, KindCanceled},
		{errors.New("x"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}

func TestItemError(t *testing.T) {
	t.Parallel()

	cause := &session.NavigationError{URL: "http://x.test", Err: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	err := &ItemError{Index: 3, Engine: api.EngineFirefox, Kind: KindNavigation, Err: cause}

	assert.Equal(t, `item 3 (firefox): navigating to "http://x.test": net::ERR_NAME_NOT_RESOLVED`, err.Error())
	assert.ErrorIs(t, err, cause)
}
