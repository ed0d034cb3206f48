package errors_test

import (
	"context"
	"testing"

	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestIsTerminalRefresh(t *testing.T) {
	require.True(t, autherrors.IsTerminalRefresh(errors.Wrap(autherrors.ErrInvalidToken, "revoked")))
	require.True(t, autherrors.IsTerminalRefresh(autherrors.ErrRefreshExpired))
	require.False(t, autherrors.IsTerminalRefresh(context.DeadlineExceeded))
	require.False(t, autherrors.IsTerminalRefresh(autherrors.ErrServiceUnavailable))
}
