package csrf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elskow/backoffice/internal/session"
)

func TestGuard_TokenIsStablePerSession(t *testing.T) {
	g := NewGuard()
	s := &session.Session{ID: "a"}

	first, err := g.Token(s)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := g.Token(s)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := g.Token(&session.Session{ID: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestGuard_Validate(t *testing.T) {
	g := NewGuard()
	withToken := &session.Session{ID: "a"}
	token, err := g.Token(withToken)
	require.NoError(t, err)

	tests := []struct {
		name      string
		session   *session.Session
		submitted string
		wantErr   bool
	}{
		{name: "match", session: withToken, submitted: token},
		{name: "missing field", session: withToken, submitted: "", wantErr: true},
		{name: "mismatch", session: withToken, submitted: token[:63] + "x", wantErr: true},
		{name: "prefix", session: withToken, submitted: token[:10], wantErr: true},
		{name: "no session token", session: &session.Session{ID: "b"}, submitted: token, wantErr: true},
		{name: "no session", session: nil, submitted: token, wantErr: true},
		{name: "both empty", session: &session.Session{ID: "c"}, submitted: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Validate(tt.session, tt.submitted)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			assert.NoError(t, err)
		})
	}
}
