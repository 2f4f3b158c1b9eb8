package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueQR(t *testing.T) {
	h := newHarness(t)
	h.expectEvent(openEvent(42, 7))

	qr, err := h.svc.IssueQR(context.Background(), 7, 42)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(qr.Token, "42."))
	assert.Equal(t, testNow, qr.IssuedAt)
	assert.Equal(t, testNow.Add(time.Minute), qr.ExpiresAt)
	assert.Equal(t, testNow.Add(30*time.Second), qr.RefreshAfter)

	u, err := url.Parse(qr.URL)
	require.NoError(t, err)
	assert.Equal(t, "checkin.example.com", u.Host)
	assert.Equal(t, "/checkin/42", u.Path)
	assert.Equal(t, qr.Token, u.Query().Get("qr"))

	v := h.signer.Verify("42", qr.Token, testNow.Add(59*time.Second))
	assert.True(t, v.Valid)
}
