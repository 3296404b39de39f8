package mux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"video.asset.created","data":{"id":"a1","upload_id":"u1"}}`)
	secret := "whsec"
	now := time.Unix(1_700_000_000, 0)

	t.Run("valid", func(t *testing.T) {
		header := SignatureHeaderValue(body, secret, now)
		require.NoError(t, VerifySignature(body, header, secret, DefaultTolerance, now.Add(time.Minute)))
	})

	t.Run("missing header", func(t *testing.T) {
		require.ErrorIs(t, VerifySignature(body, "", secret, DefaultTolerance, now), ErrMissingSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := SignatureHeaderValue(body, "other", now)
		require.ErrorIs(t, VerifySignature(body, header, secret, DefaultTolerance, now), ErrInvalidSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		header := SignatureHeaderValue(body, secret, now)
		require.ErrorIs(t, VerifySignature(append(body, ' '), header, secret, DefaultTolerance, now), ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		header := SignatureHeaderValue(body, secret, now)
		require.ErrorIs(t, VerifySignature(body, header, secret, DefaultTolerance, now.Add(10*time.Minute)), ErrSignatureExpired)
	})

	t.Run("zero tolerance skips timestamp check", func(t *testing.T) {
		header := SignatureHeaderValue(body, secret, now)
		require.NoError(t, VerifySignature(body, header, secret, 0, now.Add(48*time.Hour)))
	})

	t.Run("malformed header", func(t *testing.T) {
		for _, h := range []string{"garbage", "t=abc,v1=00", "v1=00", "t=1700000000"} {
			assert.ErrorIs(t, VerifySignature(body, h, secret, 0, now), ErrInvalidSignature, h)
		}
	})

	t.Run("any of several v1 signatures", func(t *testing.T) {
		ts := "1700000000"
		header := "t=" + ts + ",v1=deadbeef,v1=" + Sign(body, secret, ts)
		require.NoError(t, VerifySignature(body, header, secret, DefaultTolerance, now))
	})
}
