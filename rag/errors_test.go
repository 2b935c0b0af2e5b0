package rag

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := Upstream("embedding request failed", 503, "unavailable", errors.New("boom"))

	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, ErrModel)

	wrapped := fmt.Errorf("failed to answer: %w", err)
	assert.ErrorIs(t, wrapped, ErrUpstream)
	assert.Equal(t, KindUpstream, KindOf(wrapped))
}

func TestError_Message(t *testing.T) {
	err := Upstream("search failed", 500, "", errors.New("eof"))
	assert.Equal(t, "UpstreamError: search failed (status 500): eof", err.Error())

	assert.Equal(t, "InvalidArgument: empty question", InvalidArgument("empty question").Error())
}

func TestError_PayloadTruncated(t *testing.T) {
	err := Upstream("x", 400, strings.Repeat("a", 5000), nil)
	assert.Len(t, err.Payload, maxPayload)
}

func TestKindOf_NonClassified(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, KindModel, KindOf(ModelFailure("empty output", nil)))
}
