package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectivityClassification(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := Connectivity(cause)

	assert.Equal(t, KindConnectivity, KindOf(err))
	assert.True(t, IsConnectivity(err))
	assert.False(t, IsValidation(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestApplicationClassification(t *testing.T) {
	err := Application(422, "metrics out of range")

	assert.Equal(t, KindApplication, KindOf(err))
	assert.False(t, IsConnectivity(err))
	assert.Equal(t, "HTTP 422: metrics out of range", err.Error())
	assert.Equal(t, "metrics out of range", Detail(err))
}

func TestApplicationWithoutDetailFallsBackToStatus(t *testing.T) {
	err := Application(500, "")
	assert.Equal(t, "HTTP 500: HTTP 500", err.Error())
	assert.Equal(t, "HTTP 500", Detail(err))
}

func TestValidationClassification(t *testing.T) {
	err := Validation("date must be YYYY-MM-DD")

	assert.Equal(t, KindValidation, KindOf(err))
	assert.True(t, IsValidation(err))
	assert.Equal(t, "date must be YYYY-MM-DD", err.Error())
}

func TestKindOfWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("replay failed: %w", Connectivity(stderrors.New("offline")))
	assert.Equal(t, KindConnectivity, KindOf(wrapped))
	assert.True(t, IsConnectivity(wrapped))
}

func TestKindOfUnclassifiedErrorIsApplication(t *testing.T) {
	// An unclassified error must not halt a drain pass, so it counts
	// as an application failure.
	assert.Equal(t, KindApplication, KindOf(stderrors.New("something broke")))
	assert.False(t, IsConnectivity(stderrors.New("something broke")))
}

func TestDetailFallsBackToErrorString(t *testing.T) {
	assert.Equal(t, "plain error", Detail(stderrors.New("plain error")))
	assert.Empty(t, Detail(nil))
}
