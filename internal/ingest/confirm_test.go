package ingest

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const confirmURL = "https://sns.us-east-1.amazonaws.com/?Action=ConfirmSubscription&Token=abc"

func newMockedConfirmer(t *testing.T, hostSuffix string) *HTTPConfirmer {
	t.Helper()
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewHTTPConfirmer(client, hostSuffix)
}

func TestHTTPConfirmer_FetchesURLOnce(t *testing.T) {
	c := newMockedConfirmer(t, ".amazonaws.com")
	httpmock.RegisterResponder("GET", `=~^https://sns\.us-east-1\.amazonaws\.com/`,
		httpmock.NewStringResponder(http.StatusOK, "<ConfirmSubscriptionResponse/>"))

	require.NoError(t, c.Confirm(context.Background(), confirmURL))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestHTTPConfirmer_Non2xxFails(t *testing.T) {
	c := newMockedConfirmer(t, "")
	httpmock.RegisterResponder("GET", `=~^https://sns\.`,
		httpmock.NewStringResponder(http.StatusForbidden, "denied"))

	err := c.Confirm(context.Background(), confirmURL)
	assert.ErrorContains(t, err, "unexpected status 403")
}

func TestHTTPConfirmer_RejectsForeignHosts(t *testing.T) {
	c := newMockedConfirmer(t, ".amazonaws.com")

	for _, u := range []string{
		"https://evil.example.com/confirm",
		"http://sns.us-east-1.amazonaws.com/confirm",
		"not a url",
	} {
		assert.Error(t, c.Confirm(context.Background(), u), u)
	}
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestHTTPConfirmer_TransportError(t *testing.T) {
	c := newMockedConfirmer(t, "")

	// No responder registered.
	assert.ErrorContains(t, c.Confirm(context.Background(), confirmURL), "confirm subscription")
}
