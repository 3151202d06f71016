package momox

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseUrl:      "https://www.momox.de",
		RenderApiUrl: "https://render.example.com/api/v1/",
		RenderApiKey: "test-key",
	})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.http.GetClient())
	httpmock.ActivateNonDefault(client.render.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return client
}

func TestFetchOfferTier(t *testing.T) {
	client := setupClient(t)

	httpmock.RegisterResponder(
		"GET", "https://www.momox.de/api/v2/offer",
		httpmock.NewStringResponder(http.StatusOK, `{"price": "1,64", "title": "X"}`),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	res, err := client.Fetch(ctx, TierOffer, "9780141036144")
	require.NoError(t, err)
	require.Equal(t, TierOffer, res.Tier)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"price": "1,64", "title": "X"}`, string(res.Body))
}

func TestFetchPageTierPassesStatusThrough(t *testing.T) {
	client := setupClient(t)

	httpmock.RegisterResponder(
		"GET", "https://www.momox.de/suche/",
		httpmock.NewStringResponder(http.StatusForbidden, "blocked"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	res, err := client.Fetch(ctx, TierPage, "9780141036144")
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestFetchRenderedTierCallsProxy(t *testing.T) {
	client := setupClient(t)

	httpmock.RegisterResponder(
		"GET", "https://render.example.com/api/v1/",
		func(req *http.Request) (*http.Response, error) {
			query := req.URL.Query()
			require.Equal(t, "test-key", query.Get("api_key"))
			require.Equal(t, "https://www.momox.de/suche/?q=9780141036144", query.Get("url"))
			require.Equal(t, "true", query.Get("render_js"))
			return httpmock.NewStringResponse(http.StatusOK, "<html></html>"), nil
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	res, err := client.Fetch(ctx, TierRendered, "9780141036144")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestFetchRenderedTierUnconfigured(t *testing.T) {
	client, err := NewClient(ClientConfig{})
	require.NoError(t, err)
	require.False(t, client.RenderedTierAvailable())

	_, err = client.Fetch(context.Background(), TierRendered, "9780141036144")
	require.Error(t, err)
}

func TestTierRoundTrip(t *testing.T) {
	for _, tier := range Tiers() {
		parsed, ok := TierFromString(tier.String())
		require.True(t, ok)
		require.Equal(t, tier, parsed)
	}
	_, ok := TierFromString("bogus")
	require.False(t, ok)
}
