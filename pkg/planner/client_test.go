package planner

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *AdsClient {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	t.Cleanup(func() { _ = ln.Close() })
	go func() { _ = fasthttp.Serve(ln, handler) }()

	client, err := NewAdsClient(
		ClientConfig{Endpoint: "http://ads.test", MaxKeywordsPerCall: 3},
		Credentials{DeveloperToken: "dev-token", LoginCustomerID: "111-222-3333", ClientCustomerID: "123-456-7890"},
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access"})),
		WithDial(func(string) (net.Conn, error) { return ln.Dial() }),
	)
	require.NoError(t, err)
	return client
}

func TestAdsClient_Fetch(t *testing.T) {
	var gotPath, gotAuth, gotDevToken, gotLogin string
	var gotBody historicalMetricsRequest

	client := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		gotPath = string(ctx.Path())
		gotAuth = string(ctx.Request.Header.Peek("Authorization"))
		gotDevToken = string(ctx.Request.Header.Peek("developer-token"))
		gotLogin = string(ctx.Request.Header.Peek("login-customer-id"))
		_ = json.Unmarshal(ctx.PostBody(), &gotBody)

		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"results":[{"text":"a","keywordMetrics":{"avgMonthlySearches":"10","competition":"LOW"}}]}`)
	})

	records, err := client.Fetch(context.Background(), []string{"a", "b"}, "2826", "1000")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].Keyword)

	assert.Equal(t, "/v17/customers/1234567890:generateKeywordHistoricalMetrics", gotPath)
	assert.Equal(t, "Bearer access", gotAuth)
	assert.Equal(t, "dev-token", gotDevToken)
	assert.Equal(t, "1112223333", gotLogin)
	assert.Equal(t, []string{"a", "b"}, gotBody.Keywords)
	assert.Equal(t, []string{"geoTargetConstants/2826"}, gotBody.GeoTargetConstants)
	assert.Equal(t, "languageConstants/1000", gotBody.Language)
	assert.Equal(t, "GOOGLE_SEARCH", gotBody.KeywordPlanNetwork)
}

func TestAdsClient_RejectsBadBatchSizeWithoutIO(t *testing.T) {
	called := false
	client := newTestClient(t, func(ctx *fasthttp.RequestCtx) { called = true })

	for _, kws := range [][]string{nil, {"a", "b", "c", "d"}} {
		_, err := client.Fetch(context.Background(), kws, "2826", "1000")
		pe, ok := AsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, CodeInvalidArgument, pe.Code)
	}
	assert.False(t, called)
}

func TestAdsClient_MapsErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusForbidden)
		ctx.SetBodyString(`{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`)
	})

	_, err := client.Fetch(context.Background(), []string{"a"}, "2826", "1000")
	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, CodePermissionDenied, pe.Code)
	assert.Equal(t, 403, pe.HTTPStatus)
	assert.False(t, IsRetryable(err))
}

func TestNewAdsClient_RequiresCustomerID(t *testing.T) {
	_, err := NewAdsClient(DefaultClientConfig(), Credentials{DeveloperToken: "x"})
	assert.Error(t, err)
}
