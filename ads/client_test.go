// ABOUTME: Tests for the Google Ads REST client against a fake API server
// ABOUTME: Covers GAQL search, conversion upload, customer match jobs, and error classification
package ads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/errs"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), config.AdsConfig{
		DeveloperToken:  "dev-token",
		CustomerID:      "1234567890",
		LoginCustomerID: "999",
		APIVersion:      "v21",
		BaseURL:         srv.URL,
	},
		WithHTTPClient(srv.Client()),
		WithRetry(retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}),
	)
	require.NoError(t, err)
	return c
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestSearchPaginatesAndSendsHeaders(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v21/customers/1234567890/googleAds:search", r.URL.Path)
		assert.Equal(t, "dev-token", r.Header.Get("developer-token"))
		assert.Equal(t, "999", r.Header.Get("login-customer-id"))

		body := decodeBody(t, r)
		if body["pageToken"] == nil {
			_, _ = w.Write([]byte(`{"results":[{"userList":{"resourceName":"a"}}],"nextPageToken":"p2"}`))
			return
		}
		assert.Equal(t, "p2", body["pageToken"])
		_, _ = w.Write([]byte(`{"results":[{"userList":{"resourceName":"b"}}]}`))
	})

	rows, err := c.Search(context.Background(), "SELECT user_list.resource_name FROM user_list")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQuoteString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Enrolled Student", `'Enrolled Student'`},
		{"O'Brien", `'O\'Brien'`},
		{`back\slash`, `'back\\slash'`},
		{"", `''`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteString(tt.in))
	}
}

func TestFindConversionAction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		query := body["query"].(string)
		assert.Contains(t, query, "conversion_action.name = 'Enrolled Student'")
		assert.Contains(t, query, "conversion_action.status != 'REMOVED'")
		_, _ = w.Write([]byte(`{"results":[
			{"conversionAction":{"resourceName":"customers/1234567890/conversionActions/1","name":"Enrolled Student (old)"}},
			{"conversionAction":{"resourceName":"customers/1234567890/conversionActions/2","name":"Enrolled Student"}}
		]}`))
	})

	rn, ok, err := c.FindConversionAction(context.Background(), "Enrolled Student")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "customers/1234567890/conversionActions/2", rn)
}

func TestFindUserListMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	rn, ok, err := c.FindUserList(context.Background(), "Enrolled")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rn)
}

func sampleRecords() []models.ConversionRecord {
	when := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	return []models.ConversionRecord{
		{HashedEmail: "e1", HashedPhone: "p1", ConversionTime: when, OrderID: "d1", Value: 100, Currency: "KES"},
		{HashedPhone: "p2", ConversionTime: when, OrderID: "d2", Value: 200, Currency: "KES"},
		{
			HashedEmail: "e3", HashedFirstName: "f3", HashedLastName: "l3", PostalCode: "00100", CountryCode: "KE",
			ConversionTime: when, OrderID: "d3", Currency: "KES",
		},
	}
}

func TestUploadClickConversions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21/customers/1234567890:uploadClickConversions", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, true, body["partialFailure"])

		conversions := body["conversions"].([]any)
		require.Len(t, conversions, 3)
		first := conversions[0].(map[string]any)
		assert.Equal(t, "customers/1234567890/conversionActions/2", first["conversionAction"])
		assert.Equal(t, "2026-03-02 08:30:00+00:00", first["conversionDateTime"])
		assert.Equal(t, "d1", first["orderId"])
		assert.Equal(t, "KES", first["currencyCode"])
		assert.Len(t, first["userIdentifiers"], 2)

		third := conversions[2].(map[string]any)
		ids := third["userIdentifiers"].([]any)
		require.Len(t, ids, 2)
		addr := ids[1].(map[string]any)["addressInfo"].(map[string]any)
		assert.Equal(t, "00100", addr["postalCode"])

		_, _ = w.Write([]byte(`{"partialFailureError":{"code":3,"message":"partial","details":[{
			"@type":"type.googleapis.com/google.ads.googleads.v21.errors.GoogleAdsFailure",
			"errors":[
				{"errorCode":{"conversionUploadError":"UNPARSEABLE_GCLID"},"message":"bad","location":{"fieldPathElements":[{"fieldName":"conversions","index":1}]}},
				{"errorCode":{"conversionUploadError":"UNPARSEABLE_GCLID"},"message":"bad again","location":{"fieldPathElements":[{"fieldName":"conversions","index":1},{"fieldName":"order_id"}]}}
			]}]}}`))
	})

	pf, err := c.UploadClickConversions(context.Background(), "customers/1234567890/conversionActions/2", sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, pf.Indices)
	assert.Equal(t, 1, pf.Failed(3))
	assert.Len(t, pf.Messages, 2)
}

func TestCustomerMatchJobFlow(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		body := decodeBody(t, r)
		switch r.URL.Path {
		case "/v21/customers/1234567890/userLists:mutate":
			op := body["operations"].([]any)[0].(map[string]any)["create"].(map[string]any)
			assert.Equal(t, "Enrolled", op["name"])
			assert.Equal(t, float64(540), op["membershipLifeSpan"])
			assert.Equal(t, "CONTACT_INFO", op["crmBasedUserList"].(map[string]any)["uploadKeyType"])
			_, _ = w.Write([]byte(`{"results":[{"resourceName":"customers/1234567890/userLists/42"}]}`))
		case "/v21/customers/1234567890/offlineUserDataJobs:create":
			job := body["job"].(map[string]any)
			assert.Equal(t, "CUSTOMER_MATCH_USER_LIST", job["type"])
			assert.Equal(t, "customers/1234567890/userLists/42",
				job["customerMatchUserListMetadata"].(map[string]any)["userList"])
			_, _ = w.Write([]byte(`{"resourceName":"customers/1234567890/offlineUserDataJobs/77"}`))
		case "/v21/customers/1234567890/offlineUserDataJobs/77:addOperations":
			assert.Equal(t, true, body["enablePartialFailure"])
			assert.Len(t, body["operations"], 3)
			_, _ = w.Write([]byte(`{}`))
		case "/v21/customers/1234567890/offlineUserDataJobs/77:run":
			_, _ = w.Write([]byte(`{"name":"customers/1234567890/operations/abc"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	list, err := c.CreateUserList(ctx, "Enrolled", 9999)
	require.NoError(t, err)
	job, err := c.CreateCustomerMatchJob(ctx, list)
	require.NoError(t, err)
	pf, err := c.AddJobOperations(ctx, job, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 0, pf.Failed(3))
	op, err := c.RunJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "customers/1234567890/operations/abc", op)

	assert.Len(t, paths, 4)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  errs.Kind
		wantCalls int32
	}{
		{"unauthorized", http.StatusUnauthorized, errs.KindAuth, 1},
		{"forbidden", http.StatusForbidden, errs.KindAuth, 1},
		{"bad request", http.StatusBadRequest, errs.KindTransport, 1},
		{"rate limited", http.StatusTooManyRequests, errs.KindTransport, 3},
		{"server error", http.StatusInternalServerError, errs.KindTransport, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope"}}`, tt.status)
			})

			_, err := c.Search(context.Background(), "SELECT customer.id FROM customer")
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, errs.KindOf(err))
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
			if tt.wantKind == errs.KindAuth {
				assert.NotEmpty(t, errs.RemedyOf(err))
			}
		})
	}
}

func TestNewClientRequiresIDs(t *testing.T) {
	_, err := NewClient(context.Background(), config.AdsConfig{DeveloperToken: "x"})
	require.Error(t, err)
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))

	_, err = NewClient(context.Background(), config.AdsConfig{CustomerID: "1"})
	require.Error(t, err)
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))
}

func TestMethodName(t *testing.T) {
	assert.Equal(t, "search", methodName("customers/1/googleAds:search"))
	assert.Equal(t, "uploadClickConversions", methodName("customers/1:uploadClickConversions"))
	assert.Equal(t, "run", methodName("customers/1/offlineUserDataJobs/7:run"))
}
