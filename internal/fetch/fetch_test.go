package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/patronage-dev/patronage/pkg/clients"
)

type testPage struct {
	Items []string `json:"items"`
	Next  string   `json:"next"`
}

func decodeTestPage(body []byte) ([]string, string, error) {
	var p testPage
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, "", err
	}
	return p.Items, p.Next, nil
}

func buildTestPage(cursor string) (string, http.Header) {
	url := "https://api.test/items"
	if cursor != "" {
		url += "?cursor=" + cursor
	}
	return url, http.Header{"Authorization": []string{"Bearer token"}}
}

func newTestPages(client clients.HTTPClientI, throttle time.Duration) *Pages[string] {
	return New(Options[string]{
		Client:   client,
		Build:    buildTestPage,
		Decode:   decodeTestPage,
		Throttle: throttle,
	})
}

func TestPagesScan(t *testing.T) {
	tests := []struct {
		name          string
		responses     []func(client *clients.MockHTTPClientI) *gomock.Call
		expectedItems []string
		expectedErr   string
	}{
		{
			name: "walks every page in response order",
			responses: []func(client *clients.MockHTTPClientI) *gomock.Call{
				func(client *clients.MockHTTPClientI) *gomock.Call {
					return client.EXPECT().
						Get(gomock.Any(), "https://api.test/items", gomock.Any()).
						Return(http.StatusOK, []byte(`{"items":["a","b"],"next":"p2"}`), nil)
				},
				func(client *clients.MockHTTPClientI) *gomock.Call {
					return client.EXPECT().
						Get(gomock.Any(), "https://api.test/items?cursor=p2", gomock.Any()).
						Return(http.StatusOK, []byte(`{"items":["c"],"next":"p3"}`), nil)
				},
				func(client *clients.MockHTTPClientI) *gomock.Call {
					return client.EXPECT().
						Get(gomock.Any(), "https://api.test/items?cursor=p3", gomock.Any()).
						Return(http.StatusOK, []byte(`{"items":["d"],"next":""}`), nil)
				},
			},
			expectedItems: []string{"a", "b", "c", "d"},
		},
		{
			name: "terminates on an empty first page",
			responses: []func(client *clients.MockHTTPClientI) *gomock.Call{
				func(client *clients.MockHTTPClientI) *gomock.Call {
					return client.EXPECT().
						Get(gomock.Any(), "https://api.test/items", gomock.Any()).
						Return(http.StatusOK, []byte(`{"items":[],"next":""}`), nil)
				},
			},
			expectedItems: nil,
		},
		{
			name: "skips an empty middle page",
			responses: []func(client *clients.MockHTTPClientI) *gomock.Call{
				func(client *clients.MockHTTPClientI) *gomock.Call {
					return client.EXPECT().
						Get(gomock.Any(), "https://api.test/items", gomock.Any()).
						Return(http.StatusOK, []byte(`{"items":[],"next":"p2"}`), nil)
				},
				func(client *clients.MockHTTPClientI) *gomock.Call {
					return client.EXPECT().
						Get(gomock.Any(), "https://api.test/items?cursor=p2", gomock.Any()).
						Return(http.StatusOK, []byte(`{"items":["a"],"next":""}`), nil)
				},
			},
			expectedItems: []string{"a"},
		},
		{
			name: "surfaces a transport error with the page URL",
			responses: []func(client *clients.MockHTTPClientI) *gomock.Call{
				func(client *clients.MockHTTPClientI) *gomock.Call {
					return client.EXPECT().
						Get(gomock.Any(), "https://api.test/items", gomock.Any()).
						Return(0, nil, errors.New("connection reset"))
				},
			},
			expectedErr: "fetch https://api.test/items: connection reset",
		},
		{
			name: "surfaces a decode error with the page URL",
			responses: []func(client *clients.MockHTTPClientI) *gomock.Call{
				func(client *clients.MockHTTPClientI) *gomock.Call {
					return client.EXPECT().
						Get(gomock.Any(), "https://api.test/items", gomock.Any()).
						Return(http.StatusOK, []byte(`{not json`), nil)
				},
			},
			expectedErr: "decode https://api.test/items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			client := clients.NewMockHTTPClientI(ctrl)
			calls := make([]any, 0, len(tt.responses))
			for _, response := range tt.responses {
				calls = append(calls, response(client))
			}
			gomock.InOrder(calls...)

			items, err := newTestPages(client, 0).Collect(context.Background())

			if tt.expectedErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErr)
				assert.Nil(t, items)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedItems, items)
		})
	}
}

func TestPagesStatusError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := clients.NewMockHTTPClientI(ctrl)
	client.EXPECT().
		Get(gomock.Any(), "https://api.test/items", gomock.Any()).
		Return(http.StatusForbidden, []byte(`{"error":"bad token"}`), nil)

	pages := newTestPages(client, 0)
	assert.False(t, pages.Scan(context.Background()))

	var statusErr *StatusError
	require.ErrorAs(t, pages.Err(), &statusErr)
	assert.Equal(t, "https://api.test/items", statusErr.URL)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.EqualError(t, statusErr, "fetch https://api.test/items: unexpected status 403")

	// a failed sequence stays failed
	assert.False(t, pages.Scan(context.Background()))
}

func TestPagesThrottle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := clients.NewMockHTTPClientI(ctrl)
	client.EXPECT().
		Get(gomock.Any(), "https://api.test/items", gomock.Any()).
		Return(http.StatusOK, []byte(`{"items":["a"],"next":"p2"}`), nil)
	client.EXPECT().
		Get(gomock.Any(), "https://api.test/items?cursor=p2", gomock.Any()).
		Return(http.StatusOK, []byte(`{"items":["b"],"next":"p3"}`), nil)
	client.EXPECT().
		Get(gomock.Any(), "https://api.test/items?cursor=p3", gomock.Any()).
		Return(http.StatusOK, []byte(`{"items":["c"],"next":""}`), nil)

	throttle := 50 * time.Millisecond
	pages := newTestPages(client, throttle)

	start := time.Now()
	items, err := pages.Collect(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, items)
	// two delays: before page two and before page three, none before the first
	assert.GreaterOrEqual(t, elapsed, 2*throttle)
	assert.Less(t, elapsed, 10*throttle)
}

func TestPagesThrottleContextCanceled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := clients.NewMockHTTPClientI(ctrl)
	client.EXPECT().
		Get(gomock.Any(), "https://api.test/items", gomock.Any()).
		Return(http.StatusOK, []byte(`{"items":["a"],"next":"p2"}`), nil)

	pages := newTestPages(client, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, pages.Scan(ctx))
	assert.Equal(t, "a", pages.Item())

	cancel()
	assert.False(t, pages.Scan(ctx))
	assert.ErrorIs(t, pages.Err(), context.Canceled)
}
