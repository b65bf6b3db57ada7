package location

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

type rewriteRoundTripper struct{ base *url.URL }

func (r rewriteRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	c := new(http.Request)
	*c = *req
	u := *req.URL
	c.URL = &u
	c.URL.Scheme = r.base.Scheme
	c.URL.Host = r.base.Host
	c.Host = r.base.Host
	return http.DefaultTransport.RoundTrip(c)
}

func newTestClient(serverURL string) *Client {
	u, _ := url.Parse(serverURL)
	c := NewClient("", "test-agent", 5*time.Second)
	c.httpClient.Transport = rewriteRoundTripper{base: u}
	return c
}

const lyonResponse = `[{
	"place_id": 123,
	"osm_type": "relation",
	"osm_id": 120965,
	"lat": "45.7578137",
	"lon": "4.8320114",
	"display_name": "Lyon, Métropole de Lyon, Rhône, Auvergne-Rhône-Alpes, France métropolitaine, France",
	"boundingbox": ["45.7073666", "45.8082628", "4.7718134", "4.8983774"],
	"address": {"city": "Lyon", "county": "Métropole de Lyon", "state": "Auvergne-Rhône-Alpes", "postcode": "69000", "country": "France", "country_code": "fr"}
}]`

func TestClient_Search(t *testing.T) {
	var gotQuery url.Values
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(lyonResponse))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	tests := []struct {
		name        string
		withAddress bool
		wantDetails string
	}{
		{name: "plain search", withAddress: false, wantDetails: ""},
		{name: "with address", withAddress: true, wantDetails: "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				place *Place
				err   error
			)
			if tt.withAddress {
				place, err = c.SearchWithAddress(context.Background(), "Lyon, France")
			} else {
				place, err = c.Search(context.Background(), "Lyon, France")
			}
			if err != nil {
				t.Fatalf("search error: %v", err)
			}
			if gotQuery.Get("q") != "Lyon, France" || gotQuery.Get("format") != "json" || gotQuery.Get("limit") != "1" {
				t.Errorf("unexpected query: %v", gotQuery)
			}
			if got := gotQuery.Get("addressdetails"); got != tt.wantDetails {
				t.Errorf("addressdetails = %q, want %q", got, tt.wantDetails)
			}
			if gotAgent != "test-agent" {
				t.Errorf("User-Agent = %q", gotAgent)
			}
			if len(place.BoundingBox) != 4 || place.BoundingBox[0] != "45.7073666" {
				t.Errorf("unexpected bounding box: %v", place.BoundingBox)
			}
			if place.Address == nil || place.Address.Locality() != "Lyon" {
				t.Errorf("unexpected address: %+v", place.Address)
			}
		})
	}
}

func TestClient_Search_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		checkFn func(error) bool
	}{
		{name: "empty result", status: http.StatusOK, body: `[]`, checkFn: func(err error) bool { return errors.Is(err, ErrNoResults) }},
		{name: "server error", status: http.StatusServiceUnavailable, body: `oops`, checkFn: func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.StatusCode == http.StatusServiceUnavailable
		}},
		{name: "bad json", status: http.StatusOK, body: `{`, checkFn: func(err error) bool { return err != nil && !errors.Is(err, ErrNoResults) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Search(context.Background(), "Atlantis")
			if err == nil || !tt.checkFn(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestAddress_Locality(t *testing.T) {
	cases := []struct {
		name string
		addr Address
		want string
	}{
		{"city first", Address{City: "Lyon", Town: "X"}, "Lyon"},
		{"town", Address{Town: "Gordes"}, "Gordes"},
		{"village", Address{Village: "Roussillon"}, "Roussillon"},
		{"municipality", Address{Municipality: "Apt"}, "Apt"},
		{"none", Address{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.addr.Locality(); got != tc.want {
				t.Fatalf("Locality() = %q; want %q", got, tc.want)
			}
		})
	}
}
