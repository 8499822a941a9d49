package sources

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/hyperjump/lmsearch/internal/fetch"
	"github.com/hyperjump/lmsearch/internal/keyword"
	"github.com/hyperjump/lmsearch/internal/models"
)

type staticSource struct {
	name  string
	recs  []models.Record
	err   error
	delay time.Duration
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Fetch(ctx context.Context, query string) ([]models.Record, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.recs, s.err
}

func TestFanout_PreservesSourceOrder(t *testing.T) {
	srcs := []Source{
		&staticSource{name: "slow", recs: []models.Record{{"n": "a1"}, {"n": "a2"}}, delay: 20 * time.Millisecond},
		&staticSource{name: "fast", recs: []models.Record{{"n": "b1"}}},
		&staticSource{name: "empty"},
	}
	results, err := Fanout(context.Background(), srcs, "q")
	if err != nil {
		t.Fatalf("Fanout: %v", err)
	}
	flat := Flatten(results)
	var got []string
	for _, r := range flat {
		got = append(got, r.String("n"))
	}
	if strings.Join(got, ",") != "a1,a2,b1" {
		t.Errorf("order = %v, want a1,a2,b1", got)
	}
}

func TestFanout_ErrorRejectsAll(t *testing.T) {
	srcs := []Source{
		&staticSource{name: "ok", recs: []models.Record{{"n": "a"}}},
		&staticSource{name: "bad", err: errors.New("timeout")},
	}
	results, err := Fanout(context.Background(), srcs, "q")
	if err == nil || err.Error() != "timeout" {
		t.Fatalf("err = %v, want timeout", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

func TestHTTPSource_Fetch(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"NAMN":"Storgatan 1"},{"NAMN":"Storgatan 2","TYPE":"Gata"},null]`))
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPSourceConfig{
		Name:           "adress",
		URL:            srv.URL + "/adress?q={query}&kommun={municipalities}",
		TypeAttr:       "TYPE",
		TypeLabel:      "Adress",
		Municipalities: []string{"Kalmar", "Växjö"},
	}, fetch.NewClient(time.Second))

	recs, err := src.Fetch(context.Background(), "storg 1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].String("TYPE") != "Adress" {
		t.Errorf("type label not applied: %v", recs[0])
	}
	if recs[1].String("TYPE") != "Gata" {
		t.Errorf("existing type overwritten: %v", recs[1])
	}
	if p := gotPath.Load().(string); p != "/adress?q=storg+1&kommun=Kalmar%2CV%C3%A4xj%C3%B6" {
		t.Errorf("request uri = %q", p)
	}
}

func TestHTTPSource_AppendsQueryWithoutPlaceholder(t *testing.T) {
	src := NewHTTPSource(HTTPSourceConfig{Name: "ort", URL: "http://example.test/ort?q="}, nil)
	if got := src.URL("Kal mar"); got != "http://example.test/ort?q=Kal+mar" {
		t.Errorf("URL = %q", got)
	}
}

func TestHTTPSource_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPSourceConfig{Name: "x", URL: srv.URL + "/?q={query}"}, fetch.NewClient(time.Second))
	_, err := src.Fetch(context.Background(), "abcd")
	var se *fetch.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want StatusError 502", err)
	}
	if err.Error() != "server returned 502" {
		t.Errorf("message = %q", err.Error())
	}
}

type fakeFeatureIndex struct {
	keyword.FeatureIndex
	hits []*keyword.Hit
}

func (f *fakeFeatureIndex) Search(ctx context.Context, query string, limit int) ([]*keyword.Hit, error) {
	return f.hits, nil
}

func TestKeywordSource_Fetch(t *testing.T) {
	idx := &fakeFeatureIndex{hits: []*keyword.Hit{
		{Layer: "parker", FeatureID: "7", Name: "Stadsparken", LayerTitle: "Parker"},
	}}
	attrs := Attributes{Query: "NAMN", Type: "TYPE", ID: "id", LayerName: "layer"}
	recs, err := NewKeywordSource(idx, attrs, 10).Fetch(context.Background(), "stad")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d", len(recs))
	}
	r := recs[0]
	if r.String("NAMN") != "Stadsparken" || r.String("layer") != "parker" || r.String("id") != "7" || r.String("TYPE") != "Parker" {
		t.Errorf("record = %v", r)
	}
}

func TestKeywordSource_TypeSharedWithLayerName(t *testing.T) {
	idx := &fakeFeatureIndex{hits: []*keyword.Hit{{Layer: "parker", FeatureID: "7", Name: "Stadsparken", LayerTitle: "Parker"}}}
	attrs := Attributes{Query: "NAMN", Type: "layer", ID: "id", LayerName: "layer"}
	recs, err := NewKeywordSource(idx, attrs, 10).Fetch(context.Background(), "stad")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if recs[0].String("layer") != "parker" {
		t.Errorf("local hits must group by layer name, got %v", recs[0])
	}
}

func TestElasticSource_Fetch(t *testing.T) {
	var body atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(`{"version":{"number":"7.16.0","build_flavor":"default"},"tagline":"You Know, for Search"}`))
			return
		}
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		body.Store(buf.String())
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_index":"places","_source":{"NAMN":"Kalmar slott"}},
			{"_index":"places","_source":{"NAMN":"Kalmar domkyrka","TYPE":"Kyrka"}}
		]}}`))
	}))
	defer srv.Close()

	cli, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	src := NewElasticSource(cli, ElasticSourceConfig{Index: "places", Fields: []string{"NAMN"}, TypeAttr: "TYPE"})
	recs, err := src.Fetch(context.Background(), "kalm")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d", len(recs))
	}
	if recs[0].String("TYPE") != "places" || recs[1].String("TYPE") != "Kyrka" {
		t.Errorf("types = %q, %q", recs[0].String("TYPE"), recs[1].String("TYPE"))
	}
	if b, _ := body.Load().(string); !strings.Contains(b, `"bool_prefix"`) || !strings.Contains(b, `"kalm"`) {
		t.Errorf("query body = %s", b)
	}
}
