package geo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-enrich/internal/wdqs"
)

const entityPrefix = "http://www.wikidata.org/entity/"

var qidPattern = regexp.MustCompile(`wd:(Q\d+)`)

// fakeService serves canned coordinate and parent data by inspecting the query text
type fakeService struct {
	coords      map[string]string   // qid -> WKT point
	parents     map[string][]string // qid -> ordered parent qids
	coordCalls  int
	parentCalls int
	failWith    error
}

func (f *fakeService) requested(sparql string) []string {
	var out []string
	for _, m := range qidPattern.FindAllStringSubmatch(sparql, -1) {
		out = append(out, m[1])
	}
	return out
}

func (f *fakeService) Query(ctx context.Context, sparql string) (*wdqs.Result, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	res := &wdqs.Result{}
	qids := f.requested(sparql)
	if strings.Contains(sparql, "?parent") {
		f.parentCalls++
		for _, q := range qids {
			ps := f.parents[q]
			if len(ps) == 0 {
				res.Results.Bindings = append(res.Results.Bindings, wdqs.Binding{
					"place": {Type: "uri", Value: entityPrefix + q},
				})
				continue
			}
			for _, p := range ps {
				res.Results.Bindings = append(res.Results.Bindings, wdqs.Binding{
					"place":  {Type: "uri", Value: entityPrefix + q},
					"parent": {Type: "uri", Value: entityPrefix + p},
				})
			}
		}
		return res, nil
	}
	f.coordCalls++
	for _, q := range qids {
		b := wdqs.Binding{"place": {Type: "uri", Value: entityPrefix + q}}
		if wkt, ok := f.coords[q]; ok {
			b["coord"] = wdqs.Cell{Type: "literal", Value: wkt}
		}
		res.Results.Bindings = append(res.Results.Bindings, b)
	}
	return res, nil
}

func newTestResolver(svc *fakeService, maxHops int) (*Resolver, *CoordCache) {
	coords := NewCoordCache(nil)
	return NewResolver(svc, coords, NewParentCache(), 50, maxHops), coords
}

func TestResolverExact(t *testing.T) {
	svc := &fakeService{coords: map[string]string{"Q220": "Point(12.4924 41.8902)"}}
	r, _ := newTestResolver(svc, 3)

	out, err := r.Resolve(context.Background(), []string{"Q220"})
	require.NoError(t, err)
	res := out["Q220"]
	require.NotNil(t, res.Coord)
	assert.Equal(t, SourceExact, res.Source)
	assert.Equal(t, 0, res.Hops)
	assert.Equal(t, 41.8902, res.Coord.Lat)
	assert.Equal(t, 0, svc.parentCalls, "exact hit must not trigger parent queries")
}

func TestResolverViaParent(t *testing.T) {
	svc := &fakeService{
		coords:  map[string]string{"Q20": "Point(10.0 50.0)"},
		parents: map[string][]string{"Q10": {"Q20"}},
	}
	r, _ := newTestResolver(svc, 3)

	out, err := r.Resolve(context.Background(), []string{"Q10"})
	require.NoError(t, err)
	res := out["Q10"]
	require.NotNil(t, res.Coord)
	assert.Equal(t, SourceViaParent, res.Source)
	assert.Equal(t, 1, res.Hops)
	assert.Equal(t, 50.0, res.Coord.Lat)
}

func TestResolverFirstFoundParentWins(t *testing.T) {
	// both parents carry coordinates; the first in returned order must win
	svc := &fakeService{
		coords: map[string]string{
			"Q20": "Point(1.0 1.0)",
			"Q30": "Point(2.0 2.0)",
		},
		parents: map[string][]string{"Q10": {"Q20", "Q30"}},
	}
	r, _ := newTestResolver(svc, 3)

	out, err := r.Resolve(context.Background(), []string{"Q10"})
	require.NoError(t, err)
	res := out["Q10"]
	require.NotNil(t, res.Coord)
	assert.Equal(t, 1.0, res.Coord.Lat)
	assert.Equal(t, 1.0, res.Coord.Lon)
}

func TestResolverMissing(t *testing.T) {
	t.Run("no parents at all", func(t *testing.T) {
		svc := &fakeService{}
		r, _ := newTestResolver(svc, 3)

		out, err := r.Resolve(context.Background(), []string{"Q10"})
		require.NoError(t, err)
		res := out["Q10"]
		assert.Nil(t, res.Coord)
		assert.Equal(t, SourceMissing, res.Source)
	})

	t.Run("coordinate beyond hop budget", func(t *testing.T) {
		svc := &fakeService{
			coords: map[string]string{"Q50": "Point(3.0 3.0)"},
			parents: map[string][]string{
				"Q10": {"Q20"},
				"Q20": {"Q30"},
				"Q30": {"Q40"},
				"Q40": {"Q50"},
			},
		}
		r, _ := newTestResolver(svc, 3)

		out, err := r.Resolve(context.Background(), []string{"Q10"})
		require.NoError(t, err)
		for _, res := range out {
			assert.LessOrEqual(t, res.Hops, 3, "hops_used must never exceed the budget")
		}
		assert.Equal(t, SourceMissing, out["Q10"].Source)
	})

	t.Run("cycle terminates", func(t *testing.T) {
		svc := &fakeService{
			parents: map[string][]string{
				"Q10": {"Q20"},
				"Q20": {"Q10"},
			},
		}
		r, _ := newTestResolver(svc, 5)

		out, err := r.Resolve(context.Background(), []string{"Q10"})
		require.NoError(t, err)
		assert.Equal(t, SourceMissing, out["Q10"].Source)
	})
}

func TestResolverEdgeCases(t *testing.T) {
	t.Run("empty input issues no queries", func(t *testing.T) {
		svc := &fakeService{}
		r, _ := newTestResolver(svc, 3)

		out, err := r.Resolve(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Equal(t, 0, svc.coordCalls)
		assert.Equal(t, 0, svc.parentCalls)
	})

	t.Run("zero hop budget short-circuits to missing", func(t *testing.T) {
		svc := &fakeService{parents: map[string][]string{"Q10": {"Q20"}}}
		r, _ := newTestResolver(svc, 0)

		out, err := r.Resolve(context.Background(), []string{"Q10"})
		require.NoError(t, err)
		assert.Equal(t, SourceMissing, out["Q10"].Source)
		assert.Equal(t, 0, svc.parentCalls, "hop budget 0 must not issue parent queries")
	})

	t.Run("invalid qids are never queried", func(t *testing.T) {
		svc := &fakeService{}
		r, _ := newTestResolver(svc, 3)

		out, err := r.Resolve(context.Background(), []string{"bogus"})
		require.NoError(t, err)
		assert.Equal(t, SourceMissing, out["bogus"].Source)
		assert.Equal(t, 0, svc.coordCalls)
	})

	t.Run("known absence is not requeried", func(t *testing.T) {
		svc := &fakeService{
			coords:  map[string]string{"Q20": "Point(10.0 50.0)"},
			parents: map[string][]string{"Q10": {"Q20"}},
		}
		r, _ := newTestResolver(svc, 3)

		_, err := r.Resolve(context.Background(), []string{"Q10"})
		require.NoError(t, err)
		coordCalls, parentCalls := svc.coordCalls, svc.parentCalls

		out, err := r.Resolve(context.Background(), []string{"Q10"})
		require.NoError(t, err)
		assert.Equal(t, SourceViaParent, out["Q10"].Source)
		assert.Equal(t, coordCalls, svc.coordCalls, "warm caches must not hit the network")
		assert.Equal(t, parentCalls, svc.parentCalls)
	})

	t.Run("query failure aborts resolution", func(t *testing.T) {
		svc := &fakeService{failWith: errors.New("boom")}
		r, _ := newTestResolver(svc, 3)

		_, err := r.Resolve(context.Background(), []string{"Q10"})
		require.Error(t, err)
	})
}
