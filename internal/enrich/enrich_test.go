package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-enrich/internal/geo"
	"geo-enrich/internal/input"
	"geo-enrich/internal/snapshot"
	"geo-enrich/internal/wdqs"
)

const entityPrefix = "http://www.wikidata.org/entity/"

var qidPattern = regexp.MustCompile(`wd:(Q\d+)`)

// fakeService 按查询文本路由：含 ?prop 的是人物定位查询，含 ?parent 的是上级查询，其余是坐标查询。
type fakeService struct {
	locations map[string][]wdqs.Binding // person QID -> 定位行
	coords    map[string]string         // place QID -> WKT
	parents   map[string][]string       // place QID -> 上级列表
	failWith  error

	peopleCalls int
	coordCalls  int
	parentCalls int
}

func (f *fakeService) Query(_ context.Context, sparql string) (*wdqs.Result, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	qids := make([]string, 0, 4)
	for _, m := range qidPattern.FindAllStringSubmatch(sparql, -1) {
		qids = append(qids, m[1])
	}
	res := &wdqs.Result{}
	switch {
	case strings.Contains(sparql, "?prop"):
		f.peopleCalls++
		for _, q := range qids {
			res.Results.Bindings = append(res.Results.Bindings, f.locations[q]...)
		}
	case strings.Contains(sparql, "?parent"):
		f.parentCalls++
		for _, q := range qids {
			for _, p := range f.parents[q] {
				res.Results.Bindings = append(res.Results.Bindings, wdqs.Binding{
					"place":  {Type: "uri", Value: entityPrefix + q},
					"parent": {Type: "uri", Value: entityPrefix + p},
				})
			}
			if len(f.parents[q]) == 0 {
				res.Results.Bindings = append(res.Results.Bindings, wdqs.Binding{
					"place": {Type: "uri", Value: entityPrefix + q},
				})
			}
		}
	default:
		f.coordCalls++
		for _, q := range qids {
			b := wdqs.Binding{"place": {Type: "uri", Value: entityPrefix + q}}
			if wkt, ok := f.coords[q]; ok {
				b["coord"] = wdqs.Cell{Type: "literal", Value: wkt}
			}
			res.Results.Bindings = append(res.Results.Bindings, b)
		}
	}
	return res, nil
}

func locationBinding(person, prop, place, label, wkt string) wdqs.Binding {
	b := wdqs.Binding{
		"person":     {Type: "uri", Value: entityPrefix + person},
		"prop":       {Type: "literal", Value: prop},
		"place":      {Type: "uri", Value: entityPrefix + place},
		"placeLabel": {Type: "literal", Value: label},
	}
	if wkt != "" {
		b["coord"] = wdqs.Cell{Type: "literal", Value: wkt}
	}
	return b
}

func testAuthors() []input.Author {
	return []input.Author{
		{ID: "Q1", Content: "Aeschylus"},
		{ID: "Q2", Content: "Herodotus"},
		{ID: "Q3", Content: "Sappho"},
	}
}

func testService() *fakeService {
	return &fakeService{
		locations: map[string][]wdqs.Binding{
			"Q1": {locationBinding("Q1", "P19", "Q100", "Athens", "Point(23.7275 37.9838)")},
			"Q2": {locationBinding("Q2", "P937", "Q200", "Halicarnassus", "")},
			// Q3 无任何定位语句
		},
		coords: map[string]string{
			"Q300": "Point(27.4241 37.0382)",
		},
		parents: map[string][]string{
			"Q200": {"Q300"},
		},
	}
}

func newTestRunner(t *testing.T, svc *fakeService, dir string) *Runner {
	t.Helper()
	store, err := snapshot.NewFSStore(dir)
	require.NoError(t, err)
	coords := geo.NewCoordCache(nil)
	parents := geo.NewParentCache()
	resolver := geo.NewResolver(svc, coords, parents, 50, 3)
	return NewRunner(svc, store, coords, parents, resolver, 2)
}

func TestBuildBaseRecords(t *testing.T) {
	start := -525
	authors := []input.Author{
		{ID: "Q1", Content: "Aeschylus", Start: &start},
		{ID: "Q1", Content: "Aeschylus again"},
		{ID: "not-a-qid", Content: "Nobody"},
		{ID: "Q2"},
	}
	records, qids := BuildBaseRecords(authors)

	assert.Equal(t, []string{"Q1", "Q2"}, qids)
	require.Len(t, records, 2)
	assert.Equal(t, "Aeschylus", records["Q1"].Name)
	require.NotNil(t, records["Q1"].ActiveRange.Start)
	assert.Equal(t, -525, *records["Q1"].ActiveRange.Start)
	assert.Equal(t, "Q2", records["Q2"].Name, "name falls back to the qid")
	assert.Equal(t, geo.StatusMissingWikidataLocation, records["Q1"].Status)
	assert.NotNil(t, records["Q1"].Locations, "locations serialize as [] rather than null")
}

func TestRunTotalityAndStatuses(t *testing.T) {
	svc := testService()
	runner := newTestRunner(t, svc, t.TempDir())

	records, err := runner.Run(context.Background(), testAuthors())
	require.NoError(t, err)
	require.Len(t, records, 3)

	q1 := records["Q1"]
	assert.Equal(t, geo.StatusOk, q1.Status)
	require.Len(t, q1.Locations, 1)
	assert.Equal(t, geo.SourceExact, q1.Locations[0].CoordSource)
	assert.Equal(t, 37.9838, q1.Locations[0].Coord.Lat)

	q2 := records["Q2"]
	assert.Equal(t, geo.StatusNeedsReview, q2.Status)
	require.Len(t, q2.Locations, 1)
	assert.Equal(t, geo.SourceViaParent, q2.Locations[0].CoordSource)
	assert.Equal(t, 1, q2.Locations[0].ParentHops)

	q3 := records["Q3"]
	assert.Equal(t, geo.StatusMissingWikidataLocation, q3.Status)
	assert.True(t, q3.NeedsManualLookup)
	assert.Empty(t, q3.Locations)

	// 3 人按批大小 2 切成两批
	assert.Equal(t, 2, svc.peopleCalls)
}

func TestRunIdempotent(t *testing.T) {
	run := func() []byte {
		runner := newTestRunner(t, testService(), t.TempDir())
		records, err := runner.Run(context.Background(), testAuthors())
		require.NoError(t, err)
		b, err := json.MarshalIndent(records, "", "  ")
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, string(run()), string(run()))
}

func TestRunResumesFromSnapshots(t *testing.T) {
	dir := t.TempDir()
	first := testService()
	_, err := newTestRunner(t, first, dir).Run(context.Background(), testAuthors())
	require.NoError(t, err)
	require.Equal(t, 2, first.peopleCalls)

	second := testService()
	records, err := newTestRunner(t, second, dir).Run(context.Background(), testAuthors())
	require.NoError(t, err)

	assert.Equal(t, 0, second.peopleCalls, "all batches replay from snapshots")
	assert.Equal(t, geo.StatusOk, records["Q1"].Status)
	assert.Equal(t, geo.StatusNeedsReview, records["Q2"].Status)
}

func TestRunFailureNamesBatch(t *testing.T) {
	svc := testService()
	svc.failWith = errors.New("service unavailable")
	runner := newTestRunner(t, svc, t.TempDir())

	_, err := runner.Run(context.Background(), testAuthors())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 0")
	assert.ErrorContains(t, err, "service unavailable")
}

func TestSummary(t *testing.T) {
	records := map[string]*geo.PersonGeoRecord{
		"Q1": {Status: geo.StatusOk},
		"Q2": {Status: geo.StatusOk},
		"Q3": {Status: geo.StatusNeedsReview},
	}
	counts := Summary(records)
	assert.Equal(t, 2, counts[geo.StatusOk])
	assert.Equal(t, 1, counts[geo.StatusNeedsReview])
}
