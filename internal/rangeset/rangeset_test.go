package rangeset

import "testing"

func TestMissingClipsOutOfBounds(t *testing.T) {
	query := Range{Start: 10, End: 20}
	ranges := []Range{{Start: 0, End: 12}, {Start: 25, End: 30}}
	got := Missing(query, ranges)
	want := []Range{{Start: 12, End: 20}}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("Missing() = %v, want %v", got, want)
	}
}

func TestIsCovered(t *testing.T) {
	cases := []struct {
		name   string
		query  Range
		ranges []Range
		want   bool
	}{
		{"fully covered", Range{0, 10}, []Range{{0, 10}}, true},
		{"covered by pieces", Range{0, 10}, []Range{{0, 5}, {5, 10}}, true},
		{"gap in middle", Range{0, 10}, []Range{{0, 4}, {6, 10}}, false},
		{"empty query always covered", Range{5, 5}, nil, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsCovered(c.query, c.ranges); got != c.want {
				t.Fatalf("IsCovered() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestMissingUnionIntersectIsQuery(t *testing.T) {
	// missing(r, ranges) ∪ intersect(ranges, [r]) = [r]  (disjoint union)
	r := Range{Start: 0, End: 100}
	ranges := []Range{{Start: 10, End: 20}, {Start: 50, End: 60}}

	missing := Missing(r, ranges)
	inter := Intersect(ranges, []Range{r})

	var total int64
	for _, m := range missing {
		total += m.Len()
	}
	for _, i := range inter {
		total += i.Len()
	}
	if total != r.Len() {
		t.Fatalf("missing+intersect total = %d, want %d", total, r.Len())
	}
}

func TestIsOverlapping(t *testing.T) {
	if !IsOverlapping(Range{0, 10}, Range{5, 15}) {
		t.Fatal("expected overlap")
	}
	if IsOverlapping(Range{0, 10}, Range{10, 20}) {
		t.Fatal("half-open ranges touching at boundary should not overlap")
	}
}

func TestNormalizeMergesTouching(t *testing.T) {
	got := Normalize([]Range{{0, 5}, {5, 10}, {20, 30}})
	want := []Range{{0, 10}, {20, 30}}
	if len(got) != len(want) {
		t.Fatalf("Normalize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Normalize()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
