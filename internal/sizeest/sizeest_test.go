package sizeest

import "testing"

func TestEstimateIdempotentUnderDeepClone(t *testing.T) {
	v := map[string]any{
		"a": []any{int64(1), int64(2), "hello"},
		"b": "world",
	}
	clone := map[string]any{
		"a": []any{int64(1), int64(2), "hello"},
		"b": "world",
	}
	got1, err := Estimate(v)
	if err != nil {
		t.Fatal(err)
	}
	got2, err := Estimate(clone)
	if err != nil {
		t.Fatal(err)
	}
	if got1 != got2 {
		t.Fatalf("Estimate not stable across equal-but-distinct values: %d != %d", got1, got2)
	}
}

func TestEstimateFunctionFails(t *testing.T) {
	if _, err := Estimate(func() {}); err == nil {
		t.Fatal("expected error estimating function value")
	}
}

func TestCacheReusesFirstEstimate(t *testing.T) {
	c := NewCache()
	first, err := c.EstimateForTopic("/a", "short")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.EstimateForTopic("/a", "a much longer string than before")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("expected cached estimate to be reused: %d != %d", first, second)
	}
}
