package store

import "testing"

func TestGroupByBucketsEveryKeyedRow(t *testing.T) {
	rows := []Observation{
		{ID: "obs-1", IndicatorID: "ind-1"},
		{ID: "obs-2", IndicatorID: "ind-2"},
		{ID: "obs-3", IndicatorID: "ind-1"},
	}

	grouped := GroupBy(rows, func(o Observation) string { return o.IndicatorID })

	if len(grouped) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(grouped))
	}
	if len(grouped["ind-1"]) != 2 || len(grouped["ind-2"]) != 1 {
		t.Fatalf("unexpected buckets: %v", grouped)
	}

	total := 0
	for _, bucket := range grouped {
		total += len(bucket)
	}
	if total != len(rows) {
		t.Fatalf("expected every row placed exactly once, got %d of %d", total, len(rows))
	}
}

func TestGroupByDropsZeroKeys(t *testing.T) {
	rows := []Reply{
		{ID: "rep-1", ThreadID: "thr-1"},
		{ID: "rep-2", ThreadID: ""},
	}

	grouped := GroupBy(rows, func(r Reply) string { return r.ThreadID })

	if len(grouped) != 1 || len(grouped["thr-1"]) != 1 {
		t.Fatalf("expected orphan dropped, got %v", grouped)
	}
	if _, present := grouped[""]; present {
		t.Fatal("expected no bucket for the zero key")
	}
}
