package catalog

import (
	"testing"

	"imelt/internal/models"
)

func TestLoad_EmbeddedCatalog(t *testing.T) {
	records, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) < 2 {
		t.Fatalf("expected at least 2 records, got %d", len(records))
	}
	first := records[0]
	if first.HeatID != 93378 || first.Grade == "" || len(first.Chemistry) == 0 {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.Stages[0].Name != models.StageMelt {
		t.Fatalf("first stage = %q, want MELT", first.Stages[0].Name)
	}
	if first.TotalTons() <= 0 {
		t.Fatalf("expected positive charge weight")
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed":    "- heatId: [",
		"missing id":   "- grade: S355\n",
		"duplicate id": "- heatId: 1\n- heatId: 1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(in)); err == nil {
				t.Fatalf("expected error for %q", in)
			}
		})
	}
}
