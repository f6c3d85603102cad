package tier2

import (
	"testing"

	"github.com/mrjoshuak/go-jpeg2000/v2/internal/canvas"
	"github.com/mrjoshuak/go-jpeg2000/v2/internal/tier1"
)

func encodeTestBlock(t *testing.T, style canvas.CodeBlockStyle) []tier1.Pass {
	t1 := tier1.NewT1(4, 4)
	t1.SetData([]int32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	})
	_, passes := t1.EncodeWithStyle(tier1.BandLL, style)
	if len(passes) == 0 {
		t.Fatal("expected passes")
	}
	return passes
}

func TestAssignLayers_TermAllGivesProgressiveLayers(t *testing.T) {
	passes := encodeTestBlock(t, canvas.StyleTermAll)
	thresholds := ChooseThresholds([][]tier1.Pass{passes}, 3)
	if len(thresholds) != 3 {
		t.Fatalf("expected 3 thresholds, got %d", len(thresholds))
	}

	plans := AssignLayers(passes, thresholds)
	total := 0
	for _, p := range plans {
		total += p.NewPasses
	}
	if total != len(passes) {
		t.Errorf("layers cover %d passes, want %d", total, len(passes))
	}
	for _, p := range plans {
		if p.NewPasses > 0 && len(p.SegmentLengths) != 1 {
			t.Errorf("expected exactly one segment per layer, got %v", p.SegmentLengths)
		}
	}
}

func TestAssignLayers_NonTerminatedCollapsesIntoOneLayer(t *testing.T) {
	passes := encodeTestBlock(t, 0)
	thresholds := ChooseThresholds([][]tier1.Pass{passes}, 3)
	plans := AssignLayers(passes, thresholds)

	nonEmpty := 0
	total := 0
	for _, p := range plans {
		if p.NewPasses > 0 {
			nonEmpty++
		}
		total += p.NewPasses
	}
	if nonEmpty != 1 {
		t.Errorf("expected exactly one non-empty layer without per-pass termination, got %d", nonEmpty)
	}
	if total != len(passes) {
		t.Errorf("layers cover %d passes, want %d", total, len(passes))
	}
}

func TestChooseThresholds_EmptyInput(t *testing.T) {
	got := ChooseThresholds(nil, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 zero thresholds, got %v", got)
	}
}
