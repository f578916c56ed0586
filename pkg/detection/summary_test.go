package detection

import "testing"

func dets(classes ...string) Batch {
	var out []Detection
	for i, c := range classes {
		out = append(out, Detection{X1: float64(i), Y1: 0, X2: float64(i) + 10, Y2: 10, Confidence: 0.9, ClassName: c})
	}
	return NewBatch(out)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
		want  string
	}{
		{"empty", Batch{}, ""},
		{"single", dets("dog"), "1 dog"},
		{"plural", dets("cat", "cat"), "2 cats"},
		{"first seen order", dets("cat", "dog", "cat"), "2 cats, 1 dog"},
		{"not alphabetical", dets("zebra", "apple", "zebra", "apple", "apple"), "2 zebras, 3 apples"},
		{"no irregular plurals", dets("person", "person", "bus", "bus"), "2 persons, 2 buss"},
		{"multi word class", dets("traffic light", "traffic light", "stop sign"), "2 traffic lights, 1 stop sign"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Summarize(tc.batch); got != tc.want {
				t.Errorf("Summarize() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	b := dets("cat", "dog", "cat")

	if got, want := Describe(SubjectImage, b), "This image contains: 2 cats, 1 dog"; got != want {
		t.Errorf("image: got %q, want %q", got, want)
	}
	if got, want := Describe(SubjectFrame, b), "This frame contains: 2 cats, 1 dog"; got != want {
		t.Errorf("frame: got %q, want %q", got, want)
	}
	if got := Describe(SubjectImage, Batch{}); got != "" {
		t.Errorf("empty batch should give empty description, got %q", got)
	}
}

func TestClassCounts_MatchesInput(t *testing.T) {
	b := dets("a", "b", "a", "c", "b", "a")
	counts := b.ClassCounts()

	want := []ClassCount{{"a", 3}, {"b", 2}, {"c", 1}}
	if len(counts) != len(want) {
		t.Fatalf("got %d classes, want %d", len(counts), len(want))
	}
	total := 0
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("counts[%d] = %+v, want %+v", i, counts[i], want[i])
		}
		total += counts[i].Count
	}
	if total != b.Count() {
		t.Errorf("counts sum to %d, batch has %d", total, b.Count())
	}
}

func TestNewBatch_Copies(t *testing.T) {
	src := []Detection{{ClassName: "cat"}}
	b := NewBatch(src)
	src[0].ClassName = "dog"

	if b.Detections[0].ClassName != "cat" {
		t.Error("batch should not alias the source slice")
	}
	if !NewBatch(nil).Empty() {
		t.Error("nil input should give an empty batch")
	}
}

func TestDetection_Geometry(t *testing.T) {
	d := Detection{X1: 10, Y1: 20, X2: 40, Y2: 60, Confidence: 0.875, ClassName: "cup"}

	if d.Width() != 30 || d.Height() != 40 || d.Area() != 1200 {
		t.Errorf("geometry: w=%v h=%v area=%v", d.Width(), d.Height(), d.Area())
	}
	if got, want := d.String(), "(10.00, 20.00) - (40.00, 60.00) cup 0.88"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestClassHelpers(t *testing.T) {
	if len(COCOClasses) != 80 {
		t.Errorf("expected 80 COCO classes, got %d", len(COCOClasses))
	}
	if ClassName(15) != "cat" || ClassName(-1) != "" || ClassName(80) != "" {
		t.Error("ClassName lookup mismatch")
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		p    Progress
		want int
	}{
		{Progress{0, 0}, 0},
		{Progress{0, 200}, 0},
		{Progress{1, 3}, 33},
		{Progress{2, 3}, 67},
		{Progress{200, 200}, 100},
		{Progress{300, 200}, 100},
	}
	for _, tc := range tests {
		if got := tc.p.Percent(); got != tc.want {
			t.Errorf("Percent(%+v) = %d, want %d", tc.p, got, tc.want)
		}
	}
}
