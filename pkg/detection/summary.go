package detection

import (
	"strconv"
	"strings"
)

// ClassCount is the number of detections of one class.
type ClassCount struct {
	ClassName string `json:"class_name"`
	Count     int    `json:"count"`
}

// Phrase renders the count as "<n> <class>", adding "s" when n > 1.
func (c ClassCount) Phrase() string {
	s := strconv.Itoa(c.Count) + " " + c.ClassName
	if c.Count > 1 {
		s += "s"
	}
	return s
}

// ClassCounts groups the batch by class name in first-seen order.
func (b Batch) ClassCounts() []ClassCount {
	if len(b.Detections) == 0 {
		return nil
	}

	index := make(map[string]int)
	var counts []ClassCount
	for _, d := range b.Detections {
		i, ok := index[d.ClassName]
		if !ok {
			i = len(counts)
			index[d.ClassName] = i
			counts = append(counts, ClassCount{ClassName: d.ClassName})
		}
		counts[i].Count++
	}
	return counts
}

// Summarize renders the class counts as a comma-joined phrase, e.g.
// "2 cats, 1 dog". An empty batch gives "".
func Summarize(b Batch) string {
	counts := b.ClassCounts()
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = c.Phrase()
	}
	return strings.Join(parts, ", ")
}

// Describe prefixes the summary with "This <subject> contains: ".
// An empty batch gives "" so no summary line is shown.
func Describe(subject Subject, b Batch) string {
	summary := Summarize(b)
	if summary == "" {
		return ""
	}
	if subject == "" {
		subject = SubjectImage
	}
	return "This " + string(subject) + " contains: " + summary
}
