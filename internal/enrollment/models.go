package enrollment

import "slices"

// Enrollment is the progress record of one user in one course.
// CompletedLessons is kept sorted and free of duplicates.
type Enrollment struct {
	ID               string   `json:"id"`
	UserID           string   `json:"userId"`
	CourseID         string   `json:"courseId"`
	CompletedLessons []string `json:"completedLessons"`
	StudentProgress  float64  `json:"studentProgress"`
	CreatedAt        int64    `json:"createdAt"`
	UpdatedAt        int64    `json:"updatedAt"`
}

// Status is what a student sees for a course. It has zero values when the
// student is not enrolled.
type Status struct {
	CompletedLessons []string `json:"completedLessons"`
	StudentProgress  float64  `json:"studentProgress"`
}

// ToggleResult is returned after a lesson completion change. CourseProgress
// is the course average projected after this write.
type ToggleResult struct {
	StudentProgress  float64  `json:"studentProgress"`
	CompletedLessons []string `json:"completedLessons"`
	CourseProgress   float64  `json:"courseProgress"`
}

// Listing is an enrollment joined with the names an admin report shows.
type Listing struct {
	Enrollment
	StudentName    string `json:"studentName"`
	StudentEmail   string `json:"studentEmail"`
	CourseTitle    string `json:"courseTitle"`
	CourseCategory string `json:"courseCategory"`
}

// StudentProgress is the completion percentage for completed lessons out of
// total, capped at 100 and 0 for a course without lessons.
func StudentProgress(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := 100 * float64(completed) / float64(total)
	return min(p, 100)
}

// withLesson returns a copy of set with id added or removed.
func withLesson(set []string, id string, completed bool) []string {
	out := slices.Clone(set)
	i, found := slices.BinarySearch(out, id)
	switch {
	case completed && !found:
		out = slices.Insert(out, i, id)
	case !completed && found:
		out = slices.Delete(out, i, i+1)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// normalizeSet sorts and dedupes ids read from storage.
func normalizeSet(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []string{}
	}
	return out
}

// keepLessons returns the ids of set that are still in lessons.
func keepLessons(set []string, lessons map[string]bool) []string {
	out := slices.DeleteFunc(slices.Clone(set), func(id string) bool { return !lessons[id] })
	if out == nil {
		out = []string{}
	}
	return out
}
