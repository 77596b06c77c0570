package progress

import (
	"context"
	"math"
)

type EnrollmentRow struct {
	UserID          string
	Name            string
	Email           string
	CourseID        string
	CourseTitle     string
	StudentProgress float64
}

type AttemptRow struct {
	UserID   string
	CourseID string
	Score    float64
	MaxScore float64
}

// StudentSummary is one row of an instructor's student overview.
type StudentSummary struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	LessonProgress float64  `json:"lessonProgress"` // mean studentProgress, rounded
	QuizAverage    float64  `json:"quizAverage"`    // mean of per-course quiz averages, rounded
	Courses        []string `json:"courses"`        // first three titles
	TotalCourses   int      `json:"totalCourses"`
}

type ReportSource interface {
	OwnerEnrollments(ctx context.Context, ownerID string) ([]EnrollmentRow, error)
	OwnerCompletedAttempts(ctx context.Context, ownerID string) ([]AttemptRow, error)
}

type Reporter struct{ src ReportSource }

func NewReporter(src ReportSource) *Reporter { return &Reporter{src: src} }

// StudentsOf summarizes every student enrolled in a course owned by ownerID.
func (r *Reporter) StudentsOf(ctx context.Context, ownerID string) ([]StudentSummary, error) {
	enrollments, err := r.src.OwnerEnrollments(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(enrollments) == 0 {
		return []StudentSummary{}, nil
	}
	attempts, err := r.src.OwnerCompletedAttempts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return BuildStudentReport(enrollments, attempts), nil
}

// BuildStudentReport aggregates in memory. Students keep the order of their
// first enrollment row.
func BuildStudentReport(enrollments []EnrollmentRow, attempts []AttemptRow) []StudentSummary {
	type courseKey struct{ user, course string }
	quizPct := map[courseKey][]float64{}
	for _, a := range attempts {
		k := courseKey{a.UserID, a.CourseID}
		quizPct[k] = append(quizPct[k], Percentage(a.Score, a.MaxScore))
	}

	type acc struct {
		summary       StudentSummary
		lessonSum     float64
		seenCourses   map[string]bool
		quizSum       float64
		quizCourseCnt int
	}
	var order []string
	byUser := map[string]*acc{}
	for _, e := range enrollments {
		a, ok := byUser[e.UserID]
		if !ok {
			a = &acc{
				summary:     StudentSummary{ID: e.UserID, Name: e.Name, Email: e.Email, Courses: []string{}},
				seenCourses: map[string]bool{},
			}
			byUser[e.UserID] = a
			order = append(order, e.UserID)
		}
		a.lessonSum += e.StudentProgress
		a.summary.TotalCourses++
		if !a.seenCourses[e.CourseTitle] {
			a.seenCourses[e.CourseTitle] = true
			if len(a.summary.Courses) < 3 {
				a.summary.Courses = append(a.summary.Courses, e.CourseTitle)
			}
		}
		if pcts := quizPct[courseKey{e.UserID, e.CourseID}]; len(pcts) > 0 {
			sum := 0.0
			for _, p := range pcts {
				sum += p
			}
			a.quizSum += sum / float64(len(pcts))
			a.quizCourseCnt++
		}
	}

	out := make([]StudentSummary, 0, len(order))
	for _, id := range order {
		a := byUser[id]
		if a.summary.TotalCourses > 0 {
			a.summary.LessonProgress = math.Round(a.lessonSum / float64(a.summary.TotalCourses))
		}
		if a.quizCourseCnt > 0 {
			a.summary.QuizAverage = math.Round(a.quizSum / float64(a.quizCourseCnt))
		}
		out = append(out, a.summary)
	}
	return out
}
