package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"classboard/pkg/domain"
)

const recentUserWindow = 7 * 24 * time.Hour

const topClassroomCount = 5

// Analytics aggregates platform-wide counters, fanning the independent
// counts out in parallel.
func (a *App) Analytics(ctx context.Context) (domain.Analytics, error) {
	var out domain.Analytics
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() (err error) { out.TotalTeachers, err = a.store.CountUsersByRole(domain.RoleTeacher); return })
	g.Go(func() (err error) { out.TotalStudents, err = a.store.CountUsersByRole(domain.RoleStudent); return })
	g.Go(func() (err error) { out.TotalUsers, err = a.store.CountUsers(); return })
	g.Go(func() (err error) { out.TotalClassrooms, err = a.store.CountClassrooms(); return })
	g.Go(func() (err error) { out.TotalAssignments, err = a.store.CountAssignments(); return })
	g.Go(func() (err error) { out.TotalSubmissions, err = a.store.CountSubmissions(); return })
	g.Go(func() (err error) { out.Evaluated, err = a.store.CountEvaluated(); return })
	g.Go(func() (err error) { out.Published, err = a.store.CountPublished(); return })
	g.Go(func() (err error) { out.ActiveMeets, err = a.store.CountActiveMeets(); return })
	g.Go(func() (err error) {
		out.RecentUsers, err = a.store.CountUsersSince(a.now().Add(-recentUserWindow))
		return
	})
	g.Go(func() (err error) { out.TopClassrooms, err = a.store.TopClassrooms(topClassroomCount); return })

	if err := g.Wait(); err != nil {
		return domain.Analytics{}, fmt.Errorf("collect analytics: %w", err)
	}
	if out.TopClassrooms == nil {
		out.TopClassrooms = []domain.TopClassroom{}
	}
	return out, nil
}

// ReportCSV renders the analytics as a downloadable CSV report.
func (a *App) ReportCSV(ctx context.Context) ([]byte, error) {
	analytics, err := a.Analytics(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"metric", "value"},
		{"totalTeachers", formatInt(analytics.TotalTeachers)},
		{"totalStudents", formatInt(analytics.TotalStudents)},
		{"totalUsers", formatInt(analytics.TotalUsers)},
		{"totalClassrooms", formatInt(analytics.TotalClassrooms)},
		{"totalAssignments", formatInt(analytics.TotalAssignments)},
		{"totalSubmissions", formatInt(analytics.TotalSubmissions)},
		{"aiEvaluated", formatInt(analytics.Evaluated)},
		{"published", formatInt(analytics.Published)},
		{"activeMeets", formatInt(analytics.ActiveMeets)},
		{"recentUsers", formatInt(analytics.RecentUsers)},
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	buf.WriteString("\n")
	topRows := [][]string{{"classroom", "subject", "code", "students", "teacher"}}
	for _, c := range analytics.TopClassrooms {
		topRows = append(topRows, []string{c.Name, c.Subject, c.Code, strconv.Itoa(c.StudentCount), c.Teacher})
	}
	if err := w.WriteAll(topRows); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return buf.Bytes(), nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
