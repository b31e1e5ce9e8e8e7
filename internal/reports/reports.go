package reports

import (
	"context"
	"fmt"
	"time"

	"timecard/internal/domain"
	"timecard/internal/repo"
)

// Service answers compliance queries over the entry store and the holiday
// calendar. Results are plain row sets so callers can render tables, JSON
// or CSV without the service caring.
type Service struct {
	Repo repo.Repo
}

type MissingRow struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
}

type MissingSummary struct {
	TotalMissingDays   int `json:"total_missing_days"`
	AffectedUsers      int `json:"affected_users"`
	WorkingDaysInRange int `json:"working_days_in_range"`
}

type MissingReport struct {
	Rows    []MissingRow   `json:"rows"`
	Summary MissingSummary `json:"summary"`
}

// MissingTimesheets finds (user, working day) pairs with no entries of any
// status. Weekends are excluded when skipWeekends is set; holidays are
// excluded for the given region. Only active users are considered.
func (s Service) MissingTimesheets(ctx context.Context, from, to string, skipWeekends bool, region string) (MissingReport, error) {
	days, err := workingDays(from, to, skipWeekends, func() (map[string]bool, error) {
		return s.holidaySet(ctx, region, from, to)
	})
	if err != nil {
		return MissingReport{}, err
	}
	users, err := s.Repo.ListUsers(ctx, true)
	if err != nil {
		return MissingReport{}, err
	}
	present := map[repo.UserDay]bool{}
	userDays, err := s.Repo.ListUserDays(ctx, from, to)
	if err != nil {
		return MissingReport{}, err
	}
	for _, d := range userDays {
		present[d] = true
	}

	report := MissingReport{Summary: MissingSummary{WorkingDaysInRange: len(days)}}
	affected := map[string]bool{}
	for _, u := range users {
		for _, day := range days {
			if present[repo.UserDay{UserID: u.ID, WorkDate: day}] {
				continue
			}
			report.Rows = append(report.Rows, MissingRow{UserID: u.ID, Date: day})
			affected[u.ID] = true
		}
	}
	report.Summary.TotalMissingDays = len(report.Rows)
	report.Summary.AffectedUsers = len(affected)
	return report, nil
}

func (r MissingReport) Header() []string {
	return []string{"user_id", "date"}
}

func (r MissingReport) CSVRows() [][]string {
	rows := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, []string{row.UserID, row.Date})
	}
	return rows
}

type OvertimeRow struct {
	UserID     string  `json:"user_id"`
	Date       string  `json:"date"`
	TotalHours float64 `json:"total_hours"`
}

type OvertimeReport struct {
	Rows []OvertimeRow `json:"rows"`
	Cap  float64       `json:"cap"`
}

// Overtime sums hours per (user, date) across all statuses and reports the
// days whose total exceeds the cap.
func (s Service) Overtime(ctx context.Context, from, to string, capHours float64) (OvertimeReport, error) {
	if err := validateRange(from, to); err != nil {
		return OvertimeReport{}, err
	}
	if capHours <= 0 {
		capHours = 12
	}
	totals, err := s.Repo.ListDayTotalsOver(ctx, from, to, capHours)
	if err != nil {
		return OvertimeReport{}, err
	}
	report := OvertimeReport{Cap: capHours}
	for _, t := range totals {
		report.Rows = append(report.Rows, OvertimeRow{UserID: t.UserID, Date: t.WorkDate, TotalHours: t.TotalHours})
	}
	return report, nil
}

func (r OvertimeReport) Header() []string {
	return []string{"user_id", "date", "total_hours"}
}

func (r OvertimeReport) CSVRows() [][]string {
	rows := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, []string{row.UserID, row.Date, fmt.Sprintf("%.2f", row.TotalHours)})
	}
	return rows
}

func (s Service) holidaySet(ctx context.Context, region, from, to string) (map[string]bool, error) {
	if region == "" {
		return map[string]bool{}, nil
	}
	holidays, err := s.Repo.ListHolidays(ctx, region, from, to)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		set[h.Date] = true
	}
	return set, nil
}

// workingDays expands the inclusive range into eligible dates.
func workingDays(from, to string, skipWeekends bool, loadHolidays func() (map[string]bool, error)) ([]string, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return nil, &domain.ValidationError{Field: "from", Reason: "must be YYYY-MM-DD"}
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return nil, &domain.ValidationError{Field: "to", Reason: "must be YYYY-MM-DD"}
	}
	if start.After(end) {
		return nil, &domain.ValidationError{Field: "from", Reason: "must not be after to"}
	}
	holidays, err := loadHolidays()
	if err != nil {
		return nil, err
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if skipWeekends {
			if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
		}
		date := d.Format("2006-01-02")
		if holidays[date] {
			continue
		}
		days = append(days, date)
	}
	return days, nil
}

func validateRange(from, to string) error {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return &domain.ValidationError{Field: "from", Reason: "must be YYYY-MM-DD"}
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return &domain.ValidationError{Field: "to", Reason: "must be YYYY-MM-DD"}
	}
	if start.After(end) {
		return &domain.ValidationError{Field: "from", Reason: "must not be after to"}
	}
	return nil
}
