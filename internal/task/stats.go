package task

import (
	"context"
	"sort"
	"strings"
	"time"

	"taskdesk/internal/user"
)

// Statistics period selectors. Anything else falls back to the trailing
// 30 days.
const (
	PeriodLast7Days = "last_7_days"
	PeriodThisMonth = "this_month"
	PeriodLastMonth = "last_month"
	PeriodThisYear  = "this_year"
	PeriodLastYear  = "last_year"
)

const (
	dailyDateLayout  = "02/01"
	topPerformersCap = 10
)

// managedGroups is the fixed set managers can break statistics down by.
var managedGroups = []string{"Lean", "IE"}

type StatsQuery struct {
	Period string
	Group  string
	UserID string
}

type Summary struct {
	Total     int `json:"total"`
	Ongoing   int `json:"ongoing"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
	Rejected  int `json:"rejected"`
}

type BreakdownItem struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

type DailyStat struct {
	Date      string `json:"date"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
	Ongoing   int    `json:"ongoing"`
	Overdue   int    `json:"overdue"`
	Rejected  int    `json:"rejected"`
}

type Performer struct {
	Name      string `json:"name"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Rate      int    `json:"rate"`
}

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}

type StatsReport struct {
	Summary         Summary         `json:"summary"`
	StatusBreakdown []BreakdownItem `json:"status_breakdown"`
	DailyStats      []DailyStat     `json:"daily_stats"`
	TopPerformers   []Performer     `json:"top_performers"`
	AvailableGroups []string        `json:"available_groups"`
	AvailableUsers  []UserRef       `json:"available_users"`
}

// Stats aggregates completion figures over the queried time window, scoped
// by the actor's role: members see their own tasks, leaders their group,
// managers everything.
func (s *Service) Stats(ctx context.Context, actor user.User, q StatsQuery) (*StatsReport, error) {
	now := s.now()
	from, to := statsWindow(q.Period, now)

	tasks, err := s.tasks.TasksCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	assignees, err := s.assigneeIndex(ctx)
	if err != nil {
		return nil, err
	}

	isManager := actor.IsManager()
	isLeader := actor.Role == user.RoleLeader
	leaderGroup := strings.TrimSpace(actor.Group)

	if isLeader && leaderGroup == "" {
		return nil, ErrLeaderNoGroup
	}
	if isLeader && q.Group != "" && q.Group != "all" && q.Group != leaderGroup {
		return nil, ErrGroupForbidden
	}
	if !isManager && !isLeader {
		tasks = filterTasks(tasks, func(t *Task) bool { return t.Assignee == actor.ID })
	}

	report := &StatsReport{
		AvailableGroups: []string{},
		AvailableUsers:  []UserRef{},
	}
	// Group and user lists come from the unfiltered window so picking a
	// user never empties the pickers.
	switch {
	case isManager:
		report.AvailableGroups = append(report.AvailableGroups, managedGroups...)
		report.AvailableUsers = collectAssignees(tasks, assignees, "")
	case isLeader:
		report.AvailableGroups = append(report.AvailableGroups, leaderGroup)
		report.AvailableUsers = collectAssignees(tasks, assignees, leaderGroup)
	default:
		report.AvailableUsers = []UserRef{{ID: actor.ID, Name: actor.Name, Group: actor.Group}}
	}

	if isLeader {
		tasks = filterTasks(tasks, func(t *Task) bool {
			return strings.TrimSpace(assignees[t.Assignee].Group) == leaderGroup
		})
	}
	if isManager && q.Group != "" && q.Group != "all" {
		tasks = filterTasks(tasks, func(t *Task) bool { return assignees[t.Assignee].Group == q.Group })
	}
	if (isManager || isLeader) && q.UserID != "" && q.UserID != "all" {
		tasks = filterTasks(tasks, func(t *Task) bool { return t.Assignee == q.UserID })
	}

	s.aggregate(report, tasks, assignees, from, to, now, isManager || isLeader)
	return report, nil
}

func (s *Service) assigneeIndex(ctx context.Context) (map[string]user.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]user.User, len(users))
	for _, u := range users {
		index[u.ID] = *u
	}
	return index, nil
}

func (s *Service) aggregate(report *StatsReport, tasks []*Task, assignees map[string]user.User, from, to, now time.Time, withPerformers bool) {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	daily := make(map[string]*DailyStat)
	perAssignee := make(map[string]*Performer)

	report.Summary.Total = len(tasks)
	for _, t := range tasks {
		dateKey := t.CreatedAt.Format(dailyDateLayout)
		day := daily[dateKey]
		if day == nil {
			day = &DailyStat{Date: dateKey}
			daily[dateKey] = day
		}
		day.Created++

		category := statsCategory(t, startOfToday)
		switch category {
		case "completed":
			report.Summary.Completed++
			day.Completed++
		case "rejected":
			report.Summary.Rejected++
			day.Rejected++
		case "overdue":
			report.Summary.Overdue++
			day.Overdue++
		default:
			report.Summary.Ongoing++
			day.Ongoing++
		}

		if t.Assignee != "" {
			p := perAssignee[t.Assignee]
			if p == nil {
				p = &Performer{Name: assignees[t.Assignee].Name}
				perAssignee[t.Assignee] = p
			}
			p.Total++
			if t.Status.Canonical() == StatusApproved {
				p.Completed++
			}
		}
	}

	report.StatusBreakdown = breakdown(report.Summary)
	report.DailyStats = fillDaily(daily, from, to)
	report.TopPerformers = []Performer{}
	if withPerformers {
		report.TopPerformers = topPerformers(perAssignee)
	}
}

// statsCategory buckets a task for the summary. Overdue here means due
// before the start of today while still undecided, which intentionally
// differs from the task-level IsOverdue cutoff at end of the due day.
func statsCategory(t *Task, startOfToday time.Time) string {
	switch t.Status.Canonical() {
	case StatusApproved:
		return "completed"
	case StatusRejected:
		return "rejected"
	}
	if t.DueDate.Before(startOfToday) {
		return "overdue"
	}
	return "ongoing"
}

func breakdown(s Summary) []BreakdownItem {
	items := []BreakdownItem{
		{Key: "ongoing", Value: s.Ongoing},
		{Key: "completed", Value: s.Completed},
		{Key: "overdue", Value: s.Overdue},
		{Key: "rejected", Value: s.Rejected},
	}
	out := items[:0]
	for _, item := range items {
		if item.Value > 0 {
			out = append(out, item)
		}
	}
	return out
}

func fillDaily(daily map[string]*DailyStat, from, to time.Time) []DailyStat {
	var out []DailyStat
	for cursor := from; !cursor.After(to); cursor = cursor.AddDate(0, 0, 1) {
		key := cursor.Format(dailyDateLayout)
		if day, ok := daily[key]; ok {
			out = append(out, *day)
			continue
		}
		out = append(out, DailyStat{Date: key})
	}
	return out
}

func topPerformers(perAssignee map[string]*Performer) []Performer {
	out := make([]Performer, 0, len(perAssignee))
	for _, p := range perAssignee {
		rate := 0
		if p.Total > 0 {
			rate = int(float64(p.Completed)/float64(p.Total)*100 + 0.5)
		}
		p.Rate = rate
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rate > out[j].Rate })
	if len(out) > topPerformersCap {
		out = out[:topPerformersCap]
	}
	return out
}

func collectAssignees(tasks []*Task, assignees map[string]user.User, group string) []UserRef {
	seen := make(map[string]struct{})
	out := []UserRef{}
	for _, t := range tasks {
		u, ok := assignees[t.Assignee]
		if !ok {
			continue
		}
		if group != "" && strings.TrimSpace(u.Group) != group {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, UserRef{ID: u.ID, Name: u.Name, Group: u.Group})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func filterTasks(tasks []*Task, keep func(*Task) bool) []*Task {
	out := tasks[:0]
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// statsWindow resolves a period selector into an inclusive [from, to] pair.
func statsWindow(period string, now time.Time) (time.Time, time.Time) {
	loc := now.Location()
	startOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}

	switch period {
	case PeriodLast7Days:
		return startOfDay(now.AddDate(0, 0, -6)), EndOfDay(now)
	case PeriodThisMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc), EndOfDay(now)
	case PeriodLastMonth:
		firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return firstOfThis.AddDate(0, -1, 0), EndOfDay(firstOfThis.AddDate(0, 0, -1))
	case PeriodThisYear:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc), EndOfDay(now)
	case PeriodLastYear:
		return time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, loc),
			EndOfDay(time.Date(now.Year()-1, 12, 31, 0, 0, 0, 0, loc))
	default:
		return startOfDay(now.AddDate(0, 0, -29)), EndOfDay(now)
	}
}
