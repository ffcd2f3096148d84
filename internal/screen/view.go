package screen

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/timer"
	"fmt"
)

// Tab is one of the three navigation tabs.
type Tab string

const (
	TabWorkout  Tab = "workout"
	TabCalendar Tab = "calendar"
	TabProfile  Tab = "profile"
)

// Valid reports whether t names a known tab.
func (t Tab) Valid() bool {
	switch t {
	case TabWorkout, TabCalendar, TabProfile:
		return true
	}
	return false
}

// UIState is the view-only state of a screen.
type UIState struct {
	ActiveTab         Tab
	SelectedWorkoutID string
	Editing           bool
	Loading           bool
	Online            bool
}

// RenderInput is everything a view is computed from.
type RenderInput struct {
	UserID string
	Plans  []domain.WorkoutPlan
	Timer  timer.State
	UI     UIState
}

// View is the rendered screen.
type View struct {
	Loading   bool        `json:"loading"`
	UserID    string      `json:"userId,omitempty"`
	Online    bool        `json:"online"`
	ActiveTab Tab         `json:"activeTab"`
	Editing   bool        `json:"editing"`
	Plans     []PlanItem  `json:"plans,omitempty"`
	Selected  *PlanDetail `json:"selected,omitempty"`
	Timer     TimerView   `json:"timer"`
}

// PlanItem is one row of the plan list.
type PlanItem struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	ExerciseCount int    `json:"exerciseCount"`
}

// PlanDetail is the selected plan with its exercises.
type PlanDetail struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Exercises []ExerciseItem `json:"exercises"`
}

// ExerciseItem is one exercise of the selected plan, e.g. "3 X 10".
type ExerciseItem struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Volume string `json:"volume"`
}

// TimerView is the rest timer bar.
type TimerView struct {
	Display   string `json:"display"`
	Remaining int    `json:"remaining"`
	Running   bool   `json:"running"`
	Phase     string `json:"phase"`
}

// Render computes the view. It has no side effects.
func Render(in RenderInput) View {
	v := View{
		Loading:   in.UI.Loading,
		UserID:    in.UserID,
		Online:    in.UI.Online,
		ActiveTab: in.UI.ActiveTab,
		Editing:   in.UI.Editing,
		Timer: TimerView{
			Display:   timer.Format(in.Timer.Remaining),
			Remaining: in.Timer.Remaining,
			Running:   in.Timer.Running,
			Phase:     string(in.Timer.Phase),
		},
	}
	if v.ActiveTab == "" {
		v.ActiveTab = TabWorkout
	}
	if v.Loading || v.ActiveTab != TabWorkout {
		return v
	}

	if in.UI.SelectedWorkoutID != "" {
		for _, p := range in.Plans {
			if p.ID == in.UI.SelectedWorkoutID {
				v.Selected = renderDetail(p)
				return v
			}
		}
	}

	v.Plans = make([]PlanItem, 0, len(in.Plans))
	for _, p := range in.Plans {
		v.Plans = append(v.Plans, PlanItem{ID: p.ID, Title: p.Title, ExerciseCount: len(p.Exercises)})
	}
	return v
}

func renderDetail(p domain.WorkoutPlan) *PlanDetail {
	d := &PlanDetail{ID: p.ID, Title: p.Title, Exercises: make([]ExerciseItem, 0, len(p.Exercises))}
	for _, ex := range p.Exercises {
		d.Exercises = append(d.Exercises, ExerciseItem{
			ID:     ex.ID,
			Name:   ex.Name,
			Volume: fmt.Sprintf("%d X %d", ex.SetsNum, ex.RepsNum),
		})
	}
	return d
}
