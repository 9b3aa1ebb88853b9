// Package slots enumerates the bookable time labels of a business day.
package slots

import (
	"errors"
	"time"

	"automedic-booking/internal/model"
)

// LabelLayout renders a slot start, e.g. "02:00 PM".
const LabelLayout = "03:04 PM"

// Day is the fixed definition of a business day. CloseHour is exclusive:
// the last slot starts one Step before it.
type Day struct {
	OpenHour  int
	CloseHour int
	Step      time.Duration
}

// Default is 10:00 AM to 10:00 PM in 30 minute slots.
var Default = Day{OpenHour: 10, CloseHour: 22, Step: 30 * time.Minute}

func (d Day) Validate() error {
	if d.OpenHour < 0 || d.CloseHour > 24 {
		return errors.New("slots: hours must be within 0..24")
	}
	if d.OpenHour >= d.CloseHour {
		return errors.New("slots: open hour must be before close hour")
	}
	if d.Step <= 0 || d.Step > time.Duration(d.CloseHour-d.OpenHour)*time.Hour {
		return errors.New("slots: step must be positive and fit in the day")
	}
	return nil
}

// Labels returns the ordered slot labels. Same output on every call.
func (d Day) Labels() []string {
	if d.Validate() != nil {
		return nil
	}
	base := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	start := base.Add(time.Duration(d.OpenHour) * time.Hour)
	end := base.Add(time.Duration(d.CloseHour) * time.Hour)

	var out []string
	for t := start; t.Before(end); t = t.Add(d.Step) {
		out = append(out, t.Format(LabelLayout))
	}
	return out
}

// Table returns every slot of the day, all free.
func (d Day) Table() []model.TimeSlot {
	labels := d.Labels()
	out := make([]model.TimeSlot, len(labels))
	for i, l := range labels {
		out[i] = model.TimeSlot{Time: l}
	}
	return out
}

func (d Day) Valid(label string) bool {
	return d.Index(label) >= 0
}

// Index returns the position of label in the day, or -1.
func (d Day) Index(label string) int {
	for i, l := range d.Labels() {
		if l == label {
			return i
		}
	}
	return -1
}
