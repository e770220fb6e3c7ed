package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Claim prepares a decoded record for insertion under ownerID. Any
// client-supplied primary key is dropped.
func (s *Symptom) Claim(ownerID uint) {
	s.ID = 0
	s.UserID = ownerID
}

func (s *Symptom) RecordID() uint {
	return s.ID
}

func (s *Symptom) Timestamp() time.Time {
	return s.RecordedOn
}

func (s *Symptom) SearchText() string {
	return joinText(s.TypeOfSymptom, s.Notes)
}

func (s *Symptom) BeforeCreate(*gorm.DB) error {
	s.RecordedOn = defaultNow(s.RecordedOn)
	return nil
}

func (f *FoodLog) Claim(ownerID uint) {
	f.ID = 0
	f.UserID = ownerID
}

func (f *FoodLog) RecordID() uint {
	return f.ID
}

func (f *FoodLog) Timestamp() time.Time {
	return f.RecordedOn
}

func (f *FoodLog) SearchText() string {
	return joinText(f.Breakfast, f.Lunch, f.Dinner, f.Notes)
}

func (f *FoodLog) BeforeCreate(*gorm.DB) error {
	f.RecordedOn = defaultNow(f.RecordedOn)
	return nil
}

func (l *Lab) Claim(ownerID uint) {
	l.ID = 0
	l.UserID = ownerID
}

func (l *Lab) RecordID() uint {
	return l.ID
}

func (l *Lab) Timestamp() time.Time {
	return l.RecordedOn
}

func (l *Lab) SearchText() string {
	text := fmt.Sprintf("blood pressure %d/%d", l.SystolicPressure, l.DiastolicPressure)
	if l.RBCCount != nil {
		text += fmt.Sprintf(" rbc %.2f", *l.RBCCount)
	}
	return text
}

func (l *Lab) BeforeCreate(*gorm.DB) error {
	l.RecordedOn = defaultNow(l.RecordedOn)
	return nil
}

func (t *Treatment) Claim(ownerID uint) {
	t.ID = 0
	t.UserID = ownerID
}

func (t *Treatment) RecordID() uint {
	return t.ID
}

// Timestamp is the zero time for unscheduled treatments.
func (t *Treatment) Timestamp() time.Time {
	if t.ScheduledOn == nil {
		return time.Time{}
	}
	return *t.ScheduledOn
}

func (t *Treatment) SearchText() string {
	return joinText(t.TreatmentName, t.Notes)
}

func joinText(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

func defaultNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
