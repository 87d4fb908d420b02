package models

import (
	"fmt"
	"time"
)

// Activity classifies how recently a user did something.
type Activity int

const (
	ActivityNone Activity = iota
	ActivityObsolete
	ActivityRecent
)

func activityOf(last *time.Time, window time.Duration, now time.Time) Activity {
	if last == nil {
		return ActivityNone
	}
	if last.After(now.Add(-window)) {
		return ActivityRecent
	}
	return ActivityObsolete
}

// GradeRules configures how grades are computed.
type GradeRules struct {
	RootUserID    int64 // 0 disables the root grade
	LoginWindow   time.Duration
	DrivingWindow time.Duration
}

// UserGrade summarizes a user's standing for display.
type UserGrade struct {
	LoginActivity      Activity
	DrivingActivity    Activity
	Promotion          Promotion
	PromotionAuthority PromotionAuthority
	IsRoot             bool
}

// GradeOf computes the grade of u at time now.
func GradeOf(u *User, rules GradeRules, now time.Time) UserGrade {
	return UserGrade{
		LoginActivity:      activityOf(u.LastLogin, rules.LoginWindow, now),
		DrivingActivity:    activityOf(u.LastLap, rules.DrivingWindow, now),
		Promotion:          u.Promotion,
		PromotionAuthority: u.PromotionAuthority,
		IsRoot:             rules.RootUserID > 0 && u.ID == rules.RootUserID,
	}
}

func (g UserGrade) loginLabel() string {
	switch g.LoginActivity {
	case ActivityObsolete:
		return "Ghost"
	case ActivityRecent:
		return "League"
	}
	return "Wildcard"
}

func (g UserGrade) drivingLabel() string {
	switch g.DrivingActivity {
	case ActivityObsolete:
		return "Veteran"
	case ActivityRecent:
		return "Driver"
	}
	return "Pedestrian"
}

// Label renders e.g. "League Driver" or "League Driver, Chief Marshal".
func (g UserGrade) Label() string {
	if g.IsRoot {
		return "Root"
	}
	if g.Promotion == PromotionNone {
		return fmt.Sprintf("%s %s", g.loginLabel(), g.drivingLabel())
	}
	return fmt.Sprintf("%s %s, %s %s", g.loginLabel(), g.drivingLabel(), g.PromotionAuthority.Label(), g.Promotion.Label())
}
