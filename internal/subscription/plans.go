package subscription

import "github.com/arkai-assistant/backend/internal/models"

// Unlimited marks a limit that is effectively uncapped.
const Unlimited = 999999

const (
	mb = 1024 * 1024
	gb = 1024 * mb
)

// Limits is the resource envelope of one plan.
type Limits struct {
	AIChatsPerDay       int
	TasksPerMonth       int
	StorageBytes        int64
	MaxNotes            int
	MaxReminders        int
	MaxGroups           int
	CanAssignTasks      bool
	CanSummaryToday     bool
	CanSummaryYesterday bool
}

// Price is a plan's price in whole baht per billing period.
type Price struct {
	Monthly int64
	Yearly  int64
}

var planLimits = map[models.Plan]Limits{
	models.PlanFree: {
		AIChatsPerDay: 10,
		TasksPerMonth: 5,
		StorageBytes:  500 * mb,
		MaxNotes:      10,
		MaxReminders:  3,
		MaxGroups:     1,
	},
	models.PlanBasic: {
		AIChatsPerDay:   50,
		TasksPerMonth:   30,
		StorageBytes:    5 * gb,
		MaxNotes:        50,
		MaxReminders:    20,
		MaxGroups:       3,
		CanAssignTasks:  true,
		CanSummaryToday: true,
	},
	models.PlanPro: {
		AIChatsPerDay:       200,
		TasksPerMonth:       100,
		StorageBytes:        15 * gb,
		MaxNotes:            200,
		MaxReminders:        100,
		MaxGroups:           10,
		CanAssignTasks:      true,
		CanSummaryToday:     true,
		CanSummaryYesterday: true,
	},
	models.PlanBusiness: {
		AIChatsPerDay:       Unlimited,
		TasksPerMonth:       Unlimited,
		StorageBytes:        50 * gb,
		MaxNotes:            Unlimited,
		MaxReminders:        Unlimited,
		MaxGroups:           Unlimited,
		CanAssignTasks:      true,
		CanSummaryToday:     true,
		CanSummaryYesterday: true,
	},
}

var planPrices = map[models.Plan]Price{
	models.PlanBasic:    {Monthly: 200, Yearly: 2000},
	models.PlanPro:      {Monthly: 300, Yearly: 3000},
	models.PlanBusiness: {Monthly: 500, Yearly: 2500},
}

// LimitsFor returns the limits of plan; unknown plans get the free tier.
func LimitsFor(plan models.Plan) Limits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[models.PlanFree]
}

// PriceFor returns the price of a paid plan in baht for period.
func PriceFor(plan models.Plan, period models.Period) (int64, bool) {
	p, ok := planPrices[plan]
	if !ok {
		return 0, false
	}
	if period == models.PeriodYearly {
		return p.Yearly, true
	}
	return p.Monthly, true
}

// AmountSatang returns the charge amount in minor units (1 baht = 100 satang).
func AmountSatang(plan models.Plan, period models.Period) (int64, bool) {
	baht, ok := PriceFor(plan, period)
	return baht * 100, ok
}
