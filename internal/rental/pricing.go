package rental

import (
	"math"
	"time"

	"agrirent/internal/models"
)

// Flat interest per term, in basis points.
var installmentRates = map[int]int64{
	3:  0,
	6:  500,
	12: 800,
}

// MaxPrincipal bounds installment principals so that minor units times the
// rate factor stays within int64.
const MaxPrincipal = 1e12

// SupportedTerms lists the installment terms in months, ascending.
var SupportedTerms = []int{3, 6, 12}

// InterestRate returns the flat rate for a term as a fraction.
func InterestRate(termMonths int) (float64, error) {
	bps, ok := installmentRates[termMonths]
	if !ok {
		return 0, ErrInvalidTerm
	}
	return float64(bps) / 10000, nil
}

// ComputeTotal prices an inclusive rental: (end-start in days + 1) * pricePerDay.
func ComputeTotal(start, end time.Time, pricePerDay float64) (float64, error) {
	iv := models.DateInterval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return 0, err
	}
	if math.IsNaN(pricePerDay) || math.IsInf(pricePerDay, 0) || pricePerDay <= 0 {
		return 0, ErrInvalidPrice
	}
	return roundMoney(float64(iv.Days()) * pricePerDay), nil
}

// ComputeInstallment returns ceil(principal * (1 + rate) / termMonths) in whole
// currency units. The arithmetic runs on integer minor units so that e.g.
// 600 over 6 months is exactly 105.
func ComputeInstallment(principal float64, termMonths int) (int64, error) {
	bps, ok := installmentRates[termMonths]
	if !ok {
		return 0, ErrInvalidTerm
	}
	minor, err := toMinor(principal)
	if err != nil {
		return 0, err
	}
	return ceilDiv(minor*(10000+bps), 100*10000*int64(termMonths)), nil
}

// InstallmentPlanFor builds the full plan for one term.
func InstallmentPlanFor(principal float64, termMonths int) (models.InstallmentPlan, error) {
	monthly, err := ComputeInstallment(principal, termMonths)
	if err != nil {
		return models.InstallmentPlan{}, err
	}
	bps := installmentRates[termMonths]
	minor, _ := toMinor(principal)

	return models.InstallmentPlan{
		TermMonths:     termMonths,
		InterestRate:   float64(bps) / 10000,
		Interest:       ceilDiv(minor*bps, 100*10000),
		TotalPayable:   ceilDiv(minor*(10000+bps), 100*10000),
		MonthlyPayment: monthly,
	}, nil
}

// InstallmentPlans returns one plan per supported term.
func InstallmentPlans(principal float64) ([]models.InstallmentPlan, error) {
	plans := make([]models.InstallmentPlan, 0, len(SupportedTerms))
	for _, term := range SupportedTerms {
		plan, err := InstallmentPlanFor(principal, term)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func toMinor(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 || amount > MaxPrincipal {
		return 0, ErrInvalidPrincipal
	}
	return int64(math.Round(amount * 100)), nil
}

func ceilDiv(num, den int64) int64 {
	q := num / den
	if num%den != 0 {
		q++
	}
	return q
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
