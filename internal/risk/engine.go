package risk

import "math"

// tier is one bracket of a rule. Factor may be empty: the weight still
// counts but nothing is reported.
type tier struct {
	weight float64
	factor string
	match  func(*FeatureRecord) bool
}

// rule groups mutually exclusive tiers; the first matching tier wins.
type rule struct {
	name  string
	tiers []tier
}

var rules = []rule{
	{"blacklist", []tier{
		{2.5, "Recipient is on blacklist", func(f *FeatureRecord) bool { return bool(f.RecipientBlacklistStatus) }},
	}},
	{"vpn_proxy", []tier{
		{1.5, "VPN or proxy detected", func(f *FeatureRecord) bool { return bool(f.VPNProxyUsage) }},
	}},
	{"device", []tier{
		{1.2, "Suspicious device detected", func(f *FeatureRecord) bool { return bool(f.DeviceFingerprinting) }},
	}},
	{"past_fraud", []tier{
		{2.0, "History of fraudulent activity", func(f *FeatureRecord) bool { return bool(f.PastFraudulentBehavior) }},
	}},
	{"location", []tier{
		{1.3, "Location inconsistency detected", func(f *FeatureRecord) bool { return bool(f.LocationInconsistent) }},
	}},
	{"recipient_status", []tier{
		{2.0, "Recipient marked as suspicious", func(f *FeatureRecord) bool {
			return f.RecipientVerificationStatus == RecipientSuspicious
		}},
		{1.0, "Recipient recently registered", func(f *FeatureRecord) bool {
			return f.RecipientVerificationStatus == RecipientRecentlyRegistered
		}},
	}},
	{"geo", []tier{
		{1.8, "High-risk geographic location", func(f *FeatureRecord) bool { return f.GeoLocationFlags == GeoHighRisk }},
		{1.2, "Unusual geographic location", func(f *FeatureRecord) bool { return f.GeoLocationFlags == GeoUnusual }},
	}},
	{"amount", []tier{
		{1.5, "Very high transaction amount", func(f *FeatureRecord) bool { return f.TransactionAmount > 4000 }},
		{0.8, "High transaction amount", func(f *FeatureRecord) bool { return f.TransactionAmount > 2500 }},
	}},
	{"normalized_amount", []tier{
		{1.0, "Unusually high normalized amount", func(f *FeatureRecord) bool { return f.NormalizedTransactionAmount > 0.8 }},
		{0.5, "", func(f *FeatureRecord) bool { return f.NormalizedTransactionAmount > 0.6 }},
	}},
	{"frequency", []tier{
		{1.5, "Unusually high transaction frequency", func(f *FeatureRecord) bool { return f.TransactionFrequency > 20 }},
		{0.8, "High transaction frequency", func(f *FeatureRecord) bool { return f.TransactionFrequency > 10 }},
	}},
	{"time_since_last", []tier{
		{1.0, "Very short time since last transaction", func(f *FeatureRecord) bool { return f.TimeSinceLastTransaction < 1.0 }},
		{0.5, "", func(f *FeatureRecord) bool { return f.TimeSinceLastTransaction < 2.0 }},
	}},
	{"trust", []tier{
		{1.5, "Low social trust score", func(f *FeatureRecord) bool { return f.SocialTrustScore < 30 }},
		{0.8, "Below average trust score", func(f *FeatureRecord) bool { return f.SocialTrustScore < 50 }},
	}},
	{"account_age", []tier{
		{1.2, "Very new account", func(f *FeatureRecord) bool { return f.AccountAge < 0.5 }},
		{0.6, "", func(f *FeatureRecord) bool { return f.AccountAge < 1.0 }},
	}},
	{"behavioral", []tier{
		{1.3, "Unusual behavioral pattern", func(f *FeatureRecord) bool { return f.BehavioralBiometrics > 2.5 }},
		{0.7, "", func(f *FeatureRecord) bool { return f.BehavioralBiometrics > 2.0 }},
	}},
	{"context", []tier{
		{1.4, "High contextual anomalies", func(f *FeatureRecord) bool { return f.TransactionContextAnomalies > 2.5 }},
		{0.8, "", func(f *FeatureRecord) bool { return f.TransactionContextAnomalies > 1.5 }},
	}},
	{"complaints", []tier{
		{1.5, "Multiple fraud complaints", func(f *FeatureRecord) bool { return f.FraudComplaintsCount > 3 }},
		{0.7, "Previous fraud complaints", func(f *FeatureRecord) bool { return f.FraudComplaintsCount > 0 }},
	}},
	{"high_risk_time", []tier{
		{0.8, "Transaction at high-risk time", func(f *FeatureRecord) bool { return bool(f.HighRiskTransactionTimes) }},
	}},
	{"merchant_mismatch", []tier{
		{0.9, "Merchant category mismatch", func(f *FeatureRecord) bool { return bool(f.MerchantCategoryMismatch) }},
	}},
	{"daily_limit", []tier{
		{1.2, "Daily transaction limit exceeded", func(f *FeatureRecord) bool { return bool(f.UserDailyLimitExceeded) }},
	}},
	{"recent_high_value", []tier{
		{0.8, "Recent high-value transaction flags", func(f *FeatureRecord) bool { return bool(f.RecentHighValueFlags) }},
	}},
}

// Score evaluates a feature record. It is total: every record yields a
// classification within the documented bounds.
func Score(f FeatureRecord) Classification {
	score, factors := accumulate(&f)
	score = clamp(score, MinScore, MaxScore)
	prob := Probability(score)

	prediction := PredictionLegitimate
	if score >= FraudScoreThreshold || prob >= FraudProbabilityThreshold {
		prediction = PredictionFraudulent
	}

	if len(factors) == 0 {
		factors = []string{LowRiskFactor}
	}

	return Classification{
		Prediction:  prediction,
		Probability: math.Round(prob*1000) / 1000,
		FraudScore:  math.Round(score*100) / 100,
		RiskFactors: factors,
	}
}

// accumulate sums weights in tenths so that thresholds compare exactly.
func accumulate(f *FeatureRecord) (float64, []string) {
	var tenths int64
	factors := make([]string, 0, 8)
	for _, r := range rules {
		for _, t := range r.tiers {
			if !t.match(f) {
				continue
			}
			tenths += int64(math.Round(t.weight * 10))
			if t.factor != "" {
				factors = append(factors, t.factor)
			}
			break
		}
	}
	return float64(tenths) / 10, factors
}

// Probability maps a clamped score onto the bucketed fraud probability.
func Probability(score float64) float64 {
	var p float64
	switch {
	case score >= 7.0:
		p = 0.85 + (score-7.0)*0.05
	case score >= 5.0:
		p = 0.65 + (score-5.0)*0.10
	case score >= 3.0:
		p = 0.35 + (score-3.0)*0.15
	default:
		p = score * 0.12
	}
	return clamp(p, MinProbability, MaxProbability)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
