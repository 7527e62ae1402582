package risk

import (
	"encoding/json"

	"github.com/mbd888/fraudguard/internal/validation"
)

// RecipientStatus describes how far the receiving account has been vetted.
type RecipientStatus string

const (
	RecipientVerified           RecipientStatus = "verified"
	RecipientSuspicious         RecipientStatus = "suspicious"
	RecipientRecentlyRegistered RecipientStatus = "recently_registered"
)

// GeoFlag classifies where a transaction originated.
type GeoFlag string

const (
	GeoNormal   GeoFlag = "normal"
	GeoUnusual  GeoFlag = "unusual"
	GeoHighRisk GeoFlag = "high-risk"
)

// Flag is a boolean that travels over the wire as 0 or 1.
type Flag bool

// MarshalJSON writes the flag as 0 or 1.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON accepts 0/1, true/false and their quoted forms.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = false
		return nil
	}
	v, err := validation.CoerceBool(raw)
	if err != nil {
		return err
	}
	*f = Flag(v)
	return nil
}

// FeatureRecord is the scoring input. Use DefaultFeatures or DecodeFeatures
// to obtain a record with the documented defaults applied.
type FeatureRecord struct {
	TransactionAmount           float64         `json:"transaction_amount"`
	TransactionFrequency        int             `json:"transaction_frequency"`
	RecipientVerificationStatus RecipientStatus `json:"recipient_verification_status"`
	RecipientBlacklistStatus    Flag            `json:"recipient_blacklist_status"`
	DeviceFingerprinting        Flag            `json:"device_fingerprinting"`
	VPNProxyUsage               Flag            `json:"vpn_proxy_usage"`
	GeoLocationFlags            GeoFlag         `json:"geo_location_flags"`
	BehavioralBiometrics        float64         `json:"behavioral_biometrics"`
	TimeSinceLastTransaction    float64         `json:"time_since_last_transaction"`
	SocialTrustScore            int             `json:"social_trust_score"`
	AccountAge                  float64         `json:"account_age"`
	HighRiskTransactionTimes    Flag            `json:"high_risk_transaction_times"`
	PastFraudulentBehavior      Flag            `json:"past_fraudulent_behavior"`
	LocationInconsistent        Flag            `json:"location_inconsistent"`
	NormalizedTransactionAmount float64         `json:"normalized_transaction_amount"`
	TransactionContextAnomalies float64         `json:"transaction_context_anomalies"`
	FraudComplaintsCount        int             `json:"fraud_complaints_count"`
	MerchantCategoryMismatch    Flag            `json:"merchant_category_mismatch"`
	UserDailyLimitExceeded      Flag            `json:"user_daily_limit_exceeded"`
	RecentHighValueFlags        Flag            `json:"recent_high_value_flags"`
}

// Defaults for fields whose zero value is not the documented default.
const (
	DefaultSocialTrustScore = 50
	DefaultAccountAge       = 1.0
)

// DefaultFeatures returns a record with every field at its default.
func DefaultFeatures() FeatureRecord {
	return FeatureRecord{
		RecipientVerificationStatus: RecipientVerified,
		GeoLocationFlags:            GeoNormal,
		SocialTrustScore:            DefaultSocialTrustScore,
		AccountAge:                  DefaultAccountAge,
	}
}

// DecodeFeatures coerces loosely typed JSON values into a FeatureRecord.
// Absent and null fields take their defaults; unknown keys are ignored.
// Every field that cannot be coerced is reported in the returned
// validation.ValidationErrors.
func DecodeFeatures(data map[string]any) (FeatureRecord, error) {
	f := DefaultFeatures()
	d := validation.NewFieldDecoder(data)

	d.Float("transaction_amount", &f.TransactionAmount)
	d.Int("transaction_frequency", &f.TransactionFrequency)
	d.String("recipient_verification_status", (*string)(&f.RecipientVerificationStatus))
	d.Bool("recipient_blacklist_status", (*bool)(&f.RecipientBlacklistStatus))
	d.Bool("device_fingerprinting", (*bool)(&f.DeviceFingerprinting))
	d.Bool("vpn_proxy_usage", (*bool)(&f.VPNProxyUsage))
	d.String("geo_location_flags", (*string)(&f.GeoLocationFlags))
	d.Float("behavioral_biometrics", &f.BehavioralBiometrics)
	d.Float("time_since_last_transaction", &f.TimeSinceLastTransaction)
	d.Int("social_trust_score", &f.SocialTrustScore)
	d.Float("account_age", &f.AccountAge)
	d.Bool("high_risk_transaction_times", (*bool)(&f.HighRiskTransactionTimes))
	d.Bool("past_fraudulent_behavior", (*bool)(&f.PastFraudulentBehavior))
	d.Bool("location_inconsistent", (*bool)(&f.LocationInconsistent))
	d.Float("normalized_transaction_amount", &f.NormalizedTransactionAmount)
	d.Float("transaction_context_anomalies", &f.TransactionContextAnomalies)
	d.Int("fraud_complaints_count", &f.FraudComplaintsCount)
	d.Bool("merchant_category_mismatch", (*bool)(&f.MerchantCategoryMismatch))
	d.Bool("user_daily_limit_exceeded", (*bool)(&f.UserDailyLimitExceeded))
	d.Bool("recent_high_value_flags", (*bool)(&f.RecentHighValueFlags))

	return f, d.Err()
}
