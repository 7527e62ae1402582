package risk

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudguard/internal/validation"
)

func decodeJSON(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestDecodeFeaturesDefaults(t *testing.T) {
	f, err := DecodeFeatures(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, DefaultFeatures(), f)
	assert.Equal(t, 50, f.SocialTrustScore)
	assert.Equal(t, 1.0, f.AccountAge)
	assert.Equal(t, RecipientVerified, f.RecipientVerificationStatus)
	assert.Equal(t, GeoNormal, f.GeoLocationFlags)
}

func TestDecodeFeaturesNullUsesDefault(t *testing.T) {
	f, err := DecodeFeatures(decodeJSON(t, `{"social_trust_score": null, "account_age": null}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultSocialTrustScore, f.SocialTrustScore)
	assert.Equal(t, DefaultAccountAge, f.AccountAge)
}

func TestDecodeFeaturesCoercion(t *testing.T) {
	body := `{
		"transaction_amount": "4500.50",
		"transaction_frequency": 25,
		"recipient_verification_status": "suspicious",
		"recipient_blacklist_status": 1,
		"device_fingerprinting": true,
		"vpn_proxy_usage": "1",
		"geo_location_flags": "high-risk",
		"behavioral_biometrics": 2.8,
		"social_trust_score": "15",
		"account_age": 0.2,
		"past_fraudulent_behavior": "true",
		"location_inconsistent": 0,
		"fraud_complaints_count": 5.0,
		"unknown_field": "ignored"
	}`
	f, err := DecodeFeatures(decodeJSON(t, body))
	require.NoError(t, err)

	assert.Equal(t, 4500.5, f.TransactionAmount)
	assert.Equal(t, 25, f.TransactionFrequency)
	assert.Equal(t, RecipientSuspicious, f.RecipientVerificationStatus)
	assert.True(t, bool(f.RecipientBlacklistStatus))
	assert.True(t, bool(f.DeviceFingerprinting))
	assert.True(t, bool(f.VPNProxyUsage))
	assert.Equal(t, GeoHighRisk, f.GeoLocationFlags)
	assert.Equal(t, 2.8, f.BehavioralBiometrics)
	assert.Equal(t, 15, f.SocialTrustScore)
	assert.Equal(t, 0.2, f.AccountAge)
	assert.True(t, bool(f.PastFraudulentBehavior))
	assert.False(t, bool(f.LocationInconsistent))
	assert.Equal(t, 5, f.FraudComplaintsCount)
}

func TestDecodeFeaturesKeepsUnknownEnums(t *testing.T) {
	f, err := DecodeFeatures(map[string]any{"geo_location_flags": "offshore"})
	require.NoError(t, err)
	assert.Equal(t, GeoFlag("offshore"), f.GeoLocationFlags)
}

func TestDecodeFeaturesRejects(t *testing.T) {
	body := `{
		"transaction_amount": "lots",
		"social_trust_score": "12.5",
		"vpn_proxy_usage": "maybe",
		"geo_location_flags": 3,
		"account_age": [1]
	}`
	_, err := DecodeFeatures(decodeJSON(t, body))
	require.Error(t, err)

	var verrs validation.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make(map[string]string)
	for _, ve := range verrs {
		fields[ve.Field] = ve.Message
	}
	assert.Len(t, fields, 5)
	assert.Equal(t, "must be a number", fields["transaction_amount"])
	assert.Equal(t, "must be an integer", fields["social_trust_score"])
	assert.Equal(t, "must be 0 or 1", fields["vpn_proxy_usage"])
	assert.Equal(t, "must be a string", fields["geo_location_flags"])
	assert.Equal(t, "must be a number", fields["account_age"])
}

func TestDecodeFeaturesRejectsNonBinaryFlags(t *testing.T) {
	for _, raw := range []any{2.0, 0.5, "yes", "2", ""} {
		f, err := DecodeFeatures(map[string]any{"vpn_proxy_usage": raw})
		var verrs validation.ValidationErrors
		require.ErrorAs(t, err, &verrs, "value %v", raw)
		require.Len(t, verrs, 1)
		assert.Equal(t, "vpn_proxy_usage", verrs[0].Field)
		assert.Equal(t, "must be 0 or 1", verrs[0].Message)
		assert.False(t, bool(f.VPNProxyUsage), "value %v", raw)
	}
}

func TestDecodeFeaturesTruncatesIntegers(t *testing.T) {
	f, err := DecodeFeatures(map[string]any{"transaction_frequency": 12.9})
	require.NoError(t, err)
	assert.Equal(t, 12, f.TransactionFrequency)
}

func TestFlagJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		On  Flag `json:"on"`
		Off Flag `json:"off"`
	}{On: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"on":1,"off":0}`, string(out))

	var in struct {
		A Flag `json:"a"`
		B Flag `json:"b"`
		C Flag `json:"c"`
		D Flag `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":true,"c":"1","d":null}`), &in))
	assert.True(t, bool(in.A))
	assert.True(t, bool(in.B))
	assert.True(t, bool(in.C))
	assert.False(t, bool(in.D))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"nope"}`), &in))
	assert.Error(t, json.Unmarshal([]byte(`{"a":2}`), &in))
}
