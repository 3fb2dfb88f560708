package redisstore

import (
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/carauth"
)

var errCorruptAccount = errors.New("redisstore: corrupt account record")

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" || s == "0" {
		return time.Time{}, nil
	}
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(us).UTC(), nil
}

func encodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// mutableFields are the fields Save writes. Lockout, last-login, creation
// and version fields are excluded.
func mutableFields(a *carauth.Account) []interface{} {
	return []interface{}{
		"email", a.Email,
		"password_hash", a.PasswordHash,
		"full_name", a.FullName,
		"phone", a.Phone,
		"membership", string(a.Membership),
		"role", a.Role,
		"pref_email", encodeBool(a.Preferences.EmailNotifications),
		"pref_sms", encodeBool(a.Preferences.SMSNotifications),
		"pref_newsletter", encodeBool(a.Preferences.Newsletter),
		"verified", encodeBool(a.Verified),
		"verification_hash", a.VerificationTokenHash,
		"verification_expires", encodeTime(a.VerificationExpiresAt),
		"reset_hash", a.ResetTokenHash,
		"reset_expires", encodeTime(a.ResetExpiresAt),
		"updated_at", encodeTime(a.UpdatedAt),
	}
}

func allFields(a *carauth.Account) []interface{} {
	fields := mutableFields(a)
	return append(fields,
		"id", a.ID,
		"failed_attempts", strconv.Itoa(a.FailedAttempts),
		"lock_until", encodeTime(a.LockUntil),
		"created_at", encodeTime(a.CreatedAt),
		"last_login_at", encodeTime(a.LastLoginAt),
		"version", strconv.FormatInt(a.Version, 10),
	)
}

func decodeAccount(m map[string]string) (*carauth.Account, error) {
	if m["id"] == "" {
		return nil, errCorruptAccount
	}

	a := &carauth.Account{
		ID:                    m["id"],
		Email:                 m["email"],
		PasswordHash:          m["password_hash"],
		FullName:              m["full_name"],
		Phone:                 m["phone"],
		Membership:            carauth.Membership(m["membership"]),
		Role:                  m["role"],
		Verified:              m["verified"] == "1",
		VerificationTokenHash: m["verification_hash"],
		ResetTokenHash:        m["reset_hash"],
		Preferences: carauth.Preferences{
			EmailNotifications: m["pref_email"] == "1",
			SMSNotifications:   m["pref_sms"] == "1",
			Newsletter:         m["pref_newsletter"] == "1",
		},
	}

	var err error
	if a.FailedAttempts, err = strconv.Atoi(orZero(m["failed_attempts"])); err != nil {
		return nil, errCorruptAccount
	}
	if a.Version, err = strconv.ParseInt(orZero(m["version"]), 10, 64); err != nil {
		return nil, errCorruptAccount
	}

	times := []struct {
		field string
		dst   *time.Time
	}{
		{"verification_expires", &a.VerificationExpiresAt},
		{"reset_expires", &a.ResetExpiresAt},
		{"lock_until", &a.LockUntil},
		{"created_at", &a.CreatedAt},
		{"updated_at", &a.UpdatedAt},
		{"last_login_at", &a.LastLoginAt},
	}
	for _, tf := range times {
		if *tf.dst, err = decodeTime(m[tf.field]); err != nil {
			return nil, errCorruptAccount
		}
	}

	return a, nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// pairsToMap converts an HGETALL reply delivered through EVAL.
func pairsToMap(v interface{}) (map[string]string, error) {
	items, ok := v.([]interface{})
	if !ok || len(items)%2 != 0 {
		return nil, errCorruptAccount
	}
	out := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		k, _ := items[i].(string)
		val, _ := items[i+1].(string)
		out[k] = val
	}
	return out, nil
}
