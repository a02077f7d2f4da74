package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
	"testing"
)

func sign(authToken, requestURL string, form url.Values) string {
	var keys []string
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(requestURL)
	for _, k := range keys {
		for _, v := range form[k] {
			sb.WriteString(k)
			sb.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(sb.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyTwilioSignature(t *testing.T) {
	const token = "test-auth-token"
	const reqURL = "https://voice.extractoseum.com/webhooks/voice/status"

	form := url.Values{}
	form.Set("CallSid", "CA1234567890abcdef")
	form.Set("CallStatus", "completed")
	form.Set("From", "+5215512345678")

	if err := VerifyTwilioSignature(token, reqURL, form, sign(token, reqURL, form)); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
}

func TestVerifyTwilioSignatureTampered(t *testing.T) {
	const token = "test-auth-token"
	const reqURL = "https://voice.extractoseum.com/webhooks/voice/status"

	form := url.Values{}
	form.Set("CallSid", "CA1234567890abcdef")
	form.Set("CallStatus", "completed")

	sig := sign(token, reqURL, form)

	// mutate a parameter after signing
	form.Set("CallStatus", "failed")
	if err := VerifyTwilioSignature(token, reqURL, form, sig); err == nil {
		t.Error("tampered form accepted")
	}
}

func TestVerifyTwilioSignatureWrongURL(t *testing.T) {
	const token = "test-auth-token"

	form := url.Values{}
	form.Set("CallSid", "CA1")

	sig := sign(token, "https://voice.extractoseum.com/webhooks/voice/status", form)
	err := VerifyTwilioSignature(token, "https://attacker.example/webhooks/voice/status", form, sig)
	if err == nil {
		t.Error("signature for a different URL accepted")
	}
}

func TestVerifyTwilioSignatureMissing(t *testing.T) {
	form := url.Values{}
	if err := VerifyTwilioSignature("token", "https://x.example/", form, ""); err == nil {
		t.Error("missing signature accepted")
	}
}

func TestVerifyTwilioSignatureSkippedWithoutToken(t *testing.T) {
	form := url.Values{}
	if err := VerifyTwilioSignature("", "https://x.example/", form, "anything"); err != nil {
		t.Errorf("verification must be skipped without a token: %v", err)
	}
}
