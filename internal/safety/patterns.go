package safety

import (
	"regexp"
	"strings"

	"inboxmind/internal/capability"
)

// Pattern data backing the hard rules. These are policy data, compiled once
// at package init; the rule engine in gate.go is what orders and applies
// them.

// credentialPatterns flag secret-shaped text in outbound subject/body.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password\s*[:=]\s*\S+`),
	regexp.MustCompile(`(?i)api[_-]?key\s*[:=]\s*\S+`),
	regexp.MustCompile(`(?i)secret\s*[:=]\s*\S+`),
	regexp.MustCompile(`(?i)token\s*[:=]\s*\S+`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)-----BEGIN\s+(RSA\s+)?PRIVATE\s+KEY-----`),
}

// spamPatterns are the signals counted by IsSpam. Two or more distinct
// matches classify a message as spam.
var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(buy\s+now|act\s+now|limited\s+time)`),
	regexp.MustCompile(`(?i)(click\s+here|unsubscribe)`),
	regexp.MustCompile(`(?i)(viagra|cialis|lottery|winner|prince)`),
	regexp.MustCompile(`(?i)(earn\s+money|make\s+\$|free\s+gift)`),
	regexp.MustCompile(`(?i)(nigerian|inheritance|million\s+dollars)`),
	regexp.MustCompile(`(?i)\b(win|won|congratulations)\b`),
	regexp.MustCompile(`(?i)\bfree\b.*\b(money|cash|prize|offer)\b`),
	regexp.MustCompile(`(?i)\bnoreply@`),
}

// financialKeywords block outbound text that commits to a financial action.
var financialKeywords = []string{
	"wire transfer",
	"bank transfer",
	"send money",
	"payment",
	"invoice payment",
	"pay now",
	"bitcoin",
	"crypto",
	"wallet address",
	"routing number",
	"account number",
}

// impersonationPhrases block outbound bodies claiming a human authority role.
var impersonationPhrases = []string{
	"i am the ceo",
	"i am the owner",
	"this is the ceo",
	"speaking on behalf of the board",
	"as the legal representative",
	"i am authorized to sign",
	"i have authority to",
	"acting as director",
}

// escalationKeywords trigger human review when present in inbound text.
var escalationKeywords = []string{
	"legal",
	"lawsuit",
	"attorney",
	"lawyer",
	"complaint",
	"urgent",
	"emergency",
	"payment dispute",
	"chargeback",
	"fraud",
	"harassment",
	"threat",
	"subpoena",
	"regulatory",
	"compliance",
	"termination",
	"data breach",
	"confidential",
}

// ContainsEscalationKeywords reports whether text mentions any topic that
// requires human attention. Case-insensitive substring match against a fixed
// list.
func ContainsEscalationKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range escalationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// EscalationKeywords returns the matched keywords, for report detail.
func EscalationKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range escalationKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// SpamSignalCount counts how many distinct spam patterns match across the
// message's subject, body, snippet, and sender address.
func SpamSignalCount(email capability.Email) int {
	combined := strings.Join([]string{
		email.Subject,
		email.Body,
		email.Snippet,
		email.Sender.Email,
	}, " ")

	matches := 0
	for _, p := range spamPatterns {
		if p.MatchString(combined) {
			matches++
		}
	}
	return matches
}

// IsSpam classifies an email as spam when at least two distinct spam signals
// match. A single pattern hit is treated as noise.
func IsSpam(email capability.Email) bool {
	return SpamSignalCount(email) >= 2
}

// matchCredential returns the pattern source matching secret-shaped text,
// or "" when clean.
func matchCredential(text string) string {
	for _, p := range credentialPatterns {
		if p.MatchString(text) {
			return p.String()
		}
	}
	return ""
}

// matchFinancial returns the first financial-commitment phrase found in
// text (case-insensitive), or "".
func matchFinancial(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range financialKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// matchImpersonation returns the first authority-impersonation phrase found
// in body (case-insensitive), or "".
func matchImpersonation(body string) string {
	lower := strings.ToLower(body)
	for _, phrase := range impersonationPhrases {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}
