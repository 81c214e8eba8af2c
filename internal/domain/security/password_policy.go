package security

import "unicode"

// MinPasswordLength is the shortest password the policy accepts.
const MinPasswordLength = 8

// MaxPasswordBytes is the bcrypt input limit; longer passwords are refused
// rather than silently truncated.
const MaxPasswordBytes = 72

// Matcher compares a plaintext candidate against a stored hash.
// Implementations must compare in constant time.
type Matcher interface {
	Matches(hash, plain string) bool
}

// PasswordPolicy validates password strength and history reuse.
type PasswordPolicy struct {
	matcher Matcher
}

func NewPasswordPolicy(m Matcher) *PasswordPolicy {
	return &PasswordPolicy{matcher: m}
}

// ValidateStrength returns a *WeakPasswordError naming every rule the
// candidate breaks, or nil.
func (p *PasswordPolicy) ValidateStrength(candidate string) error {
	var upper, lower, digit, special bool
	n := 0
	for _, r := range candidate {
		n++
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsNumber(r):
			special = true
		}
	}

	var reasons []Reason
	if n < MinPasswordLength {
		reasons = append(reasons, TooShort)
	}
	if len(candidate) > MaxPasswordBytes {
		reasons = append(reasons, TooLong)
	}
	if !upper {
		reasons = append(reasons, MissingUppercase)
	}
	if !lower {
		reasons = append(reasons, MissingLowercase)
	}
	if !digit {
		reasons = append(reasons, MissingDigit)
	}
	if !special {
		reasons = append(reasons, MissingSpecialChar)
	}
	if len(reasons) > 0 {
		return &WeakPasswordError{Reasons: reasons}
	}
	return nil
}

// CheckReuse reports whether candidate matches any hash in history.
// Every entry is compared so the run time does not reveal the match position.
func (p *PasswordPolicy) CheckReuse(history []string, candidate string) bool {
	matched := false
	for _, h := range history {
		if p.matcher.Matches(h, candidate) {
			matched = true
		}
	}
	return matched
}
