// Package phone normalizes caller numbers. The PBX and the historical data
// use several formats for the same subscriber (with/without country code,
// with/without leading zeros), so searches must expand a number into all
// plausible variants.
package phone

import "strings"

// Normalize reduces a phone number to canonical +<digits> form.
// 9-digit local numbers get the 998 country code; 11-digit numbers with an
// 8 prefix are folded to 7 (Kazakhstan).
func Normalize(raw string) string {
	digits := onlyDigits(raw)
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return ""
	}

	if strings.HasPrefix(digits, "8") && len(digits) == 11 {
		digits = "7" + digits[1:]
	}

	if len(digits) == 9 && strings.ContainsAny(digits[:1], "9753") {
		digits = "998" + digits
	}

	return "+" + digits
}

// SearchVariants returns the historical storage formats a number may be
// filed under. The result always contains the normalized form.
func SearchVariants(raw string) []string {
	normalized := Normalize(raw)
	if normalized == "" {
		return nil
	}
	digits := onlyDigits(normalized)

	seen := make(map[string]bool)
	variants := make([]string, 0, 4)
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	add(normalized)
	add(digits)

	if strings.HasPrefix(digits, "998") && len(digits) == 12 {
		add(digits[3:])
		add("+998" + digits[3:])
	}
	if len(digits) == 9 {
		add("998" + digits)
		add("+998" + digits)
	}

	return variants
}

// Format renders a number for display as +998 XX XXX XX XX where possible.
func Format(raw string) string {
	digits := onlyDigits(raw)

	if len(digits) == 12 && strings.HasPrefix(digits, "998") {
		return "+" + digits[:3] + " " + digits[3:5] + " " + digits[5:8] + " " + digits[8:10] + " " + digits[10:]
	}
	if len(digits) == 9 {
		return "+998 " + digits[:2] + " " + digits[2:5] + " " + digits[5:7] + " " + digits[7:]
	}
	return raw
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
