package cardcapture

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"streamvault/pkg/payment"
)

// RawFields is plaintext card input as typed by the customer.
type RawFields struct {
	Name   string
	Number string
	Expiry string // MM/YY
	CVV    string
}

// CaptureRaw validates raw card fields against now and returns a raw-card
// PaymentMethod.
func CaptureRaw(f RawFields, now time.Time) (*PaymentMethod, error) {
	var errs FieldErrors
	number := NormalizeNumber(f.Number)
	if !ValidNumber(number) {
		errs.add("card", "Please enter a valid card number")
	}
	month, year, ok := ParseExpiry(f.Expiry)
	if !ok || !notExpired(month, year, now) {
		errs.add("expiry", "Please enter a valid expiry date")
	}
	if !ValidCVV(f.CVV) {
		errs.add("cvv", "Please enter a valid CVV")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return NewRawCard(payment.Card{
		Name:        strings.TrimSpace(f.Name),
		Number:      number,
		ExpiryMonth: strconv.Itoa(month),
		ExpiryYear:  strconv.Itoa(year % 100),
		CVV:         f.CVV,
	}), nil
}

// NormalizeNumber strips spaces and dashes.
func NormalizeNumber(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, s)
}

// ValidNumber checks length and the Luhn checksum of a normalized number.
func ValidNumber(number string) bool {
	if len(number) < 13 || len(number) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		n := int(c - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// ParseExpiry reads MM/YY into a month and a four-digit year.
func ParseExpiry(s string) (month, year int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil || y < 0 {
		return 0, 0, false
	}
	return m, 2000 + y, true
}

// a card is valid through the last day of its expiry month
func notExpired(month, year int, now time.Time) bool {
	if year != now.Year() {
		return year > now.Year()
	}
	return month >= int(now.Month())
}

func ValidCVV(s string) bool {
	if len(s) < 3 || len(s) > 4 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// FormatNumber groups digits in fours, capped at 16 digits.
func FormatNumber(s string) string {
	digits := onlyDigits(s)
	if len(digits) > 16 {
		digits = digits[:16]
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatExpiry inserts the slash after the month.
func FormatExpiry(s string) string {
	digits := onlyDigits(s)
	if len(digits) > 4 {
		digits = digits[:4]
	}
	if len(digits) > 2 {
		return digits[:2] + "/" + digits[2:]
	}
	return digits
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
