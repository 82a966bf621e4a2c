package pricing

import (
	"math"
	"strconv"
	"strings"
)

const ContactForPrice = "Contact for Price"

// TokenPaise is the token amount in the smallest currency unit. Both the
// payment order and the displayed token are derived from it.
func (q Quote) TokenPaise() int64 {
	return ToPaise(q.TokenAmount)
}

func (q Quote) FinalPaise() int64 {
	return ToPaise(q.FinalPrice)
}

func ToPaise(amount float64) int64 {
	if !positive(amount) {
		return 0
	}
	return int64(math.Round(amount * 100))
}

// DisplayPrice renders the final price, never showing a zero amount.
func (q Quote) DisplayPrice() string {
	return Display(q.FinalPaise())
}

// DisplayToken renders the token exactly as it will be charged.
func (q Quote) DisplayToken() string {
	return Display(q.TokenPaise())
}

// Display formats an amount in paise with Indian digit grouping
// (₹50,00,000 or ₹25,000.50). Zero or negative amounts read "Contact for Price".
func Display(paise int64) string {
	if paise <= 0 {
		return ContactForPrice
	}

	rupees := paise / 100
	fraction := paise % 100

	out := "₹" + groupIndian(rupees)
	if fraction != 0 {
		frac := strconv.FormatInt(fraction, 10)
		if len(frac) == 1 {
			frac = "0" + frac
		}
		out += "." + frac
	}
	return out
}

// groupIndian groups the last three digits, then pairs: 5000000 -> 50,00,000.
func groupIndian(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	head, tail := s[:len(s)-3], s[len(s)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

// Compact renders large amounts the way listings show them: 1.25 Cr, 45 L.
func Compact(paise int64) string {
	if paise <= 0 {
		return ContactForPrice
	}

	rupees := float64(paise) / 100
	switch {
	case rupees >= 1e7:
		return "₹" + trimFloat(rupees/1e7) + " Cr"
	case rupees >= 1e5:
		return "₹" + trimFloat(rupees/1e5) + " L"
	}
	return Display(paise)
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
