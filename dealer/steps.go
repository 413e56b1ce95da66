package dealer

import "fmt"

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// CoprimeSteps returns the probe steps for a deck of n cards: the largest
// step not above n/2 and the smallest step above n/2 that are coprime with
// n. For n = 52 this is the table {25, 27}.
func CoprimeSteps(n int) ([]int, error) {
	if n < 2 {
		return nil, fmt.Errorf("deck size must be at least 2, got %d", n)
	}
	lower, upper := 0, 0
	for s := n / 2; s > 0; s-- {
		if gcd(s, n) == 1 {
			lower = s
			break
		}
	}
	for s := n/2 + 1; s < n; s++ {
		if gcd(s, n) == 1 {
			upper = s
			break
		}
	}
	if upper == 0 || upper == lower {
		return []int{lower}, nil
	}
	return []int{lower, upper}, nil
}

// ValidateSteps checks that every step lies in (0, n) and shares no factor
// with n.
func ValidateSteps(n int, steps []int) error {
	if len(steps) == 0 {
		return fmt.Errorf("step table is empty")
	}
	for _, s := range steps {
		if s <= 0 || s >= n {
			return fmt.Errorf("step %d out of range (0, %d)", s, n)
		}
		if g := gcd(s, n); g != 1 {
			return fmt.Errorf("step %d shares the factor %d with deck size %d", s, g, n)
		}
	}
	return nil
}
