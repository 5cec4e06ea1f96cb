package strategy

// HalfKellyFraction returns half the Kelly-optimal bankroll fraction for a binary contract
// bought at price (cost to win one unit) given an estimated probability p:
//
//	b = 1/price - 1
//	f = 0.5 * (b*p - q) / b,  q = 1 - p
//
// Inputs outside the open interval (0, 1) return 0. The result is not clamped;
// a negative fraction means no position.
func HalfKellyFraction(price, estimatedProbability float64) float64 {
	if !inOpenUnit(price) || !inOpenUnit(estimatedProbability) {
		return 0.0
	}
	b := (1.0 / price) - 1.0
	p := estimatedProbability
	q := 1.0 - p
	return 0.5 * ((b*p - q) / b)
}

// ReciprocalPrice returns the implied ask of one side of a binary market from the bid of
// the complementary side. Bids outside [0, 1] return 0.
func ReciprocalPrice(complementBid float64) float64 {
	if complementBid < 0 || complementBid > 1 {
		return 0.0
	}
	return 1.0 - complementBid
}

// inOpenUnit also rejects NaN.
func inOpenUnit(v float64) bool {
	return v > 0 && v < 1
}
