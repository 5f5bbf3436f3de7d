package pokebattle

import "math"

// BattleLevel is the fixed level both peers battle at
const BattleLevel = 50

// ComputeDamage evaluates the shared damage formula.
// Both peers must arrive at the same integer for the same inputs,
// so everything is computed in float64 and rounded half away from
// zero at the end. The result is never below 1 and a defender stat
// of 0 or less is floored to 1 to avoid dividing by zero.
func ComputeDamage(attackerStat, defenderStat, basePower, typeEffectiveness, boostMultiplier float64, level int) int {
	if defenderStat <= 0 {
		defenderStat = 1.0
	}

	base := float64(2*level)/5 + 2
	scaled := base * basePower * (attackerStat / defenderStat)
	scaled = scaled/50.0 + 2.0

	damage := scaled * typeEffectiveness * boostMultiplier

	result := int(math.Round(damage))
	if result < 1 {
		result = 1
	}

	return result
}

// attackStats picks the stat pair the move's category uses:
// physical moves use attack/defense, everything else uses the
// special pair
func attackStats(mv Move, attacker, defender Pokemon) (atk, def float64) {
	if mv.Category == "physical" {
		return float64(attacker.Attack), float64(defender.Defense)
	}

	return float64(attacker.SpAttack), float64(defender.SpDefense)
}
