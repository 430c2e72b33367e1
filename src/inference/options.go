package inference

const defaultTemperature = 0.7

func resolveMaxTokens(requested, configured int) int {
	if requested > 0 && (configured <= 0 || requested < configured) {
		return requested
	}
	return configured
}

func resolveTemperature(t float32) float32 {
	if t == 0 {
		return defaultTemperature
	}
	return t
}
