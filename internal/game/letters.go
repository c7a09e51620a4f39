package game

const alphabet = "ABCDEFGHI"

// Letter maps stimulus values 1-9 to the letters A-I spoken in audio modes.
// Other values map to the empty string.
func Letter(v int) string {
	if v < 1 || v > len(alphabet) {
		return ""
	}
	return alphabet[v-1 : v]
}
