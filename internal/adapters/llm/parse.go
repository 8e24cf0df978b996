package llm

import (
	"regexp"
	"strconv"
)

// Patrones de probabilidad en la respuesta del modelo, del más estricto al
// más laxo. Los modelos no siempre obedecen el formato pedido.
var probabilityPatterns = []struct {
	re      *regexp.Regexp
	percent bool
}{
	{regexp.MustCompile(`(?i)PROBABILITY:\s*(\d+(?:\.\d+)?)\s*%`), true},
	{regexp.MustCompile(`(?i)probability\s+(?:of|is)\s+(\d+(?:\.\d+)?)\s*%`), true},
	{regexp.MustCompile(`(?i)PROBABILITY:\s*(0?\.\d+)\b`), false},
	{regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`), true},
}

// ExtractProbability busca una probabilidad en el texto y la devuelve en
// [0,1]. Dentro de cada patrón gana la última ocurrencia: la conclusión pesa
// más que los números citados por el camino.
func ExtractProbability(text string) (float64, bool) {
	for _, p := range probabilityPatterns {
		matches := p.re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
		if err != nil {
			continue
		}
		if p.percent {
			v /= 100
		}
		if v < 0 || v > 1 {
			continue
		}
		return v, true
	}
	return 0, false
}
