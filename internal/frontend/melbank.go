package frontend

import "math"

// Slaney-style mel scale: linear below 1 kHz, logarithmic above.
const (
	melBreakHz  = 1000.0
	melLinearHz = 200.0 / 3.0
	melBreak    = melBreakHz / melLinearHz
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(hz float64) float64 {
	if hz < melBreakHz {
		return hz / melLinearHz
	}
	return melBreak + math.Log(hz/melBreakHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melBreak {
		return mel * melLinearHz
	}
	return melBreakHz * math.Exp(melLogStep*(mel-melBreak))
}

// NewMelBank builds an area-normalized triangular mel filter bank of
// numMels x (nfft/2 + 1) coefficients spanning [fmin, fmax] Hz.
func NewMelBank(sampleRate, nfft, numMels int, fmin, fmax float64) [][]float64 {
	numBins := nfft/2 + 1

	melMin := hzToMel(fmin)
	melMax := hzToMel(fmax)
	edges := make([]float64, numMels+2)
	for i := range edges {
		mel := melMin + (melMax-melMin)*float64(i)/float64(numMels+1)
		edges[i] = melToHz(mel)
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		row := make([]float64, numBins)
		lower, center, upper := edges[m], edges[m+1], edges[m+2]
		// Area normalization keeps per-filter energy comparable.
		norm := 2.0 / (upper - lower)
		for bin := 0; bin < numBins; bin++ {
			freq := float64(bin) * float64(sampleRate) / float64(nfft)
			var w float64
			switch {
			case freq <= lower || freq >= upper:
				w = 0
			case freq <= center:
				w = (freq - lower) / (center - lower)
			default:
				w = (upper - freq) / (upper - center)
			}
			row[bin] = w * norm
		}
		bank[m] = row
	}
	return bank
}
