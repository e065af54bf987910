package resolve

import "math"

// klDivergence computes KL(p||q), clipping q to clipMin so an infoset the
// blueprint assigns zero mass to still yields a finite penalty — grounded
// on resolver.py's _kl_divergence.
func klDivergence(p, q []float64, clipMin float64) float64 {
	kl := 0.0
	for i, pv := range p {
		if pv <= 0 {
			continue
		}
		qv := clipMin
		if i < len(q) && q[i] > clipMin {
			qv = q[i]
		}
		kl += pv * math.Log(pv/qv)
	}
	return kl
}
