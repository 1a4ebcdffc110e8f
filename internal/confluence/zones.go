package confluence

import (
	"sort"

	"drummond-lab/internal/domain"
)

// sourceLevel is one price level contributed by an analytical source.
type sourceLevel struct {
	price     float64
	weight    float64
	timeframe string
	touchMs   int64
}

// Per-source clustering weights. Higher-timeframe sources count more.
const (
	weightHigherReference  = 2.0
	weightHigherEnvelope   = 1.5
	weightTradingReference = 1.0
	weightTradingEnvelope  = 1.0
	weightPattern          = 1.0
)

// clusterZones collects candidate levels from the reference-line overlay,
// envelope edges and pattern anchors of both timeframes, then clusters
// levels within the tolerance band into ConfluenceZones. Zone strength is
// the count of distinct contributing sources; weighted strength is the sum
// of per-source weights.
func (a *Analyzer) clusterZones(in *Input) []domain.ConfluenceZone {
	var levels []sourceLevel

	add := func(price, weight float64, tf string, ts int64) {
		if price > 0 {
			levels = append(levels, sourceLevel{price: price, weight: weight, timeframe: tf, touchMs: ts})
		}
	}

	if r := in.Higher.Reference; r != nil {
		add(r.Value, weightHigherReference, in.Higher.Interval, r.TimestampMs)
	}
	if e := in.Higher.Envelope; e != nil {
		add(e.Upper, weightHigherEnvelope, in.Higher.Interval, e.TimestampMs)
		add(e.Lower, weightHigherEnvelope, in.Higher.Interval, e.TimestampMs)
	}
	if r := in.Trading.Reference; r != nil {
		add(r.Value, weightTradingReference, in.Trading.Interval, r.TimestampMs)
	}
	if e := in.Trading.Envelope; e != nil {
		add(e.Upper, weightTradingEnvelope, in.Trading.Interval, e.TimestampMs)
		add(e.Lower, weightTradingEnvelope, in.Trading.Interval, e.TimestampMs)
	}
	for _, p := range in.Higher.Patterns {
		add(p.AnchorPrice, weightPattern, in.Higher.Interval, p.EndMs)
	}
	for _, p := range in.Trading.Patterns {
		add(p.AnchorPrice, weightPattern, in.Trading.Interval, p.EndMs)
	}

	if len(levels) == 0 {
		return nil
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].price < levels[j].price })

	volatility := 0.0
	if in.Trading.Envelope != nil {
		volatility = in.Trading.Envelope.Width
	}

	var zones []domain.ConfluenceZone
	cluster := []sourceLevel{levels[0]}
	for _, lv := range levels[1:] {
		anchor := cluster[0].price
		if lv.price-anchor <= a.cfg.zoneTolerancePct*anchor {
			cluster = append(cluster, lv)
			continue
		}
		zones = append(zones, a.buildZone(cluster, in.Trading.Close, volatility))
		cluster = []sourceLevel{lv}
	}
	zones = append(zones, a.buildZone(cluster, in.Trading.Close, volatility))

	// strongest first, price ascending as tie-breaker
	sort.SliceStable(zones, func(i, j int) bool {
		if zones[i].WeightedStrength != zones[j].WeightedStrength {
			return zones[i].WeightedStrength > zones[j].WeightedStrength
		}
		return zones[i].Price < zones[j].Price
	})
	return zones
}

// buildZone folds one cluster of levels into a ConfluenceZone.
func (a *Analyzer) buildZone(cluster []sourceLevel, close, volatility float64) domain.ConfluenceZone {
	weightSum := 0.0
	priceSum := 0.0
	lower := cluster[0].price
	upper := cluster[0].price
	first := cluster[0].touchMs
	last := cluster[0].touchMs
	tfs := make([]string, 0, 2)
	seenTF := make(map[string]struct{})

	for _, lv := range cluster {
		weightSum += lv.weight
		priceSum += lv.price * lv.weight
		if lv.price < lower {
			lower = lv.price
		}
		if lv.price > upper {
			upper = lv.price
		}
		if lv.touchMs < first {
			first = lv.touchMs
		}
		if lv.touchMs > last {
			last = lv.touchMs
		}
		if _, ok := seenTF[lv.timeframe]; !ok {
			seenTF[lv.timeframe] = struct{}{}
			tfs = append(tfs, lv.timeframe)
		}
	}

	price := priceSum / weightSum
	zoneType := domain.ZoneResistance
	if price < close {
		zoneType = domain.ZoneSupport
	}

	pad := a.cfg.zoneTolerancePct * price / 2
	return domain.ConfluenceZone{
		Price:            price,
		Upper:            upper + pad,
		Lower:            lower - pad,
		Strength:         len(cluster),
		WeightedStrength: weightSum,
		Timeframes:       tfs,
		Type:             zoneType,
		FirstTouchMs:     first,
		LastTouchMs:      last,
		Volatility:       volatility,
	}
}
