package viz

// Kind is the tagged chart-type variant. Scoring and axis mapping are
// defined per variant; no string dispatch outside this package.
type Kind string

const (
	KindBar     Kind = "bar"
	KindLine    Kind = "line"
	KindPie     Kind = "pie"
	KindScatter Kind = "scatter"
	KindArea    Kind = "area"
)

// kindPriority breaks confidence ties deterministically.
// Lower value wins: bar > line > pie > scatter > area.
var kindPriority = map[Kind]int{
	KindBar:     0,
	KindLine:    1,
	KindPie:     2,
	KindScatter: 3,
	KindArea:    4,
}

// AllKinds in priority order.
var AllKinds = []Kind{KindBar, KindLine, KindPie, KindScatter, KindArea}

func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := kindPriority[k]
	return k, ok
}

// variant holds the per-kind scoring rules and axis mapping.
type variant struct {
	// score returns the additive confidence delta and the applied rule
	// names for the reasoning string.
	score func(p *DataProfile, rules *ruleSet) (float64, []string)
	// axes picks the field-to-axis mapping for this kind.
	axes func(p *DataProfile) AxisMapping
}

// ruleSet carries the thresholds the scoring rules consult.
type ruleSet struct {
	PieMaxCategories int
}

var variants = map[Kind]variant{
	KindBar: {
		score: func(p *DataProfile, _ *ruleSet) (float64, []string) {
			var score float64
			var applied []string
			if p.HasClass(ClassCategorical) && p.HasClass(ClassNumeric) {
				score += 0.5
				applied = append(applied, "categorical dimension with a numeric measure")
			}
			if p.FromAggregation {
				score += 0.1
				applied = append(applied, "pre-aggregated buckets")
			}
			return score, applied
		},
		axes: categoryValueAxes,
	},
	KindLine: {
		score: func(p *DataProfile, _ *ruleSet) (float64, []string) {
			var score float64
			var applied []string
			if p.HasClass(ClassTemporal) && p.HasClass(ClassNumeric) {
				score += 0.5
				applied = append(applied, "temporal dimension with a numeric measure")
				for _, f := range p.fieldsOfClass(ClassTemporal) {
					if f.Monotonic {
						score += 0.1
						applied = append(applied, "time-ordered sample")
						break
					}
				}
			}
			return score, applied
		},
		axes: temporalValueAxes,
	},
	KindPie: {
		score: func(p *DataProfile, rules *ruleSet) (float64, []string) {
			var score float64
			var applied []string
			if p.HasClass(ClassCategorical) && p.HasClass(ClassNumeric) {
				for _, f := range p.fieldsOfClass(ClassCategorical) {
					if f.Cardinality > 0 && f.Cardinality <= rules.PieMaxCategories {
						score += 0.4
						applied = append(applied, "few categories, share-of-whole reads well")
						break
					}
				}
			}
			return score, applied
		},
		axes: categoryValueAxes,
	},
	KindScatter: {
		score: func(p *DataProfile, _ *ruleSet) (float64, []string) {
			var score float64
			var applied []string
			if p.NumericCount() >= 2 {
				score += 0.5
				applied = append(applied, "two or more numeric measures")
			}
			return score, applied
		},
		axes: func(p *DataProfile) AxisMapping {
			numerics := p.fieldsOfClass(ClassNumeric)
			mapping := AxisMapping{}
			if len(numerics) > 0 {
				mapping.X = numerics[0].Name
			}
			if len(numerics) > 1 {
				mapping.Y = numerics[1].Name
			}
			return mapping
		},
	},
	KindArea: {
		score: func(p *DataProfile, _ *ruleSet) (float64, []string) {
			var score float64
			var applied []string
			if p.HasClass(ClassTemporal) && p.HasClass(ClassNumeric) {
				score += 0.35
				applied = append(applied, "temporal dimension, cumulative emphasis")
			}
			return score, applied
		},
		axes: temporalValueAxes,
	},
}

func categoryValueAxes(p *DataProfile) AxisMapping {
	mapping := AxisMapping{}
	if cats := p.fieldsOfClass(ClassCategorical); len(cats) > 0 {
		mapping.X = lowestCardinality(cats).Name
	} else if temps := p.fieldsOfClass(ClassTemporal); len(temps) > 0 {
		mapping.X = temps[0].Name
	}
	if nums := p.fieldsOfClass(ClassNumeric); len(nums) > 0 {
		mapping.Y = nums[0].Name
	}
	return mapping
}

func temporalValueAxes(p *DataProfile) AxisMapping {
	mapping := AxisMapping{}
	if temps := p.fieldsOfClass(ClassTemporal); len(temps) > 0 {
		mapping.X = temps[0].Name
	} else if cats := p.fieldsOfClass(ClassCategorical); len(cats) > 0 {
		mapping.X = cats[0].Name
	}
	if nums := p.fieldsOfClass(ClassNumeric); len(nums) > 0 {
		mapping.Y = nums[0].Name
	}
	return mapping
}

func lowestCardinality(fields []FieldProfile) FieldProfile {
	best := fields[0]
	for _, f := range fields[1:] {
		if f.Cardinality < best.Cardinality {
			best = f
		}
	}
	return best
}
