package network

// commodityNetwork analyzes one (region, period) bucket. It is rebuilt from
// the current model data on every pass of the manager's convergence loop, so
// it always sees the already-pruned technology set.
type commodityNetwork struct {
	rp      RegionPeriod
	data    *ModelData
	demands StringSet

	analyzed      bool
	demandOrphans TechSet
	otherOrphans  TechSet
}

func newCommodityNetwork(rp RegionPeriod, data *ModelData) *commodityNetwork {
	demands := data.DemandCommodities[rp]
	if demands == nil {
		demands = StringSet{}
	}
	return &commodityNetwork{
		rp:            rp,
		data:          data,
		demands:       demands,
		demandOrphans: TechSet{},
		otherOrphans:  TechSet{},
	}
}

// analyze classifies every technology in the bucket. A tech whose input is
// not reachable from a source commodity is an other orphan; a tech whose
// output cannot reach a demand commodity is a demand-side orphan. A tech can
// be both and is then recorded under both headings.
func (cn *commodityNetwork) analyze() {
	techs := cn.data.AvailableTechs(cn.rp)

	supplied := cn.forwardReachable(techs)
	relevant := cn.backwardRelevant(techs)

	for t := range techs {
		if !supplied.Has(t.Input) {
			cn.otherOrphans.Add(t)
		}
		if !relevant.Has(t.Output) {
			cn.demandOrphans.Add(t)
		}
	}
	cn.analyzed = true
}

// forwardReachable computes the commodities reachable from the source set
// through chains of technologies. Source commodities are reachable by
// definition; a tech with a reachable input makes its output reachable.
func (cn *commodityNetwork) forwardReachable(techs TechSet) StringSet {
	reached := StringSet{}
	for c := range cn.data.SourceCommodities {
		reached.Add(c)
	}
	// Edges by input commodity for the frontier walk.
	byInput := map[string][]string{}
	for t := range techs {
		byInput[t.Input] = append(byInput[t.Input], t.Output)
	}
	frontier := reached.Sorted()
	for len(frontier) > 0 {
		c := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, out := range byInput[c] {
			if !reached.Has(out) {
				reached.Add(out)
				frontier = append(frontier, out)
			}
		}
	}
	return reached
}

// backwardRelevant computes the commodities from which some chain of
// technologies can reach a demand commodity of this bucket. Demand
// commodities are relevant by definition; a tech with a relevant output
// makes its input relevant.
func (cn *commodityNetwork) backwardRelevant(techs TechSet) StringSet {
	relevant := StringSet{}
	for c := range cn.demands {
		relevant.Add(c)
	}
	byOutput := map[string][]string{}
	for t := range techs {
		byOutput[t.Output] = append(byOutput[t.Output], t.Input)
	}
	frontier := relevant.Sorted()
	for len(frontier) > 0 {
		c := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, in := range byOutput[c] {
			if !relevant.Has(in) {
				relevant.Add(in)
				frontier = append(frontier, in)
			}
		}
	}
	return relevant
}

func (cn *commodityNetwork) demandSideOrphans() TechSet { return cn.demandOrphans }

func (cn *commodityNetwork) allOtherOrphans() TechSet { return cn.otherOrphans }
